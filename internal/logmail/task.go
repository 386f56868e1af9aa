package logmail

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
)

// Hook is the name the daily task is scheduled under.
const Hook = "daily_error_log_emailer_send_log"

// Sender delivers one plain-text mail.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Report summarizes a single run.
type Report struct {
	Date       string
	Files      []string
	Recipients []string
	Sent       int
	Failed     int
	Skipped    int
}

// Task mails yesterday's fatal-error logs.
type Task struct {
	LogDir     string
	SiteName   string
	Location   *time.Location
	Recipients []Resolver
	Sender     Sender
	Logger     *slog.Logger
	Now        func() time.Time
}

// Run sends every matching log file to every valid recipient, one mail per
// (recipient, file) pair. Send failures are logged and counted, not retried.
func (t *Task) Run(ctx context.Context) (Report, error) {
	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}

	report := Report{Date: Yesterday(now(), t.Location)}

	files, err := FindLogs(t.LogDir, report.Date)
	if err != nil {
		return report, err
	}
	report.Files = files
	if len(files) == 0 {
		logger.Info("logmail: no fatal-error logs found", "date", report.Date, "dir", t.LogDir)
		return report, nil
	}

	raw, err := Resolve(ctx, t.Recipients...)
	if err != nil {
		return report, err
	}
	for _, addr := range SplitRecipients(raw) {
		if !ValidEmail(addr) {
			logger.Warn("logmail: skipping malformed recipient", "recipient", addr)
			continue
		}
		report.Recipients = append(report.Recipients, addr)
	}
	if len(report.Recipients) == 0 {
		logger.Warn("logmail: no valid recipients", "configured", raw)
		return report, nil
	}

	subject := Subject(t.SiteName, report.Date)
	for _, to := range report.Recipients {
		for _, file := range files {
			if err := ctx.Err(); err != nil {
				return report, err
			}

			body, err := readLog(file)
			if errors.Is(err, fs.ErrNotExist) {
				logger.Info("logmail: log file vanished before read", "file", file)
				report.Skipped++
				continue
			}
			if err != nil {
				logger.Error("logmail: reading log file", "file", file, "err", err)
				report.Skipped++
				continue
			}

			if err := t.Sender.Send(ctx, to, subject, body); err != nil {
				logger.Error("logmail: send failed", "to", to, "file", filepath.Base(file), "err", err)
				report.Failed++
				continue
			}
			logger.Info("logmail: sent log",
				"to", to,
				"file", filepath.Base(file),
				"size", humanize.Bytes(uint64(len(body))),
			)
			report.Sent++
		}
	}

	logger.Info("logmail: run complete",
		"date", report.Date,
		"files", len(report.Files),
		"recipients", len(report.Recipients),
		"sent", report.Sent,
		"failed", report.Failed,
		"skipped", report.Skipped,
	)
	return report, nil
}

// readLog re-checks existence immediately before reading the whole file.
func readLog(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
