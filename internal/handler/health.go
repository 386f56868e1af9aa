package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/logmailer/internal/lifecycle"
	mailpkg "github.com/logmailer/internal/mailer"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

type mailPinger interface {
	Ping(ctx context.Context) error
}

type statuser interface {
	Status(ctx context.Context) (lifecycle.Status, error)
}

type healthResponse struct {
	Status    string     `json:"status"`
	SMTP      string     `json:"smtp"`
	Scheduler string     `json:"scheduler,omitempty"`
	Scheduled bool       `json:"scheduled"`
	NextRun   *time.Time `json:"next_run,omitempty"`
}

// Health reports database reachability, whether the SMTP server answers and
// whether the daily mail is scheduled. Only the database degrades health.
func Health(db pinger, mail mailPinger, plugin statuser) http.HandlerFunc {
	h := &BaseHandler{}
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		code := http.StatusOK

		if err := db.PingContext(r.Context()); err != nil {
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
		} else if st, err := plugin.Status(r.Context()); err == nil {
			resp.Scheduler = st.Provider
			resp.Scheduled = st.Active
			if st.Active {
				next := st.NextRun.UTC()
				resp.NextRun = &next
			}
		}

		switch err := mail.Ping(r.Context()); {
		case errors.Is(err, mailpkg.ErrNoHost):
			resp.SMTP = "log-only"
		case err != nil:
			resp.SMTP = "unreachable"
		default:
			resp.SMTP = "ok"
		}

		_ = h.writeJSON(w, code, resp, nil)
	}
}
