package logmail

import (
	"context"
	"net/mail"
	"strings"
)

// OptionRecipients is the option holding the comma-separated recipient list.
const OptionRecipients = "daily_error_log_emailer_recipients"

// A Resolver yields a candidate recipient value. An empty string means
// "not configured here, try the next one".
type Resolver func(ctx context.Context) (string, error)

type optionGetter interface {
	Get(ctx context.Context, name, def string) (string, error)
}

// FromOption reads the recipients option.
func FromOption(options optionGetter) Resolver {
	return func(ctx context.Context) (string, error) {
		return options.Get(ctx, OptionRecipients, "")
	}
}

// FromValue yields a fixed value, e.g. the recovery-mode or admin address.
func FromValue(v string) Resolver {
	return func(context.Context) (string, error) {
		return v, nil
	}
}

// Resolve evaluates resolvers in order and returns the first non-blank value.
func Resolve(ctx context.Context, resolvers ...Resolver) (string, error) {
	for _, r := range resolvers {
		v, err := r(ctx)
		if err != nil {
			return "", err
		}
		if v = strings.TrimSpace(v); v != "" {
			return v, nil
		}
	}
	return "", nil
}

// Fallback is the address used when no recipients are configured.
func Fallback(recoveryModeEmail, adminEmail string) string {
	if strings.TrimSpace(recoveryModeEmail) != "" {
		return strings.TrimSpace(recoveryModeEmail)
	}
	return strings.TrimSpace(adminEmail)
}

// SplitRecipients splits raw on commas and trims each entry. Blank entries
// are dropped.
func SplitRecipients(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ValidEmail reports whether addr is a bare address with a dotted domain.
func ValidEmail(addr string) bool {
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr || parsed.Name != "" {
		return false
	}
	at := strings.LastIndexByte(addr, '@')
	if at < 1 {
		return false
	}
	domain := addr[at+1:]
	return strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}
