package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// NonceLifetime is the window a form nonce stays valid. A nonce is accepted
// during the half-window it was created in and the one after.
const NonceLifetime = 24 * time.Hour

// Noncer issues and checks per-session form tokens bound to an action name.
type Noncer struct {
	secret []byte
	now    func() time.Time
}

func NewNoncer(secret string) *Noncer {
	return &Noncer{secret: []byte(secret), now: time.Now}
}

func (n *Noncer) tick() int64 {
	return n.now().Unix() / int64(NonceLifetime/2/time.Second)
}

func (n *Noncer) sign(tick int64, action, session string) string {
	mac := hmac.New(sha256.New, n.secret)
	mac.Write([]byte(strconv.FormatInt(tick, 10) + "|" + action + "|" + session))
	return hex.EncodeToString(mac.Sum(nil))[:20]
}

// Create returns the nonce for action in the given session.
func (n *Noncer) Create(action, session string) string {
	return n.sign(n.tick(), action, session)
}

// Verify reports whether nonce was issued for action and session within the lifetime.
func (n *Noncer) Verify(nonce, action, session string) bool {
	if nonce == "" || session == "" {
		return false
	}
	t := n.tick()
	for _, tick := range []int64{t, t - 1} {
		if hmac.Equal([]byte(nonce), []byte(n.sign(tick, action, session))) {
			return true
		}
	}
	return false
}
