// Package nonce issues and verifies the anti-forgery tokens attached to
// form-encoded consent saves. Tokens are HMACs over a coarse time bucket, so
// verification is stateless and any replica can check a token minted by
// another.
package nonce

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// tick is the bucket width. A token stays valid for the bucket it was minted
// in plus the previous one, so its real lifetime is between one and two
// ticks.
const tick = 12 * time.Hour

// Service mints and checks tokens against a shared secret.
type Service struct {
	secret []byte
	now    func() time.Time
}

// New builds a service. Panics on an empty secret: a guessable token is
// worse than none.
func New(secret string) *Service {
	if secret == "" {
		panic("nonce: secret cannot be empty")
	}
	return &Service{secret: []byte(secret), now: time.Now}
}

// Generate returns a token for the current time bucket.
func (s *Service) Generate() string {
	return s.tokenFor(s.bucket(0))
}

// Verify reports whether the token was minted in the current or the previous
// bucket. Comparison is constant-time.
func (s *Service) Verify(token string) bool {
	for _, offset := range []int64{0, -1} {
		if hmac.Equal([]byte(token), []byte(s.tokenFor(s.bucket(offset)))) {
			return true
		}
	}
	return false
}

func (s *Service) bucket(offset int64) int64 {
	return s.now().Unix()/int64(tick.Seconds()) + offset
}

func (s *Service) tokenFor(bucket int64) string {
	mac := hmac.New(sha256.New, s.secret)
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(bucket >> (8 * (7 - i)))
	}
	mac.Write(buf[:])
	// 10 bytes of MAC is plenty for an anti-forgery token and keeps the
	// form payload small.
	return hex.EncodeToString(mac.Sum(nil)[:10])
}
