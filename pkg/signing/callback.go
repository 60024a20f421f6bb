package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CallbackSigner creates and validates the tokens appended to gateway redirect URLs.
type CallbackSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCallbackSigner constructs a signer with the provided secret and TTL.
func NewCallbackSigner(secret string, ttl time.Duration) *CallbackSigner {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &CallbackSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate returns a signed token referencing the payment and checkout kind.
func (s *CallbackSigner) Generate(paymentID, kind string) (string, time.Time, error) {
	if paymentID == "" || kind == "" {
		return "", time.Time{}, fmt.Errorf("paymentID and kind required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl)
	encodedID := base64.RawURLEncoding.EncodeToString([]byte(paymentID))
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	signature := s.sign(encodedID, kind, ts)
	token := strings.Join([]string{encodedID, kind, ts, signature}, ".")
	return token, expiresAt, nil
}

// Parse validates a token and returns the embedded payment reference.
func (s *CallbackSigner) Parse(token string) (paymentID, kind string, expiresAt time.Time, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", time.Time{}, fmt.Errorf("invalid token format")
	}
	encodedID, kind, ts, signature := parts[0], parts[1], parts[2], parts[3]

	rawID, err := base64.RawURLEncoding.DecodeString(encodedID)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("decode payment id: %w", err)
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("invalid timestamp")
	}
	expiresAt = time.Unix(expUnix, 0)

	expected := s.sign(encodedID, kind, ts)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return "", "", time.Time{}, fmt.Errorf("invalid token signature")
	}
	if s.now().After(expiresAt) {
		return "", "", time.Time{}, fmt.Errorf("token expired")
	}
	return string(rawID), kind, expiresAt, nil
}

func (s *CallbackSigner) sign(encodedID, kind, ts string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(encodedID + "|" + kind + "|" + ts))
	return hex.EncodeToString(mac.Sum(nil))
}
