package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Presign errors.
var (
	ErrSignatureInvalid = errors.New("upload signature invalid")
	ErrSignatureExpired = errors.New("upload signature expired")
)

// Presigner issues and verifies time-limited upload URLs. The URL
// carries the object key, an expiry and an HMAC over both, so the
// client can PUT directly without any other credential.
type Presigner struct {
	key     []byte
	ttl     time.Duration
	baseURL string
}

// NewPresigner creates a presigner. The signing key is required.
func NewPresigner(key string, ttl time.Duration, baseURL string) (*Presigner, error) {
	if key == "" {
		return nil, errors.New("storage sign key is required")
	}
	return &Presigner{key: []byte(key), ttl: ttl, baseURL: baseURL}, nil
}

// SignedURL returns a time-limited PUT URL for the given object key.
func (p *Presigner) SignedURL(objectKey string, now time.Time) string {
	expires := now.Add(p.ttl).Unix()

	q := url.Values{}
	q.Set("key", objectKey)
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("signature", p.sign(objectKey, expires))

	return fmt.Sprintf("%s/upload?%s", p.baseURL, q.Encode())
}

// Verify checks the signature and expiry for an upload request.
func (p *Presigner) Verify(objectKey string, expires int64, signature string, now time.Time) error {
	expected := p.sign(objectKey, expires)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrSignatureInvalid
	}
	if now.Unix() > expires {
		return ErrSignatureExpired
	}
	return nil
}

func (p *Presigner) sign(objectKey string, expires int64) string {
	mac := hmac.New(sha256.New, p.key)
	fmt.Fprintf(mac, "%s\n%d", objectKey, expires)
	return hex.EncodeToString(mac.Sum(nil))
}
