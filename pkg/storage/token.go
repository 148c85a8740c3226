package storage

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

// DownloadSigner mints and verifies the HMAC tokens that guard archived
// export downloads. The token embeds the export id and archive path, so
// the download endpoint needs no database lookup.
type DownloadSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewDownloadSigner constructs a signer with the provided secret and TTL.
func NewDownloadSigner(secret string, ttl time.Duration) *DownloadSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &DownloadSigner{secret: []byte(secret), ttl: ttl}
}

// TTL reports how long minted tokens stay valid.
func (s *DownloadSigner) TTL() time.Duration {
	return s.ttl
}

// Sign returns a token referencing the export and its archived file.
func (s *DownloadSigner) Sign(exportID, name string) (string, time.Time, error) {
	if exportID == "" || name == "" {
		return "", time.Time{}, fmt.Errorf("export id and archive name required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := time.Now().Add(s.ttl)
	encoded := base64.RawURLEncoding.EncodeToString([]byte(name))
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	token := strings.Join([]string{exportID, ts, encoded, s.signature(exportID, ts, encoded)}, ".")
	return token, expiresAt, nil
}

// Verify checks the token signature and expiry, returning the embedded
// export id and archive name.
func (s *DownloadSigner) Verify(token string) (exportID, name string, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", fmt.Errorf("malformed download token")
	}
	exportID, ts, encoded, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.signature(exportID, ts, encoded)), []byte(signature)) {
		return "", "", fmt.Errorf("invalid token signature")
	}

	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", "", fmt.Errorf("invalid token timestamp")
	}
	if time.Now().After(time.Unix(expUnix, 0)) {
		return "", "", fmt.Errorf("download token expired")
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", fmt.Errorf("decode archive name: %w", err)
	}
	return exportID, string(raw), nil
}

func (s *DownloadSigner) signature(exportID, ts, encoded string) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s|%s|%s", exportID, ts, encoded)
	return hex.EncodeToString(mac.Sum(nil))
}
