package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/romeosyl08-png/resto/pkg/httpmiddleware"
)

// StaffKeyHeader carries the staff API key.
const StaffKeyHeader = "X-Staff-Key"

// StaffAuth authenticates staff requests by the HMAC-SHA256 of their API
// key. Only hashes are configured, never the keys themselves.
type StaffAuth struct {
	pepper []byte
	hashes [][]byte
}

// NewStaffAuth returns a StaffAuth accepting keys whose hex-encoded hash is
// listed in hexHashes. Malformed hashes are ignored.
func NewStaffAuth(pepper []byte, hexHashes []string) *StaffAuth {
	a := &StaffAuth{pepper: pepper}
	for _, h := range hexHashes {
		b, err := hex.DecodeString(strings.TrimSpace(h))
		if err != nil || len(b) != sha256.Size {
			continue
		}
		a.hashes = append(a.hashes, b)
	}
	return a
}

// HashKey returns the hex-encoded hash of key as stored in configuration.
func HashKey(pepper []byte, key string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// Allow reports whether key matches a configured hash.
func (a *StaffAuth) Allow(key string) bool {
	if key == "" {
		return false
	}
	mac := hmac.New(sha256.New, a.pepper)
	mac.Write([]byte(key))
	sum := mac.Sum(nil)

	ok := 0
	for _, h := range a.hashes {
		ok |= subtle.ConstantTimeCompare(sum, h)
	}
	return ok == 1
}

// Middleware rejects requests without a valid staff key.
func (a *StaffAuth) Middleware() httpmiddleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.Allow(r.Header.Get(StaffKeyHeader)) {
				zctx.From(r.Context()).Warn("Staff request rejected", zap.String("path", r.URL.Path))
				writeError(w, http.StatusUnauthorized, "unauthorized", "Staff access required.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
