// Package auth matches submitted credentials against the user directory
// and enforces the source-IP allowlist.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"go.uber.org/zap"

	"github.com/snapetech/iptv-portal/internal/config"
	"github.com/snapetech/iptv-portal/internal/directory"
	"github.com/snapetech/iptv-portal/internal/errs"
)

// Directory is the read-only user store the authenticator consults.
type Directory interface {
	List(ctx context.Context) ([]directory.UserRecord, error)
}

// Authenticator checks username/password/IP tuples. Mode selects whether
// the password hash is compared (AuthModePassword) or skipped entirely
// (AuthModeIPOnly, for directories provisioned without passwords).
type Authenticator struct {
	dir  Directory
	mode string
	log  *zap.Logger
}

func New(dir Directory, mode string, log *zap.Logger) *Authenticator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Authenticator{dir: dir, mode: mode, log: log}
}

// HashPassword returns the hex sha256 digest of the UTF-8 password, the
// digest form stored in the directory's password_hash column.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// Authenticate returns the identity (the directory username) on success.
// Failures are taxonomy errors:
//   - IPNotResolved when clientIP is empty (lookup still pending)
//   - DirectoryUnavailable when the directory cannot be read
//   - InvalidCredentials for unknown user or wrong password; the two are
//     deliberately indistinguishable so usernames cannot be enumerated
//   - IPNotAuthorized, carrying the observed IP, when credentials match
//     but the source IP is not in the record's allowlist
//
// No lockout counters and no write-back; brute-force protection is out
// of scope for this deployment size.
func (a *Authenticator) Authenticate(ctx context.Context, username, password, clientIP string) (string, error) {
	if clientIP == "" {
		return "", errs.New(errs.IPNotResolved)
	}

	records, err := a.dir.List(ctx)
	if err != nil {
		return "", err
	}

	var record *directory.UserRecord
	for i := range records {
		if records[i].Username == username { // case-sensitive, exact
			record = &records[i]
			break
		}
	}
	if record == nil {
		a.log.Info("login rejected: unknown user", zap.String("username", username))
		return "", errs.New(errs.InvalidCredentials)
	}

	if a.mode == config.AuthModePassword {
		supplied := HashPassword(password)
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(record.PasswordHash)) != 1 {
			a.log.Info("login rejected: wrong password", zap.String("username", username))
			return "", errs.New(errs.InvalidCredentials)
		}
	}

	if !record.AllowsIP(clientIP) {
		a.log.Info("login rejected: ip not in allowlist",
			zap.String("username", username), zap.String("ip", clientIP))
		return "", errs.NotAuthorized(clientIP)
	}

	a.log.Info("login ok", zap.String("username", username), zap.String("ip", clientIP))
	return record.Username, nil
}
