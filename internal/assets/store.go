// Package assets stores uploaded attachments on disk and issues expiring
// signed URLs the delivery gateway can fetch them from.
package assets

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid download token")
	ErrBadPath      = errors.New("invalid asset path")
)

type Store struct {
	dir        string
	publicBase string
	signingKey []byte
	urlTTL     time.Duration
}

func NewStore(dir, publicBase, signingKey string, urlTTL time.Duration) *Store {
	return &Store{
		dir:        dir,
		publicBase: strings.TrimRight(publicBase, "/"),
		signingKey: []byte(signingKey),
		urlTTL:     urlTTL,
	}
}

// Save writes the asset under <dir>/<accountID>/<filename> and returns the
// storage-relative path recorded on the message row.
func (s *Store) Save(accountID, filename string, r io.Reader) (string, error) {
	rel, err := cleanRel(accountID + "/" + filename)
	if err != nil {
		return "", err
	}

	abs := filepath.Join(s.dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o700); err != nil {
		return "", fmt.Errorf("create asset dir: %w", err)
	}

	f, err := os.OpenFile(abs, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	return rel, nil
}

// SignedURL returns a URL valid for the configured TTL. The token is an
// HS256 JWT whose subject is the storage-relative path.
func (s *Store) SignedURL(path string) (string, error) {
	rel, err := cleanRel(path)
	if err != nil {
		return "", err
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   rel,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.urlTTL)),
	})

	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", err
	}

	return s.publicBase + "/v1/files/" + signed, nil
}

// Verify validates a download token and returns the asset path it grants.
func (s *Store) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrInvalidToken
	}
	return cleanRel(sub)
}

// Open returns the asset file for streaming to a verified downloader.
func (s *Store) Open(path string) (*os.File, error) {
	rel, err := cleanRel(path)
	if err != nil {
		return nil, err
	}
	return os.Open(filepath.Join(s.dir, filepath.FromSlash(rel)))
}

// Delete removes the asset. Missing files are not an error: the sweep is
// idempotent and may race an earlier deletion.
func (s *Store) Delete(path string) error {
	rel, err := cleanRel(path)
	if err != nil {
		return err
	}

	err = os.Remove(filepath.Join(s.dir, filepath.FromSlash(rel)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func cleanRel(path string) (string, error) {
	rel := strings.TrimPrefix(strings.TrimSpace(path), "/")
	if rel == "" || strings.Contains(rel, "..") || strings.Contains(rel, "\\") {
		return "", ErrBadPath
	}
	return rel, nil
}
