package filestore

// Package filestore persists the session credential pair in a JSON file owned by the user.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	domainauth "github.com/agrimarket/agrimarket-ui/internal/domain/auth"
	"github.com/agrimarket/agrimarket-ui/internal/ports"
)

const (
	// DefaultScope is used when no scope is configured.
	DefaultScope = "default"

	fileMode = 0o600
	dirMode  = 0o700
)

var (
	_ ports.CredentialStore = (*Store)(nil)

	scopePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
)

// Options configures a Store.
type Options struct {
	// Dir holds the credential files. Defaults to <user config dir>/agrimarket.
	Dir string
	// Scope names the credential file, letting several installations share Dir.
	Scope string
}

// Store keeps the credential pair in <Dir>/<Scope>.json. Writes go to a temp file in the
// same directory and are renamed into place, so readers never observe half a pair.
type Store struct {
	path string
}

// New creates a file-backed credential store.
func New(opts Options) (*Store, error) {
	scope := opts.Scope
	if scope == "" {
		scope = DefaultScope
	}
	if !scopePattern.MatchString(scope) {
		return nil, fmt.Errorf("invalid credential scope %q", scope)
	}

	dir := opts.Dir
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolve config dir: %w", err)
		}
		dir = filepath.Join(base, "agrimarket")
	}
	return &Store{path: filepath.Join(dir, scope+".json")}, nil
}

// Path returns the credential file location.
func (s *Store) Path() string { return s.path }

func (s *Store) Load(ctx context.Context) (domainauth.Credentials, error) {
	if err := ctx.Err(); err != nil {
		return domainauth.Credentials{}, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domainauth.Credentials{}, domainauth.ErrNoCredentials
		}
		return domainauth.Credentials{}, fmt.Errorf("read credentials: %w", err)
	}

	var creds domainauth.Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return domainauth.Credentials{}, fmt.Errorf("%w: %w", domainauth.ErrCorruptCredentials, err)
	}
	if err := creds.Validate(); err != nil {
		return domainauth.Credentials{}, fmt.Errorf("%w: %w", domainauth.ErrCorruptCredentials, err)
	}
	return creds, nil
}

func (s *Store) Save(ctx context.Context, creds domainauth.Credentials) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := creds.Validate(); err != nil {
		return fmt.Errorf("refusing to save partial credentials: %w", err)
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	dir := filepath.Dir(s.path)
	if mkErr := os.MkdirAll(dir, dirMode); mkErr != nil {
		return fmt.Errorf("create credential dir: %w", mkErr)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op once the rename succeeded.
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(fileMode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace credentials: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove credentials: %w", err)
	}
	return nil
}
