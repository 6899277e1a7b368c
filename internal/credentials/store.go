// Package credentials resolves named XNAT user/password credentials.
//
// Lookup order: process environment, an optional dotenv file, then the TOML
// credentials file (~/.config/xnatrack/credentials.toml). Environment keys
// are XNATRACK_CREDENTIAL_<NAME>_USER and XNATRACK_CREDENTIAL_<NAME>_PASSWORD,
// where NAME is upper-cased with every non-alphanumeric rune replaced by "_".
package credentials

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/xnatrack/internal/xnat"
)

const (
	defaultCredentialsPath = "~/.config/xnatrack/credentials.toml"
	envPrefix              = "XNATRACK_CREDENTIAL_"
)

// ErrNotFound is returned when no source knows a credential.
var ErrNotFound = errors.New("credential not found")

var _ xnat.CredentialResolver = (*Store)(nil)

// Store looks up and persists credentials.
type Store struct {
	path   string
	dotenv map[string]string
	getenv func(string) string
}

type credentialsFile struct {
	Credential map[string]xnat.Credential `toml:"credential"`
}

// Open prepares a Store backed by the credentials file at path (empty uses
// the default location). envFile, when set, names a dotenv file whose
// variables are consulted after the process environment.
func Open(path, envFile string) (*Store, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, err
	}
	s := &Store{path: resolved, getenv: os.Getenv}
	if strings.TrimSpace(envFile) != "" {
		vars, err := godotenv.Read(envFile)
		if err != nil {
			return nil, fmt.Errorf("read env file: %w", err)
		}
		s.dotenv = vars
	}
	return s, nil
}

// Path returns the credentials file location.
func (s *Store) Path() string { return s.path }

// Lookup implements xnat.CredentialResolver.
func (s *Store) Lookup(name, urlHint string) (xnat.Credential, error) {
	if cred, ok := s.fromEnv(name); ok {
		return cred, nil
	}

	stored, err := s.load()
	if err != nil {
		return xnat.Credential{}, err
	}
	if cred, ok := stored.Credential[name]; ok && cred.User != "" {
		return cred, nil
	}

	if urlHint != "" {
		return xnat.Credential{}, fmt.Errorf("%w: %q (an account can be registered at %s)", ErrNotFound, name, urlHint)
	}
	return xnat.Credential{}, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// Set stores a credential in the credentials file, replacing any previous
// entry with the same name.
func (s *Store) Set(name string, cred xnat.Credential) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("credential name is empty")
	}
	if strings.TrimSpace(cred.User) == "" {
		return errors.New("credential user is empty")
	}
	stored, err := s.load()
	if err != nil {
		return err
	}
	if stored.Credential == nil {
		stored.Credential = map[string]xnat.Credential{}
	}
	stored.Credential[name] = cred

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}
	bytes, err := toml.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	if err := os.WriteFile(s.path, bytes, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

// Names lists the credentials stored in the credentials file.
func (s *Store) Names() ([]string, error) {
	stored, err := s.load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(stored.Credential))
	for name := range stored.Credential {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) fromEnv(name string) (xnat.Credential, bool) {
	key := envKey(name)
	lookup := func(k string) string {
		if v := s.getenv(k); v != "" {
			return v
		}
		return s.dotenv[k]
	}
	user := lookup(key + "_USER")
	if user == "" {
		return xnat.Credential{}, false
	}
	return xnat.Credential{User: user, Password: lookup(key + "_PASSWORD")}, true
}

func (s *Store) load() (credentialsFile, error) {
	var stored credentialsFile
	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return stored, nil
		}
		return stored, fmt.Errorf("open credentials: %w", err)
	}
	defer func() { _ = file.Close() }()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return stored, fmt.Errorf("read credentials: %w", err)
	}
	if err := toml.Unmarshal(bytes, &stored); err != nil {
		return stored, fmt.Errorf("parse credentials: %w", err)
	}
	return stored, nil
}

func envKey(name string) string {
	var b strings.Builder
	b.WriteString(envPrefix)
	for _, r := range strings.ToUpper(name) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultCredentialsPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
