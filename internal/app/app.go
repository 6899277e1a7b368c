package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/five82/xnatrack/internal/dataset"
	"github.com/five82/xnatrack/internal/query"
	"github.com/five82/xnatrack/internal/xnat"
)

// Status classifies a Result.
type Status string

const (
	StatusOK         Status = "ok"
	StatusNotNeeded  Status = "notneeded"
	StatusImpossible Status = "impossible"
	StatusError      Status = "error"
)

// Failed reports whether the status should fail the command.
func (s Status) Failed() bool {
	return s == StatusError || s == StatusImpossible
}

// Result is one structured outcome of a command.
type Result struct {
	Action  string            `json:"action" yaml:"action"`
	Status  Status            `json:"status" yaml:"status"`
	Type    string            `json:"type,omitempty" yaml:"type,omitempty"`
	Path    string            `json:"path,omitempty" yaml:"path,omitempty"`
	Message string            `json:"message,omitempty" yaml:"message,omitempty"`
	Items   []string          `json:"items,omitempty" yaml:"items,omitempty"`
	Records []xnat.Record     `json:"records,omitempty" yaml:"records,omitempty"`
	File    *query.FileRecord `json:"file,omitempty" yaml:"file,omitempty"`

	// Err is the underlying failure for error and impossible results.
	Err error `json:"-" yaml:"-"`
}

// CredentialStore resolves and persists named credentials.
type CredentialStore interface {
	xnat.CredentialResolver
	Set(name string, cred xnat.Credential) error
	Names() ([]string, error)
}

// App holds the services shared by all commands.
type App struct {
	Credentials CredentialStore
	// NewDataset returns the version-control services for a dataset
	// directory.
	NewDataset func(dir string) Dataset
	HTTPClient *http.Client
	Logger     *slog.Logger
	UserAgent  string
}

// Dataset combines the host services a tracked dataset needs.
type Dataset interface {
	dataset.Recorder
	dataset.Registrar
}

// New returns an App using the datalad-backed dataset services.
func New(creds CredentialStore, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &App{
		Credentials: creds,
		NewDataset: func(dir string) Dataset {
			return dataset.NewDatalad(dir, dataset.Options{Logger: logger})
		},
		Logger: logger,
	}
}

func (a *App) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.Logger
}

func (a *App) connect(ctx context.Context, url, credential string) (*xnat.Connection, error) {
	opts := xnat.Options{
		Credential: credential,
		HTTPClient: a.HTTPClient,
		Logger:     a.logger(),
		UserAgent:  a.UserAgent,
	}
	if a.Credentials != nil {
		opts.Resolver = a.Credentials
	}
	return xnat.Connect(ctx, url, opts)
}

// userLabel names the identity a connection acts as.
func userLabel(conn *xnat.Connection) string {
	if conn.CredentialName() == xnat.Anonymous || conn.AuthenticatedUser() == "" {
		return xnat.Anonymous
	}
	return conn.AuthenticatedUser()
}

func errorResult(action, path string, err error) Result {
	return Result{Action: action, Status: StatusError, Path: path, Message: err.Error(), Err: err}
}

// resolveDataset returns the absolute dataset directory, "" meaning the
// working directory.
func resolveDataset(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", errors.New(abs + " is not a directory")
	}
	return abs, nil
}
