// Package dataset defines the host version-control services the commands
// depend on and an implementation that drives the git and datalad CLIs.
package dataset

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// SpecialRemote is the git-annex special remote datalad uses to fetch URLs
// that need its downloaders (and therefore its provider configuration).
const SpecialRemote = "datalad"

// SaveRequest describes a change to record.
type SaveRequest struct {
	Message string
	Paths   []string
	// ToGit stores content directly in git instead of the annex.
	ToGit     bool
	Recursive bool
}

// Recorder records changes to a dataset.
type Recorder interface {
	Dirty(ctx context.Context) (bool, error)
	Save(ctx context.Context, req SaveRequest) error
}

// AddURLsRequest describes one bulk URL registration.
type AddURLsRequest struct {
	Table          string
	URLFormat      string
	FilenameFormat string
	// IfExists is "", "overwrite" or "skip".
	IfExists string
	// Fast registers URLs without downloading or verifying content.
	Fast bool
	Jobs int
	// Env holds extra NAME=value pairs for the registration process, e.g.
	// the credential named by the dataset's provider file.
	Env []string
}

// Registrar registers remote URLs under dataset paths.
type Registrar interface {
	// EnableSpecialRemote makes sure the datalad special remote exists.
	EnableSpecialRemote(ctx context.Context) error
	AddURLs(ctx context.Context, req AddURLsRequest) error
}

// Runner executes a command in dir with env appended to the process
// environment and returns its combined output.
type Runner func(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, error)

// Datalad implements Recorder and Registrar using the git and datalad
// executables.
type Datalad struct {
	dir     string
	datalad string
	git     string
	run     Runner
	logger  *slog.Logger
}

var (
	_ Recorder  = (*Datalad)(nil)
	_ Registrar = (*Datalad)(nil)
)

// Options configure NewDatalad. Empty binaries default to "datalad" and
// "git"; a nil Runner uses os/exec.
type Options struct {
	DataladBin string
	GitBin     string
	Runner     Runner
	Logger     *slog.Logger
}

// NewDatalad returns a Datalad bound to the dataset at dir.
func NewDatalad(dir string, opts Options) *Datalad {
	d := &Datalad{
		dir:     dir,
		datalad: opts.DataladBin,
		git:     opts.GitBin,
		run:     opts.Runner,
		logger:  opts.Logger,
	}
	if d.datalad == "" {
		d.datalad = "datalad"
	}
	if d.git == "" {
		d.git = "git"
	}
	if d.run == nil {
		d.run = execRunner
	}
	if d.logger == nil {
		d.logger = slog.New(slog.DiscardHandler)
	}
	d.logger = d.logger.With(slog.String("component", "dataset"), slog.String("dataset", dir))
	return d
}

// Dirty reports whether the working tree has uncommitted changes.
func (d *Datalad) Dirty(ctx context.Context) (bool, error) {
	out, err := d.exec(ctx, nil, d.git, "status", "--porcelain", "--untracked-files=normal")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(out)) != "", nil
}

// Save runs `datalad save`.
func (d *Datalad) Save(ctx context.Context, req SaveRequest) error {
	args := []string{"save", "-d", d.dir, "-m", req.Message}
	if req.ToGit {
		args = append(args, "--to-git")
	}
	if req.Recursive {
		args = append(args, "-r")
	}
	if len(req.Paths) > 0 {
		args = append(args, "--")
		args = append(args, req.Paths...)
	}
	_, err := d.exec(ctx, nil, d.datalad, args...)
	return err
}

// EnableSpecialRemote initializes the datalad special remote unless git
// already knows it.
func (d *Datalad) EnableSpecialRemote(ctx context.Context) error {
	out, err := d.run(ctx, d.dir, nil, d.git, "config", "--get", "remote."+SpecialRemote+".annex-uuid")
	if err == nil && strings.TrimSpace(string(out)) != "" {
		return nil
	}
	d.logger.Info("enabling special remote", slog.String("remote", SpecialRemote))
	_, err = d.exec(ctx, nil, d.git, "annex", "initremote", SpecialRemote,
		"encryption=none",
		"type=external",
		"externaltype="+SpecialRemote,
		"autoenable=true",
	)
	return err
}

// AddURLs runs `datalad addurls` without saving.
func (d *Datalad) AddURLs(ctx context.Context, req AddURLsRequest) error {
	args := []string{"addurls", "-d", d.dir, "--nosave"}
	if req.IfExists != "" {
		args = append(args, "--ifexists", req.IfExists)
	}
	if req.Fast {
		args = append(args, "--fast")
	}
	if req.Jobs > 0 {
		args = append(args, "-J", strconv.Itoa(req.Jobs))
	}
	args = append(args, req.Table, req.URLFormat, req.FilenameFormat)
	_, err := d.exec(ctx, req.Env, d.datalad, args...)
	return err
}

func (d *Datalad) exec(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
	d.logger.Debug("run", slog.String("cmd", name), slog.Any("args", args), slog.Int("env", len(env)))
	out, err := d.run(ctx, d.dir, env, name, args...)
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return out, fmt.Errorf("%s %s: %w: %s", name, args[0], err, msg)
		}
		return out, fmt.Errorf("%s %s: %w", name, args[0], err)
	}
	return out, nil
}

// CredentialEnv returns the environment through which datalad picks up the
// user/password credential called name: DATALAD_CREDENTIAL_<NAME>_USER and
// _PASSWORD, with "-" spelled "__" and other separators "_".
func CredentialEnv(name, user, password string) []string {
	var b strings.Builder
	b.WriteString("DATALAD_CREDENTIAL_")
	for _, r := range strings.ToUpper(name) {
		switch {
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		case r == '-':
			b.WriteString("__")
		default:
			b.WriteByte('_')
		}
	}
	prefix := b.String()
	return []string{prefix + "_USER=" + user, prefix + "_PASSWORD=" + password}
}

func execRunner(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.Bytes(), err
}
