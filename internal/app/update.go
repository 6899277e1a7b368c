package app

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"path/filepath"
	"slices"
	"sort"

	"github.com/five82/xnatrack/internal/config"
	"github.com/five82/xnatrack/internal/dataset"
	"github.com/five82/xnatrack/internal/query"
	"github.com/five82/xnatrack/internal/table"
	"github.com/five82/xnatrack/internal/xnat"
)

const (
	actionUpdate = "xnat_update"
	actionParse  = "xnat_parse"

	// SubjectsList reports the subjects of the tracked project.
	SubjectsList = "list"
	// SubjectsAll updates every subject of the tracked project.
	SubjectsAll = "all"
)

// UpdateOptions configure Update.
type UpdateOptions struct {
	Dataset    string
	Subjects   []string
	Credential string
	// IfExists is passed to URL registration: "", "overwrite" or "skip".
	IfExists string
	// Reckless "fast" registers URLs without downloading content.
	Reckless string
	// Force rebuilds existing URL tables.
	Force          bool
	ResourceColumn bool
	Jobs           int
}

// TablePath returns the URL table location for a subject.
func TablePath(dataset, subject string) string {
	return filepath.Join(dataset, "code", "addurl_files", subject+"_table.csv")
}

// Update refreshes the files of one or more subjects of the tracked project.
func (a *App) Update(ctx context.Context, opts UpdateOptions) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		if err := validateUpdate(opts); err != nil {
			yield(errorResult(actionUpdate, opts.Dataset, err))
			return
		}
		dir, err := resolveDataset(opts.Dataset)
		if err != nil {
			yield(errorResult(actionUpdate, opts.Dataset, fmt.Errorf("no dataset found: %w", err)))
			return
		}
		base := Result{Action: actionUpdate, Path: dir, Type: "dataset"}
		ds := a.NewDataset(dir)

		dirty, err := ds.Dirty(ctx)
		if err != nil {
			yield(errorResult(actionUpdate, dir, err))
			return
		}
		if dirty {
			res := base
			res.Status = StatusImpossible
			res.Message = "Clean dataset required; inspect unsaved changes with `git status`"
			yield(res)
			return
		}

		cfg, err := config.Load(dir)
		if err != nil {
			yield(errorResult(actionUpdate, dir, err))
			return
		}
		name, tracking, ok := cfg.Active()
		if !ok {
			yield(errorResult(actionUpdate, dir, fmt.Errorf("no XNAT configuration %q found, run `xnatrack init` first", name)))
			return
		}

		credential := opts.Credential
		if credential == "" {
			credential = tracking.CredentialName
		}
		conn, err := a.connect(ctx, tracking.URL, credential)
		if err != nil {
			yield(errorResult(actionUpdate, dir, err))
			return
		}
		log := a.logger().With(slog.String("command", "update"), slog.String("project", tracking.Project))

		env, err := a.registrationEnv(dir, name, conn)
		if err != nil {
			yield(errorResult(actionUpdate, dir, err))
			return
		}

		subjects := opts.Subjects
		if len(subjects) == 0 {
			subjects = []string{SubjectsList}
		}

		if slices.Contains(subjects, SubjectsList) {
			ids, err := conn.SubjectIDs(ctx, tracking.Project)
			if err != nil {
				yield(errorResult(actionUpdate, dir, err))
				return
			}
			sort.Strings(ids)
			res := base
			res.Status = StatusNotNeeded
			res.Message = fmt.Sprintf("The following subjects are available for XNAT project %s. Specify subjects or %q to download associated files:", tracking.Project, SubjectsAll)
			res.Items = ids
			yield(res)
			return
		}

		var subs []string
		if slices.Contains(subjects, SubjectsAll) {
			subs, err = conn.SubjectIDs(ctx, tracking.Project)
			if err != nil {
				yield(errorResult(actionUpdate, dir, err))
				return
			}
		} else {
			for _, s := range subjects {
				ids, err := conn.ExperimentIDs(ctx, xnat.ExperimentFilter{Project: tracking.Project, Subject: s})
				if err != nil {
					yield(errorResult(actionUpdate, dir, err))
					return
				}
				if len(ids) == 0 {
					res := base
					res.Status = StatusImpossible
					res.Message = fmt.Sprintf("Failed to obtain information on subject %s from XNAT project %s", s, tracking.Project)
					yield(res)
					return
				}
				subs = append(subs, s)
			}
		}

		schema := table.DefaultSchema
		if opts.ResourceColumn {
			schema = table.ResourceSchema
		}
		writer := table.NewWriter(table.Options{Schema: schema, Force: opts.Force, Logger: a.logger()})
		pipeline := query.New(conn, a.logger())

		for _, sub := range subs {
			tablePath := TablePath(dir, sub)
			log.Info("querying subject", slog.String("subject", sub))
			records := pipeline.Files(ctx, query.Filter{Project: tracking.Project, Subject: sub})
			outcome, rows, err := writer.Write(tablePath, records)
			if err != nil {
				yield(errorResult(actionParse, tablePath, err))
				return
			}

			parsed := Result{Action: actionParse, Path: tablePath, Type: "file"}
			switch outcome {
			case table.Exists:
				parsed.Status = StatusNotNeeded
				parsed.Message = "table already exists, use force to query latest subject info"
			default:
				if err := ds.Save(ctx, dataset.SaveRequest{
					Message: "Add file url table for " + sub,
					Paths:   []string{tablePath},
					ToGit:   true,
				}); err != nil {
					yield(errorResult(actionParse, tablePath, err))
					return
				}
				parsed.Status = StatusOK
				parsed.Message = fmt.Sprintf("%d files", rows)
			}
			if !yield(parsed) {
				return
			}

			log.Info("registering files", slog.String("subject", sub))
			if err := ds.AddURLs(ctx, dataset.AddURLsRequest{
				Table:          tablePath,
				URLFormat:      "{url}",
				FilenameFormat: tracking.Path + "{filename}",
				IfExists:       opts.IfExists,
				Fast:           opts.Reckless == "fast",
				Jobs:           opts.Jobs,
				Env:            env,
			}); err != nil {
				yield(errorResult(actionUpdate, tablePath, err))
				return
			}
			if err := ds.Save(ctx, dataset.SaveRequest{
				Message:   "Update files for subject " + sub,
				Recursive: true,
			}); err != nil {
				yield(errorResult(actionUpdate, dir, err))
				return
			}
		}

		sorted := slices.Clone(subs)
		sort.Strings(sorted)
		res := base
		res.Status = StatusOK
		res.Message = fmt.Sprintf("Files were updated for the following subjects in XNAT project %s (configuration %s):", tracking.Project, name)
		res.Items = sorted
		yield(res)
	}
}

// registrationEnv exports the session's credential to URL registration under
// the name the dataset's provider file expects. Anonymous sessions need none.
func (a *App) registrationEnv(dir, name string, conn *xnat.Connection) ([]string, error) {
	credential := conn.CredentialName()
	if credential == xnat.Anonymous {
		return nil, nil
	}
	exported := credential
	provider, ok, err := config.LoadProvider(dir, name)
	if err != nil {
		return nil, err
	}
	if ok && provider.Credential != "" {
		exported = provider.Credential
	} else {
		a.logger().Warn("no provider file for authenticated server, downloads may fail",
			slog.String("path", config.ProviderPath(dir, name)))
	}
	if a.Credentials == nil {
		return nil, &xnat.ConfigError{Credential: credential, URL: conn.URL(), Err: errors.New("no credential store configured")}
	}
	cred, err := a.Credentials.Lookup(credential, conn.URL()+"/app/template/Register.vm")
	if err != nil {
		return nil, &xnat.ConfigError{Credential: credential, URL: conn.URL(), Err: err}
	}
	return dataset.CredentialEnv(exported, cred.User, cred.Password), nil
}

func validateUpdate(opts UpdateOptions) error {
	switch opts.IfExists {
	case "", "overwrite", "skip":
	default:
		return fmt.Errorf("invalid ifexists value %q, want overwrite or skip", opts.IfExists)
	}
	switch opts.Reckless {
	case "", "fast":
	default:
		return fmt.Errorf("invalid reckless mode %q, want fast", opts.Reckless)
	}
	if opts.Jobs < 0 {
		return errors.New("jobs must not be negative")
	}
	return nil
}
