package app

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sort"

	"github.com/five82/xnatrack/internal/config"
	"github.com/five82/xnatrack/internal/dataset"
	"github.com/five82/xnatrack/internal/xnat"
)

const actionInit = "xnat_init"

// InitOptions configure Init.
type InitOptions struct {
	Dataset    string
	URL        string
	Project    string
	PathSpec   string
	Credential string
	Force      bool
}

// Init configures a dataset to track an XNAT project. Without a project it
// reports the projects available to the session instead.
func (a *App) Init(ctx context.Context, opts InitOptions) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		dir, err := resolveDataset(opts.Dataset)
		if err != nil {
			yield(errorResult(actionInit, opts.Dataset, fmt.Errorf("no dataset found: %w", err)))
			return
		}
		base := Result{Action: actionInit, Path: dir, Type: "dataset"}

		conn, err := a.connect(ctx, opts.URL, opts.Credential)
		if err != nil {
			yield(errorResult(actionInit, dir, err))
			return
		}
		log := a.logger().With(slog.String("command", "init"))

		if opts.Project == "" {
			user := userLabel(conn)
			log.Info("querying projects", slog.String("url", conn.URL()), slog.String("user", user))
			ids, err := conn.ProjectIDs(ctx)
			if err != nil {
				yield(errorResult(actionInit, dir, err))
				return
			}
			sort.Strings(ids)
			res := base
			res.Status = StatusNotNeeded
			res.Message = fmt.Sprintf("No project name specified. The following projects are available on %s for user %s:", conn.URL(), user)
			res.Items = ids
			yield(res)
			return
		}

		nsubj, err := conn.SubjectCount(ctx, opts.Project)
		if err != nil {
			yield(errorResult(actionInit, dir, fmt.Errorf("failed to obtain information on project %s from XNAT: %w", opts.Project, err)))
			return
		}
		log.Info("XNAT reports subjects on record", slog.Int("subjects", nsubj), slog.String("project", opts.Project))

		cfg, err := config.Load(dir)
		if err != nil {
			yield(errorResult(actionInit, dir, err))
			return
		}
		name := cfg.Name()
		if _, ok := cfg.XNAT[name]; ok && !opts.Force {
			res := base
			res.Status = StatusError
			res.Message = "Dataset found already initialized, use force to reinitialize"
			yield(res)
			return
		}

		pathSpec := opts.PathSpec
		if pathSpec == "" {
			pathSpec = config.DefaultPathSpec
		}
		tracking := config.Tracking{
			URL:            conn.URL(),
			Project:        opts.Project,
			Path:           pathSpec,
			CredentialName: conn.CredentialName(),
		}
		cfg.Set(name, tracking)
		cfgPath, err := config.Save(dir, cfg)
		if err != nil {
			yield(errorResult(actionInit, dir, err))
			return
		}

		ds := a.NewDataset(dir)
		if err := ds.Save(ctx, dataset.SaveRequest{
			Message: "Configure default XNAT url and project",
			Paths:   []string{cfgPath},
			ToGit:   true,
		}); err != nil {
			yield(errorResult(actionInit, dir, err))
			return
		}

		if tracking.CredentialName != xnat.Anonymous {
			providerPath, err := config.WriteProvider(dir, name, tracking)
			if err != nil {
				yield(errorResult(actionInit, dir, err))
				return
			}
			if err := ds.Save(ctx, dataset.SaveRequest{
				Message: "Configure XNAT access authentication",
				Paths:   []string{providerPath},
				ToGit:   true,
			}); err != nil {
				yield(errorResult(actionInit, dir, err))
				return
			}
			if err := ds.EnableSpecialRemote(ctx); err != nil {
				yield(errorResult(actionInit, dir, err))
				return
			}
		}

		res := base
		res.Status = StatusOK
		res.Message = fmt.Sprintf("tracking project %s on %s (%d subjects)", opts.Project, conn.URL(), nsubj)
		yield(res)
	}
}
