package app

import (
	"context"
	"fmt"
	"iter"
	"sort"

	"github.com/five82/xnatrack/internal/query"
	"github.com/five82/xnatrack/internal/table"
)

const (
	actionQuery      = "xnat_query"
	actionQueryFiles = "xnat_query_files"
)

// QueryOptions configure Query.
type QueryOptions struct {
	URL        string
	Project    string
	Credential string
}

// Query lists the projects of a server, or the subjects of one project.
func (a *App) Query(ctx context.Context, opts QueryOptions) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		conn, err := a.connect(ctx, opts.URL, opts.Credential)
		if err != nil {
			yield(errorResult(actionQuery, opts.URL, err))
			return
		}
		res := Result{Action: actionQuery, Path: conn.URL(), Type: "directory", Status: StatusOK}

		if opts.Project == "" {
			projects, err := conn.Projects(ctx)
			if err != nil {
				yield(errorResult(actionQuery, conn.URL(), err))
				return
			}
			res.Message = fmt.Sprintf("%d projects available to user %s", len(projects), userLabel(conn))
			res.Records = projects
			yield(res)
			return
		}

		ids, err := conn.SubjectIDs(ctx, opts.Project)
		if err != nil {
			yield(errorResult(actionQuery, conn.URL(), err))
			return
		}
		sort.Strings(ids)
		res.Message = fmt.Sprintf("%d subjects in project %s", len(ids), opts.Project)
		res.Items = ids
		yield(res)
	}
}

// QueryFilesOptions configure QueryFiles.
type QueryFilesOptions struct {
	URL         string
	Project     string
	Subject     string
	Experiments []string
	Credential  string

	// Table, when set, also writes the records to a URL table.
	Table          string
	Force          bool
	ResourceColumn bool
}

// QueryFiles streams one result per file record.
func (a *App) QueryFiles(ctx context.Context, opts QueryFilesOptions) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		conn, err := a.connect(ctx, opts.URL, opts.Credential)
		if err != nil {
			yield(errorResult(actionQueryFiles, opts.URL, err))
			return
		}

		records := query.New(conn, a.logger()).Files(ctx, query.Filter{
			Project:     opts.Project,
			Subject:     opts.Subject,
			Experiments: opts.Experiments,
		})
		if opts.Table != "" {
			schema := table.DefaultSchema
			if opts.ResourceColumn {
				schema = table.ResourceSchema
			}
			writer := table.NewWriter(table.Options{Schema: schema, Force: opts.Force, Logger: a.logger()})
			var outcome table.Outcome
			records, outcome = writer.Stream(opts.Table, records)
			if outcome == table.Exists {
				yield(Result{
					Action:  actionQueryFiles,
					Status:  StatusNotNeeded,
					Type:    "file",
					Path:    opts.Table,
					Message: "table already exists, use force to regenerate",
				})
				return
			}
		}

		for rec, err := range records {
			if err != nil {
				yield(errorResult(actionQueryFiles, conn.URL(), err))
				return
			}
			if !yield(Result{
				Action:  actionQueryFiles,
				Status:  StatusOK,
				Type:    "file",
				Path:    rec.Path(),
				Message: rec.Collection,
				File:    &rec,
			}) {
				return
			}
		}
	}
}
