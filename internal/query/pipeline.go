package query

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/five82/xnatrack/internal/xnat"
)

var (
	// ErrExperimentNotFound is returned when an explicitly requested
	// experiment does not exist on the server.
	ErrExperimentNotFound = errors.New("experiment not found")
	// ErrMalformedURI is returned for file URIs that do not follow
	// /data/experiments/<exp>/scans/<scan>/...
	ErrMalformedURI = errors.New("malformed file uri")
)

// Source is the subset of *xnat.Connection the pipeline needs.
type Source interface {
	URL() string
	Experiments(ctx context.Context, filter xnat.ExperimentFilter) ([]xnat.Record, error)
	Experiment(ctx context.Context, experiment string) (xnat.Record, error)
	Files(ctx context.Context, experiment string) ([]xnat.Record, error)
}

var _ Source = (*xnat.Connection)(nil)

// Filter selects the experiments whose files are listed. Explicit
// Experiments take precedence over Project and Subject.
type Filter struct {
	Project     string
	Subject     string
	Experiments []string
}

// Pipeline flattens the XNAT hierarchy into FileRecords.
type Pipeline struct {
	source Source
	logger *slog.Logger
}

// New builds a Pipeline reading from source.
func New(source Source, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		source: source,
		logger: logger.With(slog.String("component", "query")),
	}
}

type experimentRef struct {
	id     string
	record xnat.Record // nil until fetched
}

// Files returns a lazy sequence of file records. Every iteration re-issues
// all queries. The first error is yielded and ends the sequence.
func (p *Pipeline) Files(ctx context.Context, filter Filter) iter.Seq2[FileRecord, error] {
	return func(yield func(FileRecord, error) bool) {
		experiments, err := p.resolveExperiments(ctx, filter)
		if err != nil {
			yield(FileRecord{}, err)
			return
		}
		for _, exp := range experiments {
			if exp.record == nil {
				rec, err := p.source.Experiment(ctx, exp.id)
				if err != nil {
					yield(FileRecord{}, fmt.Errorf("fetch experiment %s: %w", exp.id, err))
					return
				}
				if rec == nil {
					yield(FileRecord{}, fmt.Errorf("%w: %s", ErrExperimentNotFound, exp.id))
					return
				}
				exp.record = rec.Lower()
			}

			files, err := p.source.Files(ctx, exp.id)
			if err != nil {
				yield(FileRecord{}, fmt.Errorf("list files of experiment %s: %w", exp.id, err))
				return
			}
			for _, raw := range files {
				rec, err := p.flatten(exp, raw)
				if !yield(rec, err) || err != nil {
					return
				}
			}
		}
	}
}

func (p *Pipeline) resolveExperiments(ctx context.Context, filter Filter) ([]*experimentRef, error) {
	seen := make(map[string]bool)
	var refs []*experimentRef

	if len(filter.Experiments) > 0 {
		if filter.Project != "" || filter.Subject != "" {
			p.logger.Warn("experiment given, ignoring project and subject specifications",
				slog.String("project", filter.Project),
				slog.String("subject", filter.Subject),
			)
		}
		for _, id := range filter.Experiments {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			refs = append(refs, &experimentRef{id: id})
		}
		return refs, nil
	}

	records, err := p.source.Experiments(ctx, xnat.ExperimentFilter{Project: filter.Project, Subject: filter.Subject})
	if err != nil {
		return nil, fmt.Errorf("list experiments: %w", err)
	}
	for _, raw := range records {
		rec := raw.Lower()
		id, ok := rec.String("id")
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		refs = append(refs, &experimentRef{id: id, record: rec})
	}
	return refs, nil
}

func (p *Pipeline) flatten(exp *experimentRef, raw xnat.Record) (FileRecord, error) {
	std := standardize(raw)

	rec := FileRecord{
		Name:        std["name"],
		ByteSize:    parseSize(std["byte-size"]),
		Collection:  std["collection"],
		FileFormat:  std["file_format"],
		FileContent: std["file_content"],
		URI:         std["uri"],
	}

	if digest := std["digest"]; len(digest) == 32 {
		rec.DigestMD5 = digest
	} else {
		p.logger.Debug("unrecognized digest ignored", slog.Int("length", len(digest)), slog.String("uri", rec.URI))
	}

	scan, ok := scanFromURI(rec.URI)
	if !ok {
		return FileRecord{}, fmt.Errorf("%w: %q", ErrMalformedURI, rec.URI)
	}
	rec.ScanID = scan
	rec.NameSuffix = nameSuffix(rec.Name)
	rec.URL = p.source.URL() + rec.URI

	rec.ExperimentID = exp.id
	rec.applyExperiment(exp.record)
	return rec, nil
}
