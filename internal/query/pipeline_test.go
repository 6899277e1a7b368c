package query

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/xnatrack/internal/xnat"
)

type fakeSource struct {
	url         string
	experiments []xnat.Record
	single      map[string]xnat.Record
	files       map[string][]xnat.Record

	gotFilter     xnat.ExperimentFilter
	listCalls     int
	singleCalls   []string
	fileCalls     []string
	experimentErr error
}

func (f *fakeSource) URL() string { return f.url }

func (f *fakeSource) Experiments(_ context.Context, filter xnat.ExperimentFilter) ([]xnat.Record, error) {
	f.listCalls++
	f.gotFilter = filter
	if f.experimentErr != nil {
		return nil, f.experimentErr
	}
	return f.experiments, nil
}

func (f *fakeSource) Experiment(_ context.Context, id string) (xnat.Record, error) {
	f.singleCalls = append(f.singleCalls, id)
	rec, ok := f.single[id]
	if !ok {
		return nil, nil
	}
	return rec, nil
}

func (f *fakeSource) Files(_ context.Context, id string) ([]xnat.Record, error) {
	f.fileCalls = append(f.fileCalls, id)
	return f.files[id], nil
}

func fileRecord(exp, scan, name, digest string) xnat.Record {
	return xnat.Record{
		"Name":       name,
		"Size":       json.Number("2048"),
		"URI":        "/data/experiments/" + exp + "/scans/" + scan + "/resources/DICOM/files/" + name,
		"digest":     digest,
		"collection": "DICOM",
		"format":     "DICOM",
		"cat_ID":     "ignored",
	}
}

const md5 = "0123456789abcdef0123456789abcdef"

func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestFiles_TwoExperimentsInOrderWithOwnAttributes(t *testing.T) {
	src := &fakeSource{
		url: "https://xnat.example.org",
		experiments: []xnat.Record{
			{"ID": "E2", "subject_ID": "S2", "project": "P", "URI": "/data/experiments/E2", "subject_label": "sub-02"},
			{"ID": "E1", "subject_ID": "S1", "project": "P", "URI": "/data/experiments/E1"},
		},
		files: map[string][]xnat.Record{
			"E1": {fileRecord("E1", "3", "one.dcm", md5)},
			"E2": {fileRecord("E2", "7", "two.dcm", md5)},
		},
	}

	recs, err := drain(New(src, nil), context.Background(), Filter{Project: "P", Subject: "S"})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, xnat.ExperimentFilter{Project: "P", Subject: "S"}, src.gotFilter)
	assert.Empty(t, src.singleCalls, "list results must not trigger single-experiment fetches")

	first := recs[0]
	assert.Equal(t, "E2", first.ExperimentID)
	assert.Equal(t, "S2", first.SubjectID)
	assert.Equal(t, "sub-02", first.SubjectLabel)
	assert.Equal(t, "P", first.ProjectID)
	assert.Equal(t, "/data/experiments/E2", first.ExperimentURI)
	assert.Equal(t, "7", first.ScanID)
	assert.Equal(t, "two.dcm", first.Name)
	assert.Equal(t, int64(2048), first.ByteSize)
	assert.Equal(t, "DICOM", first.Collection)
	assert.Equal(t, md5, first.DigestMD5)
	assert.Equal(t, ".dcm", first.NameSuffix)
	assert.Equal(t, "https://xnat.example.org/data/experiments/E2/scans/7/resources/DICOM/files/two.dcm", first.URL)
	assert.Equal(t, "E2/7/two.dcm", first.Path())

	second := recs[1]
	assert.Equal(t, "E1", second.ExperimentID)
	assert.Equal(t, "S1", second.SubjectID)
	assert.Empty(t, second.SubjectLabel)
}

func TestFiles_ExplicitExperimentsBypassFiltersAndWarn(t *testing.T) {
	src := &fakeSource{
		url: "https://xnat.example.org",
		single: map[string]xnat.Record{
			"E9": {"ID": "E9", "subject_ID": "S9", "PROJECT": "P9"},
			"E8": {"id": "E8", "subject_id": "S8"},
		},
		files: map[string][]xnat.Record{
			"E9": {fileRecord("E9", "1", "a.nii.gz", md5)},
			"E8": {fileRecord("E8", "2", "b.dcm", md5)},
		},
	}
	logger, buf := captureLogger()

	recs, err := drain(New(src, logger), context.Background(), Filter{
		Project:     "ignored",
		Subject:     "ignored",
		Experiments: []string{"E9", "E8", "E9"},
	})
	require.NoError(t, err)

	assert.Zero(t, src.listCalls)
	assert.Equal(t, []string{"E9", "E8"}, src.singleCalls)
	require.Len(t, recs, 2)
	assert.Equal(t, "S9", recs[0].SubjectID)
	assert.Equal(t, "P9", recs[0].ProjectID)
	assert.Equal(t, "S8", recs[1].SubjectID)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "ignoring project and subject")
}

func TestFiles_ExplicitExperimentsWithoutFiltersDoNotWarn(t *testing.T) {
	src := &fakeSource{
		single: map[string]xnat.Record{"E1": {"ID": "E1"}},
		files:  map[string][]xnat.Record{"E1": {fileRecord("E1", "1", "a.dcm", md5)}},
	}
	logger, buf := captureLogger()

	_, err := drain(New(src, logger), context.Background(), Filter{Experiments: []string{"E1"}})
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "level=WARN")
}

func TestFiles_MissingExplicitExperiment(t *testing.T) {
	src := &fakeSource{}
	_, err := drain(New(src, nil), context.Background(), Filter{Experiments: []string{"nope"}})
	require.ErrorIs(t, err, ErrExperimentNotFound)
}

func TestFiles_BadDigestIsDroppedAndLogged(t *testing.T) {
	src := &fakeSource{
		experiments: []xnat.Record{{"ID": "E1"}},
		files: map[string][]xnat.Record{"E1": {
			fileRecord("E1", "1", "short.dcm", "abc"),
			fileRecord("E1", "1", "sha.dcm", strings.Repeat("f", 64)),
		}},
	}
	logger, buf := captureLogger()

	recs, err := drain(New(src, logger), context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Empty(t, recs[0].DigestMD5)
	assert.Empty(t, recs[1].DigestMD5)
	assert.Contains(t, buf.String(), "unrecognized digest ignored")
	assert.Contains(t, buf.String(), "length=3")
	assert.Contains(t, buf.String(), "length=64")
}

func TestFiles_MalformedURIStopsSequence(t *testing.T) {
	src := &fakeSource{
		experiments: []xnat.Record{{"ID": "E1"}},
		files: map[string][]xnat.Record{"E1": {
			{"Name": "x", "URI": "/data/files/x"},
			fileRecord("E1", "1", "never.dcm", md5),
		}},
	}

	var seen int
	var gotErr error
	for _, err := range New(src, nil).Files(context.Background(), Filter{}) {
		if err != nil {
			gotErr = err
			continue
		}
		seen++
	}
	assert.Zero(t, seen)
	require.ErrorIs(t, gotErr, ErrMalformedURI)
}

func TestFiles_ListErrorPropagates(t *testing.T) {
	boom := &xnat.RequestError{StatusCode: 500, Reason: "Internal Server Error"}
	src := &fakeSource{experimentErr: boom}

	_, err := drain(New(src, nil), context.Background(), Filter{Project: "P"})
	var reqErr *xnat.RequestError
	require.True(t, errors.As(err, &reqErr))
}

func TestFiles_EarlyStopAndRestart(t *testing.T) {
	src := &fakeSource{
		experiments: []xnat.Record{{"ID": "E1"}, {"ID": "E2"}},
		files: map[string][]xnat.Record{
			"E1": {fileRecord("E1", "1", "a.dcm", md5), fileRecord("E1", "1", "b.dcm", md5)},
			"E2": {fileRecord("E2", "1", "c.dcm", md5)},
		},
	}
	p := New(src, nil)
	seq := p.Files(context.Background(), Filter{})

	for rec, err := range seq {
		require.NoError(t, err)
		assert.Equal(t, "a.dcm", rec.Name)
		break
	}
	assert.Equal(t, []string{"E1"}, src.fileCalls)

	recs, err := drain(p, context.Background(), Filter{})
	require.NoError(t, err)
	assert.Len(t, recs, 3)
	assert.Equal(t, 2, src.listCalls)
}

func TestFiles_UnknownKeysDropped(t *testing.T) {
	src := &fakeSource{
		experiments: []xnat.Record{{"ID": "E1"}},
		files: map[string][]xnat.Record{"E1": {{
			"NAME":         "a.dcm",
			"uri":          "/data/experiments/E1/scans/4/resources/R/files/a.dcm",
			"File_Format":  "DICOM",
			"file_content": "RAW",
			"cat_ID":       "zzz",
		}}},
	}
	recs, err := drain(New(src, nil), context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "a.dcm", recs[0].Name)
	assert.Equal(t, "DICOM", recs[0].FileFormat)
	assert.Equal(t, "RAW", recs[0].FileContent)
	assert.Equal(t, "4", recs[0].ScanID)
	assert.Zero(t, recs[0].ByteSize)
}

// drain collects every record of Files, stopping at the first error.
func drain(p *Pipeline, ctx context.Context, filter Filter) ([]FileRecord, error) {
	var out []FileRecord
	for rec, err := range p.Files(ctx, filter) {
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}
