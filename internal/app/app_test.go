package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/five82/xnatrack/internal/dataset"
	"github.com/five82/xnatrack/internal/xnat"
)

const testMD5 = "d41d8cd98f00b204e9800998ecf8427e"

type fakeXNAT struct {
	projects    []string
	subjects    map[string][]string // project -> subjects
	experiments map[string][]string // subject -> experiments
	requireAuth *xnat.Credential
}

func (f *fakeXNAT) handler(t *testing.T) http.Handler {
	t.Helper()
	results := func(w http.ResponseWriter, rows []map[string]any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ResultSet": map[string]any{"Result": rows}})
	}
	ids := func(values []string) []map[string]any {
		rows := []map[string]any{}
		for _, v := range values {
			rows = append(rows, map[string]any{"ID": v})
		}
		return rows
	}
	subjectOf := func(exp string) string {
		for s, exps := range f.experiments {
			if slices.Contains(exps, exp) {
				return s
			}
		}
		return ""
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /data/JSESSION", func(w http.ResponseWriter, r *http.Request) {
		if f.requireAuth != nil {
			u, p, ok := r.BasicAuth()
			if !ok || u != f.requireAuth.User || p != f.requireAuth.Password {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
		}
		_, _ = w.Write([]byte("SESSIONID"))
	})
	mux.HandleFunc("GET /data/projects", func(w http.ResponseWriter, r *http.Request) {
		results(w, ids(f.projects))
	})
	mux.HandleFunc("GET /data/projects/{project}/subjects", func(w http.ResponseWriter, r *http.Request) {
		subs, ok := f.subjects[r.PathValue("project")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		results(w, ids(subs))
	})
	mux.HandleFunc("GET /data/experiments", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		rows := []map[string]any{}
		for subject, exps := range f.experiments {
			if s := q.Get("subject_ID"); s != "" && s != subject {
				continue
			}
			for _, e := range exps {
				rows = append(rows, map[string]any{"ID": e, "subject_ID": subject, "project": q.Get("project")})
			}
		}
		results(w, rows)
	})
	mux.HandleFunc("GET /data/experiments/{exp}", func(w http.ResponseWriter, r *http.Request) {
		exp := r.PathValue("exp")
		subject := subjectOf(exp)
		if subject == "" {
			_, _ = w.Write([]byte(`{"items": []}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": []map[string]any{{
			"data_fields": map[string]any{"ID": exp, "subject_ID": subject, "project": "P1"},
		}}})
	})
	mux.HandleFunc("GET /data/experiments/{exp}/scans/ALL/files", func(w http.ResponseWriter, r *http.Request) {
		exp := r.PathValue("exp")
		results(w, []map[string]any{
			{"Name": exp + "_1.dcm", "Size": "10", "digest": testMD5, "collection": "DICOM",
				"URI": "/data/experiments/" + exp + "/scans/1/resources/DICOM/files/" + exp + "_1.dcm"},
			{"Name": exp + "_2.dcm", "Size": "20", "digest": "", "collection": "DICOM",
				"URI": "/data/experiments/" + exp + "/scans/2/resources/DICOM/files/" + exp + "_2.dcm"},
		})
	})
	return mux
}

func newFakeXNAT(t *testing.T) (*fakeXNAT, *httptest.Server) {
	t.Helper()
	f := &fakeXNAT{
		projects: []string{"P2", "P1"},
		subjects: map[string][]string{"P1": {"S2", "S1"}},
		experiments: map[string][]string{
			"S1": {"E1"},
			"S2": {"E2"},
		},
	}
	server := httptest.NewServer(f.handler(t))
	t.Cleanup(server.Close)
	return f, server
}

type fakeDataset struct {
	dirty   bool
	saves   []dataset.SaveRequest
	addurls []dataset.AddURLsRequest
	remotes int
	failAdd error
}

func (d *fakeDataset) EnableSpecialRemote(context.Context) error {
	d.remotes++
	return nil
}

func (d *fakeDataset) Dirty(context.Context) (bool, error) { return d.dirty, nil }

func (d *fakeDataset) Save(_ context.Context, req dataset.SaveRequest) error {
	d.saves = append(d.saves, req)
	return nil
}

func (d *fakeDataset) AddURLs(_ context.Context, req dataset.AddURLsRequest) error {
	if d.failAdd != nil {
		return d.failAdd
	}
	d.addurls = append(d.addurls, req)
	return nil
}

type fakeCredentials struct {
	creds map[string]xnat.Credential
}

func (f *fakeCredentials) Lookup(name, _ string) (xnat.Credential, error) {
	cred, ok := f.creds[name]
	if !ok {
		return xnat.Credential{}, errors.New("unknown credential")
	}
	return cred, nil
}

func (f *fakeCredentials) Set(name string, cred xnat.Credential) error {
	if f.creds == nil {
		f.creds = map[string]xnat.Credential{}
	}
	f.creds[name] = cred
	return nil
}

func (f *fakeCredentials) Names() ([]string, error) {
	names := make([]string, 0, len(f.creds))
	for name := range f.creds {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func newTestApp(ds *fakeDataset, creds *fakeCredentials) *App {
	if creds == nil {
		creds = &fakeCredentials{}
	}
	a := New(creds, nil)
	a.NewDataset = func(string) Dataset { return ds }
	return a
}

func collect(seq func(func(Result) bool)) []Result {
	var out []Result
	for r := range seq {
		out = append(out, r)
	}
	return out
}

func requireLast(t *testing.T, results []Result) Result {
	t.Helper()
	require.NotEmpty(t, results)
	return results[len(results)-1]
}
