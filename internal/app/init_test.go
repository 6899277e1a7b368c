package app

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/xnatrack/internal/config"
	"github.com/five82/xnatrack/internal/xnat"
)

func TestInit_WithoutProjectListsProjects(t *testing.T) {
	_, server := newFakeXNAT(t)
	ds := &fakeDataset{}

	results := collect(newTestApp(ds, nil).Init(context.Background(), InitOptions{
		Dataset:    t.TempDir(),
		URL:        server.URL,
		Credential: xnat.Anonymous,
	}))

	require.Len(t, results, 1)
	assert.Equal(t, StatusNotNeeded, results[0].Status)
	assert.Equal(t, []string{"P1", "P2"}, results[0].Items)
	assert.Contains(t, results[0].Message, "for user anonymous")
	assert.Empty(t, ds.saves)
}

func TestInit_AnonymousWritesConfig(t *testing.T) {
	t.Setenv("XNATRACK_DEFAULT_NAME", "")
	_, server := newFakeXNAT(t)
	ds := &fakeDataset{}
	dir := t.TempDir()

	results := collect(newTestApp(ds, nil).Init(context.Background(), InitOptions{
		Dataset:    dir,
		URL:        server.URL + "/",
		Project:    "P1",
		Credential: xnat.Anonymous,
	}))

	res := requireLast(t, results)
	require.Equal(t, StatusOK, res.Status, res.Message)
	assert.Contains(t, res.Message, "2 subjects")

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	_, tracking, ok := cfg.Active()
	require.True(t, ok)
	assert.Equal(t, config.Tracking{
		URL:            server.URL,
		Project:        "P1",
		Path:           config.DefaultPathSpec,
		CredentialName: xnat.Anonymous,
	}, tracking)

	require.Len(t, ds.saves, 1)
	assert.True(t, ds.saves[0].ToGit)
	assert.Equal(t, []string{config.FilePath(dir)}, ds.saves[0].Paths)
	_, err = os.Stat(config.ProviderPath(dir, "default"))
	assert.True(t, os.IsNotExist(err), "anonymous init must not write a provider file")
	assert.Zero(t, ds.remotes)
}

func TestInit_AuthenticatedWritesProvider(t *testing.T) {
	t.Setenv("XNATRACK_DEFAULT_NAME", "")
	f, server := newFakeXNAT(t)
	f.requireAuth = &xnat.Credential{User: "alice", Password: "pw"}
	ds := &fakeDataset{}
	dir := t.TempDir()
	creds := &fakeCredentials{creds: map[string]xnat.Credential{"mine": *f.requireAuth}}

	results := collect(newTestApp(ds, creds).Init(context.Background(), InitOptions{
		Dataset:    dir,
		URL:        server.URL,
		Project:    "P1",
		PathSpec:   "{subject}//{session}/",
		Credential: "mine",
	}))
	require.Equal(t, StatusOK, requireLast(t, results).Status)

	require.Len(t, ds.saves, 2)
	assert.Equal(t, []string{config.ProviderPath(dir, "default")}, ds.saves[1].Paths)
	assert.Equal(t, 1, ds.remotes)

	provider, ok, err := config.LoadProvider(dir, "default")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "mine", provider.Credential)

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "{subject}//{session}/", cfg.XNAT["default"].Path)
	assert.Equal(t, "mine", cfg.XNAT["default"].CredentialName)
}

func TestInit_RefusesReinitWithoutForce(t *testing.T) {
	t.Setenv("XNATRACK_DEFAULT_NAME", "")
	_, server := newFakeXNAT(t)
	ds := &fakeDataset{}
	dir := t.TempDir()
	a := newTestApp(ds, nil)
	opts := InitOptions{Dataset: dir, URL: server.URL, Project: "P1", Credential: xnat.Anonymous}

	require.Equal(t, StatusOK, requireLast(t, collect(a.Init(context.Background(), opts))).Status)

	res := requireLast(t, collect(a.Init(context.Background(), opts)))
	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Message, "already initialized")

	opts.Force = true
	assert.Equal(t, StatusOK, requireLast(t, collect(a.Init(context.Background(), opts))).Status)
}

func TestInit_UnknownProjectFails(t *testing.T) {
	_, server := newFakeXNAT(t)

	res := requireLast(t, collect(newTestApp(&fakeDataset{}, nil).Init(context.Background(), InitOptions{
		Dataset:    t.TempDir(),
		URL:        server.URL,
		Project:    "nope",
		Credential: xnat.Anonymous,
	})))

	assert.Equal(t, StatusError, res.Status)
	var reqErr *xnat.RequestError
	require.ErrorAs(t, res.Err, &reqErr)
	assert.Contains(t, res.Message, "Not Found")
}

func TestInit_MissingCredentialIsConfigError(t *testing.T) {
	_, server := newFakeXNAT(t)

	res := requireLast(t, collect(newTestApp(&fakeDataset{}, nil).Init(context.Background(), InitOptions{
		Dataset:    t.TempDir(),
		URL:        server.URL,
		Project:    "P1",
		Credential: "nobody",
	})))

	var cfgErr *xnat.ConfigError
	require.ErrorAs(t, res.Err, &cfgErr)
	assert.True(t, res.Status.Failed())
}
