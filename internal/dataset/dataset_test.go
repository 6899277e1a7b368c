package dataset

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	dir  string
	env  []string
	name string
	args []string
}

func recordingRunner(out string, err error) (Runner, *[]call) {
	var calls []call
	return func(_ context.Context, dir string, env []string, name string, args ...string) ([]byte, error) {
		calls = append(calls, call{dir: dir, env: env, name: name, args: args})
		return []byte(out), err
	}, &calls
}

func TestDirty(t *testing.T) {
	run, calls := recordingRunner(" M code/addurl_files/S1_table.csv\n", nil)
	d := NewDatalad("/ds", Options{Runner: run})

	dirty, err := d.Dirty(context.Background())
	require.NoError(t, err)
	assert.True(t, dirty)
	require.Len(t, *calls, 1)
	assert.Equal(t, "git", (*calls)[0].name)
	assert.Equal(t, "/ds", (*calls)[0].dir)

	clean, _ := recordingRunner("\n", nil)
	dirty, err = NewDatalad("/ds", Options{Runner: clean}).Dirty(context.Background())
	require.NoError(t, err)
	assert.False(t, dirty)
}

func TestSave_BuildsArguments(t *testing.T) {
	run, calls := recordingRunner("", nil)
	d := NewDatalad("/ds", Options{Runner: run, DataladBin: "/opt/datalad"})

	err := d.Save(context.Background(), SaveRequest{
		Message: "Add file url table for S1",
		Paths:   []string{"/ds/code/addurl_files/S1_table.csv"},
		ToGit:   true,
	})
	require.NoError(t, err)
	require.Len(t, *calls, 1)
	assert.Equal(t, "/opt/datalad", (*calls)[0].name)
	assert.Equal(t, []string{
		"save", "-d", "/ds", "-m", "Add file url table for S1", "--to-git",
		"--", "/ds/code/addurl_files/S1_table.csv",
	}, (*calls)[0].args)
}

func TestAddURLs_BuildsArguments(t *testing.T) {
	run, calls := recordingRunner("", nil)
	d := NewDatalad("/ds", Options{Runner: run})

	err := d.AddURLs(context.Background(), AddURLsRequest{
		Table:          "/ds/code/addurl_files/S1_table.csv",
		URLFormat:      "{url}",
		FilenameFormat: "{subject}/{session}/{scan}/{filename}",
		IfExists:       "skip",
		Fast:           true,
		Jobs:           4,
		Env:            CredentialEnv("xnat.example.org", "alice", "pw"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"DATALAD_CREDENTIAL_XNAT_EXAMPLE_ORG_USER=alice",
		"DATALAD_CREDENTIAL_XNAT_EXAMPLE_ORG_PASSWORD=pw",
	}, (*calls)[0].env)
	assert.Equal(t, []string{
		"addurls", "-d", "/ds", "--nosave", "--ifexists", "skip", "--fast", "-J", "4",
		"/ds/code/addurl_files/S1_table.csv", "{url}", "{subject}/{session}/{scan}/{filename}",
	}, (*calls)[0].args)
}

func TestExec_WrapsFailureWithOutput(t *testing.T) {
	boom := errors.New("exit status 1")
	run, _ := recordingRunner("fatal: not a git repository\n", boom)

	_, err := NewDatalad("/ds", Options{Runner: run}).Dirty(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "not a git repository")
}

func TestCredentialEnv(t *testing.T) {
	assert.Equal(t, []string{
		"DATALAD_CREDENTIAL_MY__XNAT_USER=u",
		"DATALAD_CREDENTIAL_MY__XNAT_PASSWORD=p",
	}, CredentialEnv("my-xnat", "u", "p"))
}

func TestEnableSpecialRemote(t *testing.T) {
	known, calls := recordingRunner("3f2a-uuid\n", nil)
	require.NoError(t, NewDatalad("/ds", Options{Runner: known}).EnableSpecialRemote(context.Background()))
	require.Len(t, *calls, 1)
	assert.Equal(t, []string{"config", "--get", "remote.datalad.annex-uuid"}, (*calls)[0].args)

	var seen [][]string
	missing := func(_ context.Context, _ string, _ []string, _ string, args ...string) ([]byte, error) {
		seen = append(seen, args)
		if args[0] == "config" {
			return nil, errors.New("exit status 1")
		}
		return nil, nil
	}
	require.NoError(t, NewDatalad("/ds", Options{Runner: missing}).EnableSpecialRemote(context.Background()))
	require.Len(t, seen, 2)
	assert.Equal(t, []string{
		"annex", "initremote", "datalad",
		"encryption=none", "type=external", "externaltype=datalad", "autoenable=true",
	}, seen[1])
}
