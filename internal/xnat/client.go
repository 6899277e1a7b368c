package xnat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// Anonymous is the credential name that disables authentication.
const Anonymous = "anonymous"

const defaultUserAgent = "xnatrack/0.1"

// Endpoint names, mapped to path templates in apiEndpoints.
const (
	endpointSessionToken = "session_token"
	endpointProjects     = "projects"
	endpointSubjects     = "subjects"
	endpointExperiment   = "experiment"
	endpointExperiments  = "experiments"
	endpointScans        = "scans"
	endpointFiles        = "files"
)

var apiEndpoints = map[string]string{
	endpointSessionToken: "/data/JSESSION",
	endpointProjects:     "/data/projects?format=json",
	endpointSubjects:     "/data/projects/{project}/subjects?format=json",
	endpointExperiment:   "/data/experiments/{experiment}?format=json",
	endpointExperiments:  "/data/experiments?format=json",
	endpointScans:        "/data/experiments/{experiment}/scans?format=json",
	endpointFiles:        "/data/experiments/{experiment}/scans/ALL/files?format=json",
}

// Options configure Connect.
type Options struct {
	// Credential selects authentication: empty derives a name from the URL
	// host, Anonymous disables auth, anything else is looked up via Resolver.
	Credential string
	Resolver   CredentialResolver
	HTTPClient *http.Client
	Logger     *slog.Logger
	UserAgent  string
}

// Connection is an authenticated session against one XNAT server.
type Connection struct {
	baseURL        string
	http           *http.Client
	auth           *Credential
	credentialName string
	userAgent      string
	logger         *slog.Logger
}

// Connect resolves credentials and proves the session with a POST to the
// session-token endpoint. The returned Connection is ready for queries.
func Connect(ctx context.Context, rawURL string, opts Options) (*Connection, error) {
	base, err := parseBaseURL(rawURL)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	name := strings.TrimSpace(opts.Credential)
	if name == "" {
		name = credentialNameFor(base)
	}

	c := &Connection{
		baseURL:        base,
		http:           httpClient,
		credentialName: name,
		userAgent:      userAgent,
		logger:         logger.With(slog.String("component", "xnat"), slog.String("url", base)),
	}

	if name != Anonymous {
		if opts.Resolver == nil {
			return nil, &ConfigError{Credential: name, URL: base, Err: errors.New("no credential store configured")}
		}
		cred, err := opts.Resolver.Lookup(name, base+"/app/template/Register.vm")
		if err != nil {
			c.logger.Debug("credential retrieval failed", slog.String("credential", name), slog.Any("error", err))
			return nil, &ConfigError{Credential: name, URL: base, Err: err}
		}
		c.auth = &cred
	}

	if err := c.do(ctx, http.MethodPost, c.api(endpointSessionToken, nil), nil); err != nil {
		return nil, err
	}
	return c, nil
}

// URL returns the server base URL without a trailing slash.
func (c *Connection) URL() string { return c.baseURL }

// CredentialName returns the resolved credential name.
func (c *Connection) CredentialName() string { return c.credentialName }

// AuthenticatedUser returns the user name, or "" for anonymous sessions.
func (c *Connection) AuthenticatedUser() string {
	if c.auth == nil {
		return ""
	}
	return c.auth.User
}

// Projects lists the project records visible to the session.
func (c *Connection) Projects(ctx context.Context) ([]Record, error) {
	return c.results(ctx, c.api(endpointProjects, nil))
}

// ProjectIDs lists project accession IDs.
func (c *Connection) ProjectIDs(ctx context.Context) ([]string, error) {
	records, err := c.Projects(ctx)
	if err != nil {
		return nil, err
	}
	return IDs(records), nil
}

// SubjectIDs lists subject accession IDs of a project.
func (c *Connection) SubjectIDs(ctx context.Context, project string) ([]string, error) {
	records, err := c.results(ctx, c.api(endpointSubjects, map[string]string{"project": project}))
	if err != nil {
		return nil, err
	}
	return IDs(records), nil
}

// SubjectCount returns the number of subjects in a project.
func (c *Connection) SubjectCount(ctx context.Context, project string) (int, error) {
	ids, err := c.SubjectIDs(ctx, project)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Experiment fetches the attributes of a single experiment. It returns nil
// when the server has no match.
func (c *Connection) Experiment(ctx context.Context, experiment string) (Record, error) {
	var payload itemsEnvelope
	if err := c.do(ctx, http.MethodGet, c.api(endpointExperiment, map[string]string{"experiment": experiment}), &payload); err != nil {
		return nil, err
	}
	switch len(payload.Items) {
	case 0:
		return nil, nil
	case 1:
		if payload.Items[0].DataFields == nil {
			return Record{}, nil
		}
		return payload.Items[0].DataFields, nil
	default:
		return nil, &AmbiguousResultError{Kind: "experiment", ID: experiment, Count: len(payload.Items)}
	}
}

// Experiments lists experiment records, optionally constrained by project
// and subject.
func (c *Connection) Experiments(ctx context.Context, filter ExperimentFilter) ([]Record, error) {
	endpoint := c.api(endpointExperiments, nil)
	if filter.Project != "" {
		endpoint += "&project=" + url.QueryEscape(filter.Project)
	}
	if filter.Subject != "" {
		endpoint += "&subject_ID=" + url.QueryEscape(filter.Subject)
	}
	return c.results(ctx, endpoint)
}

// ExperimentIDs lists experiment accession IDs.
func (c *Connection) ExperimentIDs(ctx context.Context, filter ExperimentFilter) ([]string, error) {
	records, err := c.Experiments(ctx, filter)
	if err != nil {
		return nil, err
	}
	return IDs(records), nil
}

// ScanIDs lists the scan IDs of an experiment.
func (c *Connection) ScanIDs(ctx context.Context, experiment string) ([]string, error) {
	records, err := c.results(ctx, c.api(endpointScans, map[string]string{"experiment": experiment}))
	if err != nil {
		return nil, err
	}
	return IDs(records), nil
}

// Files lists the raw file records of all scans in an experiment.
func (c *Connection) Files(ctx context.Context, experiment string) ([]Record, error) {
	return c.results(ctx, c.api(endpointFiles, map[string]string{"experiment": experiment}))
}

func (c *Connection) api(name string, params map[string]string) string {
	ep := apiEndpoints[name]
	for k, v := range params {
		ep = strings.ReplaceAll(ep, "{"+k+"}", url.PathEscape(v))
	}
	return c.baseURL + ep
}

func (c *Connection) results(ctx context.Context, endpoint string) ([]Record, error) {
	var payload resultEnvelope
	if err := c.do(ctx, http.MethodGet, endpoint, &payload); err != nil {
		return nil, err
	}
	return payload.records(), nil
}

func (c *Connection) do(ctx context.Context, method, endpoint string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.auth != nil {
		req.SetBasicAuth(c.auth.User, c.auth.Password)
	}

	c.logger.Debug("xnat request", slog.String("method", method), slog.String("endpoint", endpoint))
	resp, err := c.http.Do(req)
	if err != nil {
		return &ConnectionError{URL: c.baseURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RequestError{
			Method:     method,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Reason:     reasonPhrase(resp),
		}
	}
	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	if err := decoder.Decode(dest); err != nil {
		// An empty body carries no envelope; dest keeps its zero value.
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode response from %s: %w", endpoint, err)
	}
	return nil
}

func parseBaseURL(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", errors.New("xnat url is empty")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse xnat url %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("xnat url %q must be absolute", rawURL)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return strings.TrimRight(u.String(), "/"), nil
}

// credentialNameFor derives a credential name from the host part of the URL,
// e.g. https://central.xnat.org -> central.xnat.org.
func credentialNameFor(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	return u.Host
}
