// Package xnat provides an HTTP client for the XNAT imaging-data REST API.
//
// # Overview
//
// A Connection wraps one authenticated session against one XNAT server. It
// answers the metadata queries needed to walk the project, subject,
// experiment, scan and file hierarchy, returning either flat ID lists or raw
// Records.
//
// # Authentication
//
// Connect resolves a credential name before any query is issued:
//
//   - "" derives the name from the URL host ("https://central.xnat.org" ->
//     "central.xnat.org") and looks it up
//   - "anonymous" sends no Authorization header at all
//   - any other name is looked up through the injected CredentialResolver
//
// A failed lookup is a *ConfigError. Connect then POSTs to /data/JSESSION to
// prove the session works, so a returned Connection is always usable.
//
// # API Endpoints
//
//   - POST /data/JSESSION
//   - GET /data/projects?format=json
//   - GET /data/projects/{project}/subjects?format=json
//   - GET /data/experiments/{experiment}?format=json
//   - GET /data/experiments?format=json[&project=..][&subject_ID=..]
//   - GET /data/experiments/{experiment}/scans?format=json
//   - GET /data/experiments/{experiment}/scans/ALL/files?format=json
//
// List responses use the envelope {"ResultSet": {"Result": [...]}}. A missing
// ResultSet or Result key yields an empty list, not an error. The single
// experiment endpoint answers {"items": [{"data_fields": {...}}]}.
//
// # Identifier Keys
//
// Stock XNAT names the identifier "ID", ConnectomeDB names it "id". IDs
// probes the first record and falls back to "id".
//
// # Error Handling
//
//   - *ConfigError: credential could not be resolved
//   - *ConnectionError: transport failure, no HTTP response
//   - *RequestError: non-2xx response, carries the reason phrase
//   - *AmbiguousResultError: a unique lookup matched several records
//
// Nothing is retried and nothing is cached; every call issues a request.
package xnat
