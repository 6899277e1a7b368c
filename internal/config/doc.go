// Package config reads and writes the per-dataset XNAT tracking
// configuration.
//
// # Layout
//
//	<dataset>/.xnatrack/config.toml
//	<dataset>/.datalad/providers/xnat-<name>.cfg
//
// # TOML Format
//
//	default_name = "default"
//
//	[xnat.default]
//	url = "https://central.xnat.org"
//	project = "Sample_DICOM"
//	path = "{subject}/{session}/{scan}/"
//	credential_name = "anonymous"
//
// Several servers can be tracked side by side under different names. The
// active one is chosen by $XNATRACK_DEFAULT_NAME, then default_name, then
// "default".
//
// # Defaults
//
// A missing config file is not an error; Load returns an empty Config. An
// empty path spec falls back to DefaultPathSpec. URLs lose trailing slashes.
//
// # Provider Files
//
// WriteProvider records which credential authenticates downloads from a
// server URL, using HTTP basic auth with a user/password credential. The
// file uses datalad's INI provider format:
//
//	[provider:xnat-default]
//	url_re = https://xnat\.example\.org/.*
//	credential = xnat.example.org
//	authentication_type = http_basic_auth
//
//	[credential:xnat.example.org]
//	type = user_password
//
// LoadProvider reads it back so update can export the matching credential.
package config
