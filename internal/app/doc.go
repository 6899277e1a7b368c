// Package app implements the xnatrack commands on top of the xnat, query,
// table, config and dataset packages.
//
// # Commands
//
//   - Init: verify access to a server/project and write the dataset's
//     tracking configuration (plus a provider file for authenticated access)
//   - Update: for each requested subject, build the URL table under
//     code/addurl_files/, hand it to the registrar and record the change
//   - Query: list projects, or the subjects of a project
//   - QueryFiles: stream flattened file records, optionally teeing them into
//     a URL table
//   - SetCredential: persist a named credential
//
// Every command returns an iter.Seq[Result]. Failures are reported as
// Results with StatusError or StatusImpossible carrying the underlying error
// in Err, so the caller decides how to render them and which exit code to
// use. Nothing is retried; the first failure ends the sequence.
//
// # Services
//
// App is the composition root. Credentials resolves named credentials and
// NewDataset binds the version-control services (dataset.Recorder and
// dataset.Registrar) to a directory. Tests substitute both.
package app
