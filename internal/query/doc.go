// Package query flattens the XNAT project/subject/experiment/scan/file
// hierarchy into FileRecords suitable for bulk URL registration.
//
// Pipeline.Files resolves the experiment set (explicit IDs, or a filtered
// experiment listing), fetches each experiment's files and enriches every
// file with its scan ID (taken from the URI), name suffix, absolute URL,
// validated MD5 digest and the parent experiment's subject/project
// attributes. The sequence is lazy and not cached between calls.
package query
