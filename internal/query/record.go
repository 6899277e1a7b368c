package query

import (
	"path"
	"strconv"
	"strings"

	"github.com/five82/xnatrack/internal/xnat"
)

// FileRecord is the flattened description of one downloadable file.
type FileRecord struct {
	Name        string `json:"name" yaml:"name"`
	ByteSize    int64  `json:"byte-size,omitempty" yaml:"byte-size,omitempty"`
	DigestMD5   string `json:"digest-md5,omitempty" yaml:"digest-md5,omitempty"`
	Collection  string `json:"collection,omitempty" yaml:"collection,omitempty"`
	FileFormat  string `json:"file_format,omitempty" yaml:"file_format,omitempty"`
	FileContent string `json:"file_content,omitempty" yaml:"file_content,omitempty"`
	URI         string `json:"uri" yaml:"uri"`
	URL         string `json:"url" yaml:"url"`
	ScanID      string `json:"scan_id" yaml:"scan_id"`
	NameSuffix  string `json:"name_suffix" yaml:"name_suffix"`

	ExperimentID  string `json:"experiment_id,omitempty" yaml:"experiment_id,omitempty"`
	ExperimentURI string `json:"experiment_uri,omitempty" yaml:"experiment_uri,omitempty"`
	SubjectID     string `json:"subject_id,omitempty" yaml:"subject_id,omitempty"`
	SubjectLabel  string `json:"subject_label,omitempty" yaml:"subject_label,omitempty"`
	ProjectID     string `json:"project_id,omitempty" yaml:"project_id,omitempty"`
}

// Path is an artificial dataset path mirroring the API layout.
func (r FileRecord) Path() string {
	return r.ExperimentID + "/" + r.ScanID + "/" + r.Name
}

// standardFileKeys maps lower-cased server keys to standardized names.
// Keys not listed are dropped.
var standardFileKeys = map[string]string{
	"size":         "byte-size",
	"digest":       "digest",
	"collection":   "collection",
	"name":         "name",
	"file_format":  "file_format",
	"file_content": "file_content",
	"uri":          "uri",
}

// experimentKeys maps lower-cased experiment attributes onto record fields.
var experimentKeys = map[string]func(*FileRecord, string){
	"subject_id":    func(r *FileRecord, v string) { r.SubjectID = v },
	"id":            func(r *FileRecord, v string) { r.ExperimentID = v },
	"project":       func(r *FileRecord, v string) { r.ProjectID = v },
	"uri":           func(r *FileRecord, v string) { r.ExperimentURI = v },
	"subject_label": func(r *FileRecord, v string) { r.SubjectLabel = v },
}

// standardize projects a raw file record onto the known keys.
func standardize(raw xnat.Record) map[string]string {
	out := make(map[string]string, len(standardFileKeys))
	for k := range raw {
		std, ok := standardFileKeys[strings.ToLower(k)]
		if !ok {
			continue
		}
		if s, ok := raw.String(k); ok {
			out[std] = s
		}
	}
	return out
}

func (r *FileRecord) applyExperiment(exp xnat.Record) {
	for key, set := range experimentKeys {
		if v, ok := exp.String(key); ok {
			set(r, v)
		}
	}
}

func parseSize(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// scanFromURI returns the scan segment of
// /data/experiments/<exp>/scans/<scan>/resources/<res>/files/<name>.
func scanFromURI(uri string) (string, bool) {
	parts := strings.Split(path.Clean("/"+strings.TrimPrefix(uri, "/")), "/")
	if len(parts) < 6 {
		return "", false
	}
	return parts[5], true
}

// nameSuffix returns the full dotted tail of a file name, "a.b.c.dcm" ->
// ".b.c.dcm". A leading dot (hidden file) does not start a suffix.
func nameSuffix(name string) string {
	base := path.Base(name)
	if base == "." || base == "/" {
		return ""
	}
	idx := strings.Index(base[1:], ".")
	if idx < 0 {
		return ""
	}
	suffix := base[idx+1:]
	if suffix == "." || strings.HasSuffix(suffix, ".") {
		return ""
	}
	return suffix
}
