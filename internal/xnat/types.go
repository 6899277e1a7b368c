package xnat

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Record is one JSON object returned by the XNAT API. Values are decoded with
// json.Number so numeric fields keep their server representation.
type Record map[string]any

// String returns the value stored under key rendered as a string.
func (r Record) String(key string) (string, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case bool:
		return strconv.FormatBool(val), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	default:
		return fmt.Sprint(val), true
	}
}

// Lower returns a copy of the record with all keys lower-cased. Later keys win
// when two keys differ only in case.
func (r Record) Lower() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[strings.ToLower(k)] = v
	}
	return out
}

// Credential is a user/password pair used for HTTP basic auth.
type Credential struct {
	User     string `toml:"user"`
	Password string `toml:"password"`
}

// CredentialResolver looks up a named credential. urlHint points at the page
// where an account for the server can be registered.
type CredentialResolver interface {
	Lookup(name, urlHint string) (Credential, error)
}

// ExperimentFilter constrains experiment listings. Empty fields are
// unconstrained.
type ExperimentFilter struct {
	Project string
	Subject string
}

// resultEnvelope mirrors {"ResultSet": {"Result": [...]}}.
type resultEnvelope struct {
	ResultSet *struct {
		Result []Record `json:"Result"`
	} `json:"ResultSet"`
}

func (e resultEnvelope) records() []Record {
	if e.ResultSet == nil || e.ResultSet.Result == nil {
		return []Record{}
	}
	return e.ResultSet.Result
}

// itemsEnvelope mirrors the single-object form {"items": [{"data_fields": {...}}]}.
type itemsEnvelope struct {
	Items []struct {
		DataFields Record `json:"data_fields"`
	} `json:"items"`
}

// IDs extracts identifiers from records. Most servers use "ID", some
// deployments (ConnectomeDB) use "id"; the first record decides which.
// Records missing the chosen key are skipped.
func IDs(records []Record) []string {
	ids := make([]string, 0, len(records))
	if len(records) == 0 {
		return ids
	}
	key := "id"
	if _, ok := records[0]["ID"]; ok {
		key = "ID"
	}
	for _, r := range records {
		if id, ok := r.String(key); ok {
			ids = append(ids, id)
		}
	}
	return ids
}
