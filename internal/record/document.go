package record

import (
	"encoding/json"
	"fmt"
	"sort"
)

// DocumentVersion is the version written into serialized documents.
const DocumentVersion = 1

// Document is the decrypted content of a vault: records grouped by the
// application that owns them, then by key.
type Document struct {
	apps map[string]map[string]Record
}

// Entry is a record together with its owning application.
type Entry struct {
	App    string
	Record Record
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{apps: make(map[string]map[string]Record)}
}

// Get returns the record stored under key for app.
func (d *Document) Get(app, key string) (Record, bool) {
	r, ok := d.apps[app][key]
	return r, ok
}

// Put stores r for app, replacing any record with the same key.
func (d *Document) Put(app string, r Record) {
	if d.apps == nil {
		d.apps = make(map[string]map[string]Record)
	}
	bucket, ok := d.apps[app]
	if !ok {
		bucket = make(map[string]Record)
		d.apps[app] = bucket
	}
	bucket[r.RecordKey()] = r
}

// Delete removes the record stored under key for app and reports whether
// it existed.
func (d *Document) Delete(app, key string) bool {
	bucket, ok := d.apps[app]
	if !ok {
		return false
	}
	if _, ok := bucket[key]; !ok {
		return false
	}
	delete(bucket, key)
	if len(bucket) == 0 {
		delete(d.apps, app)
	}
	return true
}

// Owners returns the applications that hold a record under key, sorted.
func (d *Document) Owners(key string) []string {
	var owners []string
	for app, bucket := range d.apps {
		if _, ok := bucket[key]; ok {
			owners = append(owners, app)
		}
	}
	sort.Strings(owners)
	return owners
}

// Keys returns the record keys owned by app, sorted.
func (d *Document) Keys(app string) []string {
	keys := make([]string, 0, len(d.apps[app]))
	for k := range d.apps[app] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// All returns a copy of every record, ordered by application then key.
func (d *Document) All() []Entry {
	apps := make([]string, 0, len(d.apps))
	for app := range d.apps {
		apps = append(apps, app)
	}
	sort.Strings(apps)

	var entries []Entry
	for _, app := range apps {
		for _, key := range d.Keys(app) {
			entries = append(entries, Entry{App: app, Record: Clone(d.apps[app][key])})
		}
	}
	return entries
}

// Len returns the number of records across all applications.
func (d *Document) Len() int {
	n := 0
	for _, bucket := range d.apps {
		n += len(bucket)
	}
	return n
}

// Clear drops every record.
func (d *Document) Clear() {
	for app := range d.apps {
		delete(d.apps, app)
	}
}

type documentJSON struct {
	Version      int                                   `json:"version"`
	Applications map[string]map[string]json.RawMessage `json:"applications"`
}

// MarshalJSON encodes the document as
// {"version":1,"applications":{app:{key:record}}}.
func (d *Document) MarshalJSON() ([]byte, error) {
	out := documentJSON{
		Version:      DocumentVersion,
		Applications: make(map[string]map[string]json.RawMessage, len(d.apps)),
	}
	for app, bucket := range d.apps {
		encoded := make(map[string]json.RawMessage, len(bucket))
		for key, r := range bucket {
			data, err := Serialize(r)
			if err != nil {
				return nil, fmt.Errorf("record %q of %q: %w", key, app, err)
			}
			encoded[key] = data
		}
		out.Applications[app] = encoded
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a document. Every record must parse and be stored
// under its own key.
func (d *Document) UnmarshalJSON(data []byte) error {
	var in documentJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.Version != DocumentVersion {
		return fmt.Errorf("unsupported document version %d", in.Version)
	}

	d.apps = make(map[string]map[string]Record, len(in.Applications))
	for app, bucket := range in.Applications {
		for key, raw := range bucket {
			r, err := Parse(raw)
			if err != nil {
				return fmt.Errorf("record %q of %q: %w", key, app, err)
			}
			if r.RecordKey() != key {
				return fmt.Errorf("record %q of %q: stored under mismatched key %q", r.RecordKey(), app, key)
			}
			d.Put(app, r)
		}
	}
	return nil
}
