package entity

import "maps"

// Fields is the structured part of a record. Values are string, float64, bool,
// nil or nested map[string]any.
type Fields map[string]any

// BinaryData is an opaque attachment carried alongside a record's fields.
type BinaryData struct {
	Data     []byte `json:"-"`
	MimeType string `json:"mimeType,omitempty"`
	FileName string `json:"fileName,omitempty"`
}

// Record is one unit of pipeline data.
type Record struct {
	Fields Fields
	Binary map[string]BinaryData
}

// NewRecord builds a record with the given fields and no attachments.
func NewRecord(fields Fields) Record {
	if fields == nil {
		fields = Fields{}
	}
	return Record{Fields: fields}
}

// String returns the field as a string when it is one.
func (r Record) String(key string) (string, bool) {
	v, ok := r.Fields[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Has reports whether the field exists, regardless of its value.
func (r Record) Has(key string) bool {
	_, ok := r.Fields[key]
	return ok
}

// CloneFields returns a shallow copy of the record's fields.
func (r Record) CloneFields() Fields {
	out := make(Fields, len(r.Fields))
	maps.Copy(out, r.Fields)
	return out
}
