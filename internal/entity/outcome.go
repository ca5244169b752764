package entity

import (
	"encoding/json"
	"maps"

	"github.com/joseph-ayodele/docpipe/constants"
)

// Outcome is the result of applying a stage to one record: either a success
// carrying fields (and attachments) or an error message with nothing else.
type Outcome struct {
	Fields  Fields
	Binary  map[string]BinaryData
	Error   string
	Success bool
}

// Succeeded builds the success variant.
func Succeeded(fields Fields, binary map[string]BinaryData) Outcome {
	if fields == nil {
		fields = Fields{}
	}
	return Outcome{Fields: fields, Binary: binary, Success: true}
}

// Failed builds the error variant; fields and attachments are left empty.
func Failed(err error) Outcome {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Outcome{Error: msg}
}

// Record converts the outcome into the input of the next stage.
func (o Outcome) Record() Record {
	if !o.Success {
		return Record{Fields: Fields{
			constants.FieldError:   o.Error,
			constants.FieldSuccess: false,
		}}
	}
	f := make(Fields, len(o.Fields)+1)
	maps.Copy(f, o.Fields)
	f[constants.FieldSuccess] = true
	return Record{Fields: f, Binary: o.Binary}
}

// MarshalJSON renders the flat form: {...fields, "success": true} or
// {"error": msg, "success": false}. Non-finite numbers become null.
func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(JSONSafe(map[string]any(o.Record().Fields)))
}
