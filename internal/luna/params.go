package luna

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

var emptyObject = []byte("{}")

// Params is the parameter object of a bus call. It is always a JSON object.
type Params struct {
	raw []byte
}

// ParseParams never fails: empty, invalid or non-object input becomes {}.
func ParseParams(s string) Params {
	if s == "" || !gjson.Valid(s) || !gjson.Parse(s).IsObject() {
		return Params{raw: emptyObject}
	}
	return Params{raw: []byte(s)}
}

// Raw returns the JSON object bytes.
func (p Params) Raw() json.RawMessage {
	if len(p.raw) == 0 {
		return emptyObject
	}
	return p.raw
}

// Decode unmarshals the object into a typed request struct.
func (p Params) Decode(v any) error {
	return json.Unmarshal(p.Raw(), v)
}
