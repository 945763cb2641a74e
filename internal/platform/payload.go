// Package platform holds the pieces shared by the social platform connectors: the decoded
// upstream payload, field extraction chains, the content record filters, pacing and the
// per-platform session store.
package platform

import (
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Payload is one decoded upstream JSON object. Upstream schemas drift between API versions,
// so records are read through path lookups rather than fixed structs.
type Payload map[string]any

// Decode parses a JSON object body into a Payload.
func Decode(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return p, nil
}

// AsPayload converts a decoded JSON value to a Payload.
func AsPayload(v any) (Payload, bool) {
	switch m := v.(type) {
	case Payload:
		return m, true
	case map[string]any:
		return Payload(m), true
	}
	return nil, false
}

// Lookup walks nested objects along path.
func (p Payload) Lookup(path ...string) (any, bool) {
	var cur any = p
	for _, key := range path {
		obj, ok := AsPayload(cur)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// String returns the value at path rendered as a string. Numbers are formatted without an
// exponent; objects, lists and booleans yield "".
func (p Payload) String(path ...string) string {
	v, ok := p.Lookup(path...)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case jsoniter.Number:
		return t.String()
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	}
	return ""
}

// Object returns the nested object at path, or nil.
func (p Payload) Object(path ...string) Payload {
	v, ok := p.Lookup(path...)
	if !ok {
		return nil
	}
	obj, _ := AsPayload(v)
	return obj
}

// List returns the array at path, or nil.
func (p Payload) List(path ...string) []any {
	v, ok := p.Lookup(path...)
	if !ok {
		return nil
	}
	list, _ := v.([]any)
	return list
}

// Truthy reports whether path holds a non-empty value: a true boolean, a non-empty string,
// object or list, or a non-zero number.
func (p Payload) Truthy(path ...string) bool {
	v, ok := p.Lookup(path...)
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case map[string]any:
		return len(t) > 0
	case Payload:
		return len(t) > 0
	case []any:
		return len(t) > 0
	}
	return true
}

// Objects returns the elements of the array at path that are objects.
func (p Payload) Objects(path ...string) []Payload {
	list := p.List(path...)
	out := make([]Payload, 0, len(list))
	for _, item := range list {
		if obj, ok := AsPayload(item); ok {
			out = append(out, obj)
		}
	}
	return out
}
