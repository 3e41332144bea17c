// Package lambdaevent gives child executables a flat view of the event they
// receive from the relay. Nested objects are flattened into dotted keys and
// all keys are matched case-insensitively.
package lambdaevent

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type Event struct {
	values map[string]json.RawMessage
}

// Decode parses a JSON object. Object values are flattened recursively as
// "parent.child", null values are dropped and every other value is kept as
// its JSON text.
func Decode(raw string) (*Event, error) {
	e := &Event{values: make(map[string]json.RawMessage)}

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &top); err != nil {
		return e, fmt.Errorf("unable to find event data in input: %w", err)
	}
	e.flatten("", top)
	return e, nil
}

func (e *Event) flatten(prefix string, obj map[string]json.RawMessage) {
	for k, v := range obj {
		key := strings.ToLower(k)
		if prefix != "" {
			key = prefix + "." + key
		}
		// null decodes into a nil map and leaves no key behind.
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(v, &nested); err == nil {
			e.flatten(key, nested)
			continue
		}
		e.values[key] = v
	}
}

// Lookup returns the value for key. JSON strings are unquoted, other values
// are returned as JSON text.
func (e *Event) Lookup(key string) (string, bool) {
	if e == nil {
		return "", false
	}
	v, ok := e.values[strings.ToLower(key)]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s, true
	}
	return string(v), true
}

// Value is Lookup without the presence flag.
func (e *Event) Value(key string) string {
	s, _ := e.Lookup(key)
	return s
}

// Keys returns the flattened keys in sorted order.
func (e *Event) Keys() []string {
	if e == nil {
		return nil
	}
	keys := make([]string, 0, len(e.values))
	for k := range e.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// JSON encodes the flattened view with every value as a string.
func (e *Event) JSON() ([]byte, error) {
	flat := make(map[string]string, len(e.values))
	for _, k := range e.Keys() {
		flat[k] = e.Value(k)
	}
	return json.MarshalIndent(flat, "", "\t")
}
