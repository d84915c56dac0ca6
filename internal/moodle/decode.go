package moodle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Moodle payloads differ between function families and releases: ids arrive
// as numbers or strings, lists arrive bare or wrapped in an object. These
// helpers read them without committing to one shape.

func decodeJSON(body []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload interface{}
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// AsMap returns v as a JSON object
func AsMap(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}

// Items returns the list held by payload. A bare list is returned as is;
// for an object the first listed key holding a list wins.
func Items(payload interface{}, keys ...string) []interface{} {
	switch p := payload.(type) {
	case []interface{}:
		return p
	case map[string]interface{}:
		for _, key := range keys {
			if list, ok := p[key].([]interface{}); ok {
				return list
			}
		}
	}
	return nil
}

// Int converts a JSON number, numeric string or Go integer to int
func Int(v interface{}) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		if f, err := n.Float64(); err == nil && f == math.Trunc(f) {
			return int(f), true
		}
	case float64:
		if n == math.Trunc(n) {
			return int(n), true
		}
	case int:
		return n, true
	case int64:
		return int(n), true
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i, true
		}
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// String converts a scalar to its string form; nil becomes ""
func String(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	default:
		return fmt.Sprint(s)
	}
}

// IntField returns the first key of m that holds an integer
func IntField(m map[string]interface{}, keys ...string) (int, bool) {
	for _, key := range keys {
		if v, found := m[key]; found {
			if i, ok := Int(v); ok {
				return i, true
			}
		}
	}
	return 0, false
}

// StringField returns the first non-empty string among keys of m
func StringField(m map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if s := strings.TrimSpace(String(m[key])); s != "" {
			return s
		}
	}
	return ""
}
