package moodle

import (
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
)

// Params are the arguments of a web-service function.
// Values may be scalars, slices, maps or nested combinations of them.
type Params map[string]interface{}

// Encode flattens params into Moodle's form encoding:
// slices become key[index] and nested maps become key[index][subkey].
// Nil values are omitted.
func (p Params) Encode() url.Values {
	values := url.Values{}
	for _, key := range sortedKeys(p) {
		flatten(values, key, p[key])
	}
	return values
}

func flatten(values url.Values, key string, v interface{}) {
	switch t := v.(type) {
	case nil:
		return
	case string:
		values.Add(key, t)
	case bool:
		if t {
			values.Add(key, "1")
		} else {
			values.Add(key, "0")
		}
	case int:
		values.Add(key, strconv.Itoa(t))
	case int64:
		values.Add(key, strconv.FormatInt(t, 10))
	case float64:
		values.Add(key, strconv.FormatFloat(t, 'f', -1, 64))
	case json.Number:
		values.Add(key, t.String())
	case Params:
		flattenMap(values, key, t)
	case map[string]interface{}:
		flattenMap(values, key, t)
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			for i := 0; i < rv.Len(); i++ {
				flatten(values, fmt.Sprintf("%s[%d]", key, i), rv.Index(i).Interface())
			}
		case reflect.Map:
			if rv.Type().Key().Kind() != reflect.String {
				values.Add(key, fmt.Sprint(v))
				return
			}
			nested := make(map[string]interface{}, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				nested[iter.Key().String()] = iter.Value().Interface()
			}
			flattenMap(values, key, nested)
		default:
			values.Add(key, fmt.Sprint(v))
		}
	}
}

func flattenMap(values url.Values, prefix string, m map[string]interface{}) {
	for _, key := range sortedKeys(m) {
		flatten(values, prefix+"["+key+"]", m[key])
	}
}

func sortedKeys[M ~map[string]interface{}](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
