package document

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidDocument means a stored payload is not a JSON object or one of
// its known keys has the wrong kind.
var ErrInvalidDocument = errors.New("invalid document")

// Fields is the decoded form of a document keyed by name. Schema keys hold
// JSON scalars; pass-through keys may hold arrays or objects. Numbers are
// always float64.
type Fields map[string]any

// Clone returns a deep copy, so nested pass-through values are not shared.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = cloneValue(e)
		}
		return s
	default:
		return v
	}
}

// decode parses raw and completes it with any key of defaults it lacks.
// completed reports whether such keys were added.
func decode(raw []byte, defaults Fields) (fields Fields, completed bool, err error) {
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if fields == nil {
		return nil, false, fmt.Errorf("%w: not an object", ErrInvalidDocument)
	}
	for key, def := range defaults {
		v, ok := fields[key]
		if !ok {
			fields[key] = def
			completed = true
			continue
		}
		if !sameKind(def, v) {
			return nil, false, fmt.Errorf("%w: key %q has %T, want %T", ErrInvalidDocument, key, v, def)
		}
	}
	return fields, completed, nil
}

// Check validates raw the way a watcher would before accepting it.
func Check(raw []byte, defaults map[string]any) error {
	_, _, err := decode(raw, normalizeAll(defaults))
	return err
}

// sameKind reports whether v may stand where def is the default. A nil
// default declares a nullable number.
func sameKind(def, v any) bool {
	switch def.(type) {
	case nil:
		if v == nil {
			return true
		}
		_, ok := v.(float64)
		return ok
	case float64:
		_, ok := v.(float64)
		return ok
	case bool:
		_, ok := v.(bool)
		return ok
	case string:
		_, ok := v.(string)
		return ok
	default:
		return true
	}
}

// encode renders fields canonically; encoding/json sorts map keys, so equal
// documents encode to equal bytes.
func encode(fields Fields) ([]byte, error) {
	return json.Marshal(fields)
}

// normalize converts Go numeric types to float64 so values compare equal to
// their decoded form.
func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}

func normalizeAll(fields Fields) Fields {
	out := make(Fields, len(fields))
	for k, v := range fields {
		out[k] = normalize(v)
	}
	return out
}
