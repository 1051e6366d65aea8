package router

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/vango-dev/routedata/pkg/routepath"
)

// Params holds the dynamic segments captured by a match.
// The wildcard remainder is stored under "*".
type Params map[string]string

// Get returns the param value, or "" when absent.
func (p Params) Get(name string) string {
	return p[name]
}

func (p Params) clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Decode populates a struct from the params using `param` tags.
// The target must be a pointer to a struct.
//
//	var p struct {
//	    EventID string `param:"eventId"`
//	    Page    int    `param:"page"`
//	}
//	err := args.Params.Decode(&p)
func (p Params) Decode(target any) error {
	if target == nil {
		return nil
	}

	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr {
		return fmt.Errorf("router: decode target must be a pointer, got %s", v.Kind())
	}

	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("router: decode target must be a pointer to struct, got pointer to %s", v.Kind())
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name := field.Tag.Get("param")
		if name == "" {
			continue
		}

		value, ok := p[name]
		if !ok {
			continue
		}

		fv := v.Field(i)
		if !fv.CanSet() {
			continue
		}

		if err := setField(fv, value); err != nil {
			return fmt.Errorf("router: param %q: %w", name, err)
		}
	}

	return nil
}

// setField sets a field value from a string.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %s", value)
		}
		field.SetInt(n)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid unsigned integer: %s", value)
		}
		field.SetUint(n)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %s", value)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element type: %s", field.Type().Elem().Kind())
		}
		// Wildcard remainder: "a/b/c" -> ["a", "b", "c"]
		var parts []string
		if value != "" {
			parts = strings.Split(value, "/")
		}
		field.Set(reflect.ValueOf(parts))

	default:
		return fmt.Errorf("unsupported type: %s", field.Kind())
	}

	return nil
}

// Href fills a pattern such as "/events/:eventId/edit" with params.
// Dynamic values are path-escaped; the wildcard value is inserted as-is.
func Href(pattern string, params Params) (string, error) {
	parts := splitPath(pattern)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		switch {
		case part == "*":
			if rest := params["*"]; rest != "" {
				out = append(out, rest)
			}
		case strings.HasPrefix(part, ":"):
			value, ok := params[part[1:]]
			if !ok || value == "" {
				return "", fmt.Errorf("router: missing param %q for %q", part[1:], pattern)
			}
			out = append(out, routepath.EscapeSegment(value))
		default:
			out = append(out, part)
		}
	}
	return "/" + strings.Join(out, "/"), nil
}
