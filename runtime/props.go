package runtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
)

// marshalProps serializes client props. Func and chan fields of a struct,
// such as event handlers, exist only on the server and are left out. Props
// that still cannot be encoded are an InvalidClientProps error.
func marshalProps(id string, props any) ([]byte, error) {
	data, err := json.Marshal(props)
	if err == nil {
		return data, nil
	}
	var unsupported *json.UnsupportedTypeError
	if errors.As(err, &unsupported) && serverOnly(unsupported.Type) {
		if data, ok, ferr := marshalFields(props); ok {
			err = ferr
			if err == nil {
				return data, nil
			}
		}
	}
	return nil, &RenderError{Kind: InvalidClientProps, Err: &PropsError{ID: id, Err: err}}
}

// PropsError reports client props that cannot be sent to the browser.
type PropsError struct {
	ID  string
	Err error
}

func (e *PropsError) Error() string {
	return "props of client component " + e.ID + ": " + e.Err.Error()
}

func (e *PropsError) Unwrap() error {
	return e.Err
}

func serverOnly(t reflect.Type) bool {
	k := t.Kind()
	return k == reflect.Func || k == reflect.Chan
}

// marshalFields encodes the exported fields of a struct in declaration
// order, honoring json tags and skipping server-only fields. ok is false
// when props is not a struct.
func marshalFields(props any) (data []byte, ok bool, err error) {
	v := reflect.ValueOf(props)
	for v.Kind() == reflect.Pointer && !v.IsNil() {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, false, nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	t := v.Type()
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() || serverOnly(f.Type) {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" && opts == "" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		fv := v.Field(i)
		if strings.Contains(","+opts+",", ",omitempty,") && fv.IsZero() {
			continue
		}

		key, err := json.Marshal(name)
		if err != nil {
			return nil, true, err
		}
		val, err := json.Marshal(fv.Interface())
		if err != nil {
			return nil, true, err
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), true, nil
}
