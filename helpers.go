package zx

import (
	"fmt"
	"reflect"
	"strconv"
	"unsafe"
)

// Renderable is implemented by host types that render themselves.
type Renderable interface {
	Render() Component
}

// Integer is the set of integer types Int accepts.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Int renders an integer as text.
func Int[T Integer](v T) Component {
	if v < 0 {
		return Text(strconv.FormatInt(int64(v), 10))
	}
	return Text(strconv.FormatUint(uint64(v), 10))
}

// Float renders a floating point number as text using the shortest
// representation that round-trips.
func Float[T ~float32 | ~float64](v T) Component {
	return Text(strconv.FormatFloat(float64(v), 'g', -1, int(unsafe.Sizeof(v))*8))
}

// Bool renders a boolean as text.
func Bool[T ~bool](v T) Component {
	return Text(strconv.FormatBool(bool(v)))
}

// Any converts an arbitrary value to a Component.
// Components are returned as-is, strings become text, slices become
// fragments, nil pointers render nothing and other pointers render the value
// they point to. Numbers, booleans, errors and fmt.Stringers render as text.
// Values that cannot be rendered (channels, maps, functions) fail the render.
func Any(value any) Component {
	switch v := value.(type) {
	case nil:
		return Empty()
	case Component:
		return v
	case []Component:
		return Fragment(v...)
	case Renderable:
		return v.Render()
	case func() Component:
		return Lazy("", v)
	case string:
		return Text(v)
	case []byte:
		return Text(string(v))
	case error:
		return Text(v.Error())
	case fmt.Stringer:
		return Text(v.String())
	case bool:
		return Bool(v)
	case int:
		return Int(v)
	case int8:
		return Int(v)
	case int16:
		return Int(v)
	case int32:
		return Int(v)
	case int64:
		return Int(v)
	case uint:
		return Int(v)
	case uint8:
		return Int(v)
	case uint16:
		return Int(v)
	case uint32:
		return Int(v)
	case uint64:
		return Int(v)
	case float32:
		return Float(v)
	case float64:
		return Float(v)
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Empty()
		}
		return Any(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		children := make([]Component, rv.Len())
		for i := range children {
			children[i] = Any(rv.Index(i).Interface())
		}
		return Fragment(children...)
	case reflect.String:
		return Text(rv.String())
	case reflect.Bool:
		return Bool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Text(strconv.FormatInt(rv.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Text(strconv.FormatUint(rv.Uint(), 10))
	case reflect.Float32:
		return Text(strconv.FormatFloat(rv.Float(), 'g', -1, 32))
	case reflect.Float64:
		return Text(strconv.FormatFloat(rv.Float(), 'g', -1, 64))
	case reflect.Struct:
		return Text(fmt.Sprint(value))
	}
	return Fail(fmt.Errorf("zx: cannot render %T", value))
}

// When returns child if condition is true, else an empty component.
// Useful for conditional rendering: {zx.When(showExtra, <Extra />)}
func When(condition bool, child Component) Component {
	if condition {
		return child
	}
	return Empty()
}

// WhenElse returns ifTrue if condition is true, else ifFalse.
func WhenElse(condition bool, ifTrue, ifFalse Component) Component {
	if condition {
		return ifTrue
	}
	return ifFalse
}

// Map applies fn to each item and returns the results as a fragment.
// Useful for rendering lists: {zx.Map(items, func(item Item) zx.Component { return <ItemView item={item} /> })}
func Map[T any](items []T, fn func(T) Component) Component {
	children := make([]Component, len(items))
	for i, item := range items {
		children[i] = fn(item)
	}
	return Fragment(children...)
}

// MapIndex is like Map but also passes the index.
func MapIndex[T any](items []T, fn func(int, T) Component) Component {
	children := make([]Component, len(items))
	for i, item := range items {
		children[i] = fn(i, item)
	}
	return Fragment(children...)
}
