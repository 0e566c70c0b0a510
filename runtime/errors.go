package runtime

import "errors"

// ErrMissingPlaceholder is returned by RenderPage when the template has no
// BodyMarker.
var ErrMissingPlaceholder = errors.New("template has no " + BodyMarker + " marker")

// RenderErrorKind classifies a RenderError.
type RenderErrorKind int

const (
	ComponentFailed RenderErrorKind = iota
	MissingPlaceholderMarker
	InvalidClientProps
)

func (k RenderErrorKind) String() string {
	switch k {
	case ComponentFailed:
		return "component failed"
	case MissingPlaceholderMarker:
		return "missing placeholder marker"
	case InvalidClientProps:
		return "invalid client props"
	}
	return "unknown"
}

// RenderError reports a failed render.
type RenderError struct {
	Kind RenderErrorKind
	Err  error
}

func (e *RenderError) Error() string {
	return "render: " + e.Err.Error()
}

func (e *RenderError) Unwrap() error {
	return e.Err
}
