package zx

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Escaping controls how text is written.
type Escaping string

const (
	EscapingInherit Escaping = ""
	EscapingHTML    Escaping = "html"
	EscapingNone    Escaping = "none"
)

// Rendering selects where a subtree is rendered.
type Rendering string

const (
	RenderingInherit Rendering = ""
	RenderingServer  Rendering = "server"
	RenderingClient  Rendering = "client"
)

// AsyncMode selects whether a subtree is streamed after the main document.
type AsyncMode string

const (
	AsyncNone   AsyncMode = ""
	AsyncStream AsyncMode = "stream"
)

// Options are the builtin options of a node. Zero fields inherit from the
// enclosing node.
type Options struct {
	Escaping  Escaping
	Rendering Rendering
	Async     AsyncMode
	Fallback  Component // rendered in the placeholder of an async node
	Caching   Caching
}

// merge returns o with the fields set in over replaced.
func (o Options) merge(over Options) Options {
	if over.Escaping != EscapingInherit {
		o.Escaping = over.Escaping
	}
	if over.Rendering != RenderingInherit {
		o.Rendering = over.Rendering
	}
	if over.Async != AsyncNone {
		o.Async = over.Async
	}
	if !over.Fallback.IsEmpty() {
		o.Fallback = over.Fallback
	}
	if !over.Caching.IsZero() {
		o.Caching = over.Caching
	}
	return o
}

// Caching describes a cached subtree: its HTML is kept for TTL under Key.
type Caching struct {
	TTL time.Duration
	Key string
}

// IsZero reports whether c is unset.
func (c Caching) IsZero() bool {
	return c.TTL == 0 && c.Key == ""
}

func (c Caching) String() string {
	if c.Key == "" {
		return c.TTL.String()
	}
	return c.TTL.String() + ":" + c.Key
}

// ParseCaching parses "TTL" or "TTL:key". TTL is a Go duration or a whole
// number of days ("2d"). The key is everything after the first colon.
func ParseCaching(s string) (Caching, error) {
	ttlText, key, _ := strings.Cut(s, ":")
	ttlText = strings.TrimSpace(ttlText)
	if ttlText == "" {
		return Caching{}, fmt.Errorf("missing duration in %q", s)
	}

	var ttl time.Duration
	if days, ok := strings.CutSuffix(ttlText, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return Caching{}, fmt.Errorf("invalid duration %q", ttlText)
		}
		ttl = time.Duration(n) * 24 * time.Hour
	} else {
		d, err := time.ParseDuration(ttlText)
		if err != nil {
			return Caching{}, fmt.Errorf("invalid duration %q", ttlText)
		}
		ttl = d
	}
	if ttl <= 0 {
		return Caching{}, fmt.Errorf("duration %q must be positive", ttlText)
	}
	return Caching{TTL: ttl, Key: key}, nil
}

// MustParseCaching is like ParseCaching but panics on error. Generated code
// uses it with values validated at compile time.
func MustParseCaching(s string) Caching {
	c, err := ParseCaching(s)
	if err != nil {
		panic("zx: " + err.Error())
	}
	return c
}
