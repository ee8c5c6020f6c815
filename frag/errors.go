package frag

import (
	"fmt"
)

// IOError reports a shader source (root or included) that could not be read.
// The whole assembly or dependency walk is aborted when it occurs.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("read shader source %q: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ParseError reports a malformed control annotation.
type ParseError struct {
	File  string
	Line  int
	Key   string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("control annotation %s:%q: %v", e.Key, e.Value, e.Err)
	}
	return fmt.Sprintf("%s:%d: control annotation %s:%q: %v", e.File, e.Line, e.Key, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
