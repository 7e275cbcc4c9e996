package plotfile

import (
	"fmt"

	"github.com/pkg/errors"
)

// UsageError reports a caller argument that violates a precondition, such as a
// level above limit_level or a duplicated field name.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }

func usageErrorf(format string, args ...interface{}) error {
	return errors.WithStack(&UsageError{Msg: fmt.Sprintf(format, args...)})
}

// FormatError reports structurally inconsistent or missing data in a header
// or a binary record.
type FormatError struct {
	File string
	Line int // 1 based, zero when not line oriented
	Msg  string
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Msg)
}

func formatErrorf(file string, line int, format string, args ...interface{}) error {
	return errors.WithStack(&FormatError{File: file, Line: line, Msg: fmt.Sprintf(format, args...)})
}

// ValidationError is returned in validate mode in place of any failure met
// while reading the box geometry or the level cell headers. Diagnostic holds the
// full %+v rendering of the original error, stack trace included.
type ValidationError struct {
	Stage      string
	Err        error
	Diagnostic string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("plotfile reader encountered a fatal error while %s;"+
		" this could be due to missing or badly formatted box data: %s\n%s",
		e.Stage, e.Err, e.Diagnostic)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// guard runs fn and, when validate is set, turns any failure (panics included)
// into a *ValidationError for stage.
func guard(validate bool, stage string, fn func() error) (err error) {
	if !validate {
		return fn()
	}
	defer func() {
		if r := recover(); r != nil {
			perr := errors.Errorf("panic: %v", r)
			err = &ValidationError{Stage: stage, Err: perr, Diagnostic: fmt.Sprintf("%+v", perr)}
		}
	}()
	if err = fn(); err != nil {
		var ue *UsageError
		if errors.As(err, &ue) {
			return err
		}
		return &ValidationError{Stage: stage, Err: err, Diagnostic: fmt.Sprintf("%+v", err)}
	}
	return nil
}
