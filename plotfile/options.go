package plotfile

import (
	"io"
	"runtime"

	"github.com/sirupsen/logrus"
)

// Option configures how a plotfile is opened.
type Option func(*options)

type options struct {
	limitLevel     int // negative means max_level
	headerOnly     bool
	validate       bool
	maxMins        bool
	ghost          bool
	parallelDegree int
	logger         logrus.FieldLogger
}

func defaultOptions() *options {
	l := logrus.New()
	l.Out = io.Discard
	return &options{
		limitLevel:     -1,
		parallelDegree: runtime.NumCPU(),
		logger:         l,
	}
}

// WithLimitLevel truncates the AMR hierarchy at level lv (inclusive).
func WithLimitLevel(lv int) Option {
	return func(o *options) {
		o.limitLevel = lv
	}
}

// HeaderOnly skips the level cell headers. Box data can't be read from a
// plotfile opened this way.
func HeaderOnly() Option {
	return func(o *options) {
		o.headerOnly = true
	}
}

// ValidateMode turns failures while reading the box geometry and the cell
// headers into a *ValidationError carrying the full diagnostic.
func ValidateMode() Option {
	return func(o *options) {
		o.validate = true
	}
}

// WithMaxMins parses the per field min/max blocks of the cell headers.
func WithMaxMins() Option {
	return func(o *options) {
		o.maxMins = true
	}
}

// WithGhost computes the box lattice and the ghost map at open time (3D only).
func WithGhost() Option {
	return func(o *options) {
		o.ghost = true
	}
}

// WithParallelDegree sets the worker count used by multi box reads.
// Zero or negative values keep the default of runtime.NumCPU().
func WithParallelDegree(np int) Option {
	return func(o *options) {
		if np > 0 {
			o.parallelDegree = np
		}
	}
}

// WithLogger sets the logger, by default all output is discarded.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
