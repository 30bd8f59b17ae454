package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/dshills/textcore/internal/engine/lineindex"
)

// Default configuration values.
const (
	DefaultMaxRevisions = 0 // 0 means unbounded, per the spec's "accumulate until free".
)

// Option configures a Buffer during creation.
type Option func(*Buffer)

// WithMaxRevisions bounds the number of live revisions kept in the
// graph; once exceeded, detached subtrees are pruned oldest-first. 0
// (the default) means unbounded.
func WithMaxRevisions(max int) Option {
	return func(b *Buffer) {
		b.maxRevisions = max
	}
}

// WithLogger sets the structured logger used for load and save events
// and for SIGBUS addresses classified inside the mmap region. The
// default is a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(b *Buffer) {
		if log != nil {
			b.log = log
		}
	}
}

// WithClock overrides the wall clock used for revision timestamps; it
// exists for deterministic tests of restore().
func WithClock(clock func() time.Time) Option {
	return func(b *Buffer) {
		if clock != nil {
			b.clock = clock
		}
	}
}

// WithNewlineType forces the newline type instead of detecting it from
// the loaded content.
func WithNewlineType(nt lineindex.NewlineType) Option {
	return func(b *Buffer) {
		b.forcedNewline = &nt
	}
}

// WithReadOnly creates a buffer that rejects mutating operations with
// an Unsupported error.
func WithReadOnly() Option {
	return func(b *Buffer) {
		b.readOnly = true
	}
}
