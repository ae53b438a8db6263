package imageflow

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/imageflow/imageflow/internal/cms"
)

// sharedCMSCache is the process-wide CMS transform cache (spec §5: "CMS
// transform caches: shared across contexts; lock-free reads preferred;
// insert under write lock"). internal/cms.Cache already guards its LRU
// buckets internally, so a single package-level instance is safe to hand
// to every Context.
var sharedCMSCache = cms.NewCache()

// Context carries the logging and CMS-cache state shared across Jobs
// (spec §5). It holds no per-job mutable state itself — Arena and I/O
// bindings belong to the Job, never the Context (spec §5: "exclusive to
// one context; never shared").
type Context struct {
	Logger   zerolog.Logger
	CMSCache *cms.Cache
}

// ContextOption configures a Context at construction.
type ContextOption func(*Context)

// WithLogger overrides the default stderr-at-info-level logger.
func WithLogger(logger zerolog.Logger) ContextOption {
	return func(c *Context) { c.Logger = logger }
}

// NewContext returns a Context ready to spawn Jobs. The default logger
// writes structured JSON to stderr at info level, matching the teacher's
// silent-by-default library ethos: debug-level events (rewrite pass
// counts, codec bindings) are emitted but filtered out unless the caller
// lowers the level.
func NewContext(opts ...ContextOption) *Context {
	c := &Context{
		Logger:   zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel),
		CMSCache: sharedCMSCache,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
