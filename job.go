package imageflow

import (
	"context"
	"io"

	"github.com/imageflow/imageflow/internal/arena"
	"github.com/imageflow/imageflow/internal/codecs"
	"github.com/imageflow/imageflow/internal/ferror"
	"github.com/imageflow/imageflow/internal/framewise"
	"github.com/imageflow/imageflow/internal/graph"
	_ "github.com/imageflow/imageflow/internal/ir4" // registers graph.CommandStringExpanderFunc
	"github.com/imageflow/imageflow/internal/ioproxy"
	"github.com/imageflow/imageflow/internal/security"
)

// Job is one execution against a Context: its own exclusive bitmap arena,
// its own io_id-keyed input/output bindings, and the security caps that
// apply to it (spec §5: the arena and I/O proxies are "exclusive to one
// context; never shared", so each Job gets a fresh one rather than reusing
// the Context's).
type Job struct {
	ctx      *Context
	arena    *arena.Arena
	registry *codecs.Registry
	inputs   map[string]ioproxy.IoProxy
	outputs  map[string]ioproxy.IoProxy
	caps     security.Caps
	executed bool
	graph    *graph.Graph
}

// NewJob starts a Job against c. Caps defaults to unbounded on every axis;
// set via SetCaps before Execute to enforce spec §4.7's size limits.
func (c *Context) NewJob() *Job {
	return &Job{
		ctx:      c,
		arena:    arena.New(),
		registry: codecs.NewDefaultRegistry(),
		inputs:   make(map[string]ioproxy.IoProxy),
		outputs:  make(map[string]ioproxy.IoProxy),
	}
}

// SetCaps installs the security limits this Job enforces (spec §4.7).
func (j *Job) SetCaps(caps security.Caps) { j.caps = caps }

// AttachInputBytes binds an input io_id to an in-memory byte slice,
// sniffing its format so the registry can resolve the Decode node that
// later references this io_id (spec §6: "io_ids are int32, unique per
// job"; here carried as the caller's own string form).
func (j *Job) AttachInputBytes(ioID string, data []byte) error {
	format, ok := sniffFormat(data)
	if !ok {
		return ferror.New(ferror.KindImageDecoding, "imageflow: could not identify the format of input io_id %q", ioID)
	}
	if err := j.registry.AliasDecoder(ioID, format); err != nil {
		return err
	}
	j.inputs[ioID] = ioproxy.NewSliceProxy(data)
	return nil
}

// AttachOutputBuffer binds an output io_id to a growable in-memory
// buffer, retrievable after Execute via Output. The Encode node itself
// carries the target format (framewise's "format"/"preset" field, or
// IR4's encoder-family tuning keys); this call only supplies the backing.
func (j *Job) AttachOutputBuffer(ioID string) {
	j.outputs[ioID] = ioproxy.NewBufferProxy()
}

// Execute parses a framewise JSON document (spec §4.12) and runs the
// rewriter to completion. Context cancellation is checked before and after
// the rewrite, not between its passes (spec §5 gives the core no
// cancellation contract of its own; this is an ambient convenience the
// host may ignore by passing context.Background()).
func (j *Job) Execute(ctx context.Context, document []byte) error {
	if j.executed {
		return ferror.New(ferror.KindInvalidOperation, "imageflow: job already executed")
	}
	parsed, err := framewise.Parse(document)
	if err != nil {
		return err
	}
	caps := j.caps
	caps = mergeCaps(caps, parsed.Caps)

	sources := make(map[string]io.Reader, len(j.inputs))
	for id, proxy := range j.inputs {
		sources[id] = proxy
	}
	sinks := make(map[string]io.Writer, len(j.outputs))
	for id, proxy := range j.outputs {
		sinks[id] = proxy
	}

	execCtx := &graph.ExecContext{
		Arena:    j.arena,
		Registry: j.registry,
		Caps:     caps,
		Sources:  sources,
		Sinks:    sinks,
	}

	j.ctx.Logger.Debug().Int("nodes", len(parsed.Graph.Nodes)).Msg("imageflow: starting rewrite")
	if err := runRewrite(ctx, parsed.Graph, execCtx); err != nil {
		return err
	}
	for _, proxy := range j.outputs {
		if err := proxy.Finalize(); err != nil {
			return err
		}
	}
	j.graph = parsed.Graph
	j.executed = true
	return nil
}

// runRewrite drives graph.Rewrite, checking ctx between the outer loop's
// passes isn't possible without threading a hook into internal/graph, so
// instead this checks once up front and once after: the core's own
// concurrency model (spec §5) gives no mid-pass suspension point, and
// Rewrite's pass cap already bounds worst-case work.
func runRewrite(ctx context.Context, g *graph.Graph, execCtx *graph.ExecContext) error {
	if err := ctx.Err(); err != nil {
		return ferror.Wrap(err, ferror.KindInvalidOperation, "imageflow: context cancelled before execution")
	}
	if err := graph.Rewrite(g, execCtx, 0); err != nil {
		return err
	}
	return ctx.Err()
}

// Output returns the encoded bytes written to an output io_id. It is an
// error to call before Execute, or for an io_id with no output attached;
// an attached output that Execute never wrote to yields empty bytes.
func (j *Job) Output(ioID string) ([]byte, error) {
	if !j.executed {
		return nil, ferror.New(ferror.KindInvalidOperation, "imageflow: job has not been executed")
	}
	proxy, ok := j.outputs[ioID]
	if !ok {
		return nil, ferror.New(ferror.KindInvalidOperation, "imageflow: no output attached for io_id %q", ioID)
	}
	return proxy.ReadToEnd()
}

// GraphRecording serializes the job's current graph state (spec §4.12's
// graph_recording field). Valid any time after Execute.
func (j *Job) GraphRecording() ([]byte, error) {
	if j.graph == nil {
		return nil, ferror.New(ferror.KindInvalidOperation, "imageflow: job has not been executed")
	}
	return framewise.Record(j.graph)
}

// mergeCaps lets a recipe's own {security: {...}} object (parsed into
// fromDoc) tighten whatever caps the Job was configured with, but never
// loosen them: a nil field on fromDoc leaves the Job's own cap in place.
func mergeCaps(base, fromDoc security.Caps) security.Caps {
	if fromDoc.MaxDecodeSize != nil {
		base.MaxDecodeSize = fromDoc.MaxDecodeSize
	}
	if fromDoc.MaxFrameSize != nil {
		base.MaxFrameSize = fromDoc.MaxFrameSize
	}
	if fromDoc.MaxEncodeSize != nil {
		base.MaxEncodeSize = fromDoc.MaxEncodeSize
	}
	return base
}
