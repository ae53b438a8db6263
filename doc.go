// Package imageflow is an image transformation engine: it decodes JPEG,
// PNG, GIF, WebP, and AVIF inputs, applies a declarative graph of
// operations (resize, rotate, crop, pad), and re-encodes the result,
// driven by either a JSON "framewise" recipe or an IR4 query string.
//
// A Context owns the process-wide shared state (a CMS transform cache,
// structured logging); a Job is one execution against that Context, with
// its own exclusive bitmap arena and I/O bindings (spec §5: "Bitmap
// arena: exclusive to one context; never shared").
//
// Basic usage:
//
//	ctx := imageflow.NewContext()
//	job := ctx.NewJob()
//	job.AttachInputBytes("0", pngBytes)
//	job.AttachOutputBuffer("1")
//	err := job.Execute(context.Background(), []byte(`{"framewise":[{"decode":{"io_id":0}},{"constrain":{"w":100}},{"encode":{"io_id":1,"format":"png"}}]}`))
//	out, _ := job.Output("1")
package imageflow
