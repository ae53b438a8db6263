package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imageflow/imageflow"
	"github.com/imageflow/imageflow/internal/ferror"
)

func newConvertCmd() *cobra.Command {
	var (
		query  string
		format string
	)
	cmd := &cobra.Command{
		Use:   "convert <input> <output>",
		Short: "Apply an IR4 query string (w=...&h=...&mode=...) to a single image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputPath, outputPath := args[0], args[1]
			logger := newLogger()
			cmsBackend(logger)

			data, err := os.ReadFile(inputPath)
			if err != nil {
				return ferror.Wrap(err, ferror.KindIO, "imageflow: reading %q", inputPath)
			}

			if format == "" {
				format = formatFromExt(outputPath)
			}

			ctx := imageflow.NewContext(imageflow.WithLogger(logger))
			job := ctx.NewJob()
			if err := job.AttachInputBytes("0", data); err != nil {
				return err
			}
			job.AttachOutputBuffer("1")

			doc, err := buildConvertDocument(query, format)
			if err != nil {
				return err
			}
			if err := job.Execute(context.Background(), doc); err != nil {
				return err
			}

			out, err := job.Output("1")
			if err != nil {
				return err
			}
			if err := os.WriteFile(outputPath, out, 0o644); err != nil {
				return ferror.Wrap(err, ferror.KindIO, "imageflow: writing %q", outputPath)
			}
			logger.Info().Str("in", inputPath).Str("out", outputPath).Int("bytes", len(out)).Msg("imageflow: converted")
			return nil
		},
	}
	cmd.Flags().StringVar(&query, "command", "", `IR4 query string, e.g. "w=200&h=200&mode=max"`)
	cmd.Flags().StringVar(&format, "format", "", "output codec (png, jpeg, gif, webp); inferred from output extension if omitted")
	return cmd
}

func buildConvertDocument(query, format string) ([]byte, error) {
	if format == "" {
		format = "png"
	}
	nodes := []map[string]any{
		{"decode": map[string]any{"io_id": 0}},
	}
	if query != "" {
		nodes = append(nodes, map[string]any{"command_string": map[string]any{"value": query}})
	}
	nodes = append(nodes, map[string]any{"encode": map[string]any{"io_id": 1, "format": format}})

	doc, err := json.Marshal(map[string]any{"framewise": nodes})
	if err != nil {
		return nil, ferror.Wrap(err, ferror.KindInternal, "imageflow: building recipe document")
	}
	return doc, nil
}

func formatFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".gif":
		return "gif"
	case ".webp":
		return "webp"
	case ".avif":
		return "avif"
	default:
		return "png"
	}
}
