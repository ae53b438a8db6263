package main

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imageflow/imageflow"
	"github.com/imageflow/imageflow/internal/ferror"
)

func newRunCmd() *cobra.Command {
	var ins, outs []string
	cmd := &cobra.Command{
		Use:   "run <recipe.json>",
		Short: "Execute a framewise JSON recipe against explicit io_id bindings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recipePath := args[0]
			logger := newLogger()
			cmsBackend(logger)

			document, err := os.ReadFile(recipePath)
			if err != nil {
				return ferror.Wrap(err, ferror.KindIO, "imageflow: reading recipe %q", recipePath)
			}

			ctx := imageflow.NewContext(imageflow.WithLogger(logger))
			job := ctx.NewJob()

			for _, in := range ins {
				ioID, path, err := splitBinding(in)
				if err != nil {
					return err
				}
				data, err := os.ReadFile(path)
				if err != nil {
					return ferror.Wrap(err, ferror.KindIO, "imageflow: reading input %q", path)
				}
				if err := job.AttachInputBytes(ioID, data); err != nil {
					return err
				}
			}
			outPaths := make(map[string]string, len(outs))
			for _, out := range outs {
				ioID, path, err := splitBinding(out)
				if err != nil {
					return err
				}
				job.AttachOutputBuffer(ioID)
				outPaths[ioID] = path
			}

			if err := job.Execute(context.Background(), document); err != nil {
				return err
			}

			for ioID, path := range outPaths {
				data, err := job.Output(ioID)
				if err != nil {
					return err
				}
				if err := os.WriteFile(path, data, 0o644); err != nil {
					return ferror.Wrap(err, ferror.KindIO, "imageflow: writing output %q", path)
				}
				logger.Info().Str("io_id", ioID).Str("path", path).Int("bytes", len(data)).Msg("imageflow: wrote output")
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&ins, "in", nil, "io_id=path binding for an input, repeatable")
	cmd.Flags().StringArrayVar(&outs, "out", nil, "io_id=path binding for an output, repeatable")
	return cmd
}

func splitBinding(s string) (ioID, path string, err error) {
	parts := strings.SplitN(s, "=", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", ferror.New(ferror.KindInvalidNodeParams, "imageflow: binding %q must be io_id=path", s)
	}
	return parts[0], parts[1], nil
}
