// Command imageflow runs the imageflow engine from the command line: a
// "convert" subcommand applies an IR4 query string to a single input/output
// pair, and a "run" subcommand executes a full framewise JSON recipe
// against one or more named io_ids.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/imageflow/imageflow/internal/ferror"
)

// exitCode maps an error onto the CLI exit codes of spec §6: 0 success; 64
// usage/arg error; 65 data format error; 66 input missing; 70 internal
// error; 71 out of memory; 74 I/O error.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if os.IsNotExist(err) {
		return 66
	}
	switch ferror.KindOf(err) {
	case ferror.KindInvalidNodeParams, ferror.KindNodeParamsMismatch, ferror.KindInvalidNodeConnections:
		return 64
	case ferror.KindImageDecoding, ferror.KindGifDecoding, ferror.KindJpegDecoding,
		ferror.KindImageEncoding, ferror.KindColorProfile:
		return 65
	case ferror.KindIO:
		return 74
	case ferror.KindOom:
		return 71
	default:
		return 70
	}
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if viper.GetBool("verbose") {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(level)
}

// cmsBackend reads CMS_BACKEND once at startup (spec §6: "read once at
// first access"), defaulting to "moxcms". Only one Go CMS backend is
// implemented (internal/cms), so "lcms2"/"both" are accepted for
// compatibility with the recipe surface but only ever run the one backend;
// "both" additionally logs a note that no second backend exists to compare
// against — internal/cms.CompareBackends exists for comparing two
// Transforms built from the same backend, not for picking between two
// backend implementations that were never wired into this port.
func cmsBackend(logger zerolog.Logger) string {
	viper.SetDefault("cms_backend", "moxcms")
	viper.BindEnv("cms_backend", "CMS_BACKEND")
	backend := viper.GetString("cms_backend")
	switch backend {
	case "moxcms", "lcms2":
	case "both":
		logger.Debug().Msg("imageflow: CMS_BACKEND=both requested but only one CMS backend is wired; running it once")
	default:
		logger.Warn().Str("cms_backend", backend).Msg("imageflow: unrecognized CMS_BACKEND, falling back to moxcms")
		backend = "moxcms"
	}
	return backend
}

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "imageflow: %v\n", err)
		os.Exit(exitCode(err))
	}
}
