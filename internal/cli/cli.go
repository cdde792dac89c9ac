// Package cli wires the whisper-worker command line onto the transcriber.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nupi-ai/plugin-stt-whisper-worker/internal/config"
	"github.com/nupi-ai/plugin-stt-whisper-worker/internal/engine"
	"github.com/nupi-ai/plugin-stt-whisper-worker/internal/models"
	"github.com/nupi-ai/plugin-stt-whisper-worker/internal/telemetry"
	"github.com/nupi-ai/plugin-stt-whisper-worker/internal/transcriber"
	"github.com/nupi-ai/plugin-stt-whisper-worker/internal/workerinfo"
)

// Process exit codes.
const (
	ExitOK     = 0
	ExitFailed = 1
	ExitUsage  = 2
)

type options struct {
	action      actionValue
	file        string
	lang        string
	model       string
	computeType string
}

// Execute runs the worker with args (excluding the program name) and returns
// the process exit code. environ overrides the process environment when non-nil.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer, environ map[string]string) int {
	exitCode := ExitOK
	cmd := newRootCommand(stdout, stderr, environ, &exitCode)
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		fmt.Fprintln(stderr, cmd.UsageString())
		return ExitUsage
	}
	return exitCode
}

func newRootCommand(stdout, stderr io.Writer, environ map[string]string, exitCode *int) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           workerinfo.Info.BinaryName,
		Short:         workerinfo.Info.Description,
		Long:          workerinfo.Info.Name + ": " + workerinfo.Info.Description,
		Version:       workerinfo.Version(),
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			*exitCode = run(cmd, opts, stdout, stderr, environ)
			return nil
		},
	}
	cmd.SetOut(stderr)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.SortFlags = false
	flags.Var(&opts.action, "action", "action to perform (transcribe)")
	flags.StringVar(&opts.file, "file", "", "path to the audio file")
	flags.StringVar(&opts.lang, "lang", config.DefaultLanguage, `language code, or "auto" to detect`)
	flags.StringVar(&opts.model, "model", config.DefaultModel, "model variant name or path to a ggml model file")
	flags.StringVar(&opts.computeType, "compute-type", config.DefaultComputeType, "numeric precision of the model weights")
	_ = cmd.MarkFlagRequired("action")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// run executes a parsed invocation. Every outcome past argument parsing is a
// JSON document on stdout.
func run(cmd *cobra.Command, opts *options, stdout, stderr io.Writer, environ map[string]string) int {
	cfg, cfgErr := config.Loader{Environ: environ}.Load()
	logger := newLogger(stderr, cfg.LogLevel)
	if cfgErr != nil {
		return fail(stdout, logger, cfgErr)
	}

	flags := cmd.Flags()
	req := transcriber.Request{
		Action:      opts.action.String(),
		FilePath:    opts.file,
		Language:    opts.lang,
		ModelSize:   opts.model,
		ComputeType: opts.computeType,
	}
	if !flags.Changed("lang") {
		req.Language = cfg.Language
	}
	if !flags.Changed("model") {
		req.ModelSize = cfg.ModelVariant
	}
	if !flags.Changed("compute-type") {
		req.ComputeType = cfg.ComputeType
	}

	recorder := telemetry.NewRecorder(logger)
	tr := transcriber.New(newOpener(cfg, logger), cfg.ThreadCount(), logger, recorder)

	result, err := tr.Run(cmd.Context(), req)
	if err != nil {
		return fail(stdout, logger, err)
	}
	if err := transcriber.Emit(stdout, result); err != nil {
		logger.Error("failed to write result", "error", err)
		return ExitFailed
	}
	return ExitOK
}

func fail(stdout io.Writer, logger *slog.Logger, err error) int {
	logger.Debug("transcription failed", "error", err)
	if emitErr := transcriber.Emit(stdout, transcriber.Envelope{Error: err.Error()}); emitErr != nil {
		logger.Error("failed to write error envelope", "error", emitErr)
	}
	return ExitFailed
}

// newOpener defers model manager creation until an engine is requested so
// the stub engine never touches the model directory.
func newOpener(cfg config.Config, logger *slog.Logger) transcriber.Opener {
	return func(ctx context.Context, opts engine.LoadOptions) (engine.Engine, error) {
		if opts.ModelPath == "" {
			opts.ModelPath = cfg.ModelPath
		}
		var manager *models.Manager
		if !cfg.UseStubEngine {
			m, err := models.NewManager(cfg.ModelDir, logger)
			if err != nil {
				return nil, err
			}
			manager = m
		}
		eng, modelPath, err := engine.Open(ctx, cfg, manager, logger, opts)
		if err != nil {
			return nil, err
		}
		if modelPath != "" {
			logger.Info("resolved model path", "path", modelPath)
		}
		return eng, nil
	}
}
