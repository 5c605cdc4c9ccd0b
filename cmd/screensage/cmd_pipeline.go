package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"screensage/internal/capture"
	"screensage/internal/changedetect"
	"screensage/internal/detector"
	"screensage/internal/ocr"
	"screensage/internal/pipeline"
	"screensage/internal/sandbox"
	"screensage/internal/solver"
	"screensage/internal/store"
	"screensage/internal/validator"
	"screensage/internal/vision"
)

var flagFramesDir string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the pipeline against a frame spool directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagFramesDir == "" {
			return fmt.Errorf("--frames is required")
		}

		coordinator, st, err := buildCoordinator()
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close()
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := coordinator.StartSession(ctx, configSnapshot()); err != nil {
			return fmt.Errorf("failed to start session: %w", err)
		}

		source, err := capture.NewDirectorySource(flagFramesDir)
		if err != nil {
			return err
		}
		defer source.Close()

		// Stream events to stdout for the overlay process.
		go printEvents(ctx, coordinator.Bus())

		fmt.Fprintf(os.Stderr, "watching %s (ctrl-c to stop)\n", flagFramesDir)
		for {
			frame, err := source.Next(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
					return nil
				}
				return err
			}
			coordinator.Submit(ctx, frame)
		}
	},
}

var processCmd = &cobra.Command{
	Use:   "process <image.png>",
	Short: "Run one pipeline turn for a single image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		coordinator, st, err := buildCoordinator()
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close()
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := coordinator.StartSession(ctx, configSnapshot()); err != nil {
			return fmt.Errorf("failed to start session: %w", err)
		}

		frame, err := capture.LoadFrame(args[0])
		if err != nil {
			return err
		}

		result := coordinator.Process(ctx, frame)
		out := struct {
			Report    interface{} `json:"report"`
			Problems  interface{} `json:"problems"`
			Solutions interface{} `json:"solutions"`
			Metrics   interface{} `json:"metrics"`
		}{result.Report, result.Problems, result.Solutions, result.Metrics}
		return printJSON(out)
	},
}

func init() {
	watchCmd.Flags().StringVar(&flagFramesDir, "frames", "", "directory the screen grabber spools PNG frames into")
}

// buildCoordinator wires every pipeline stage from the loaded config.
func buildCoordinator() (*pipeline.Coordinator, store.Store, error) {
	client, err := solver.NewClientFromConfig(cfg.Solution)
	if err != nil {
		return nil, nil, err
	}

	st, err := store.NewLocalStore(cfg.DatabasePath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}

	runner := sandbox.NewPythonRunner(cfg.Validator.PythonBinary)
	coordinator := pipeline.NewCoordinator(
		cfg,
		changedetect.New(cfg.ChangeDetector),
		ocr.NewEngineFromConfig(cfg.OCR),
		vision.New(cfg.Vision),
		detector.New(cfg.Detector),
		solver.NewGenerator(cfg.Solution, client),
		validator.New(cfg.Validator, runner),
		st,
		pipeline.NewBus(cfg.Coordinator.EventBusCapacity),
	)
	return coordinator, st, nil
}

func printEvents(ctx context.Context, bus *pipeline.Bus) {
	encoder := json.NewEncoder(os.Stdout)
	for {
		event, err := bus.Next(ctx)
		if err != nil {
			return
		}
		if err := encoder.Encode(event); err != nil {
			fmt.Fprintf(os.Stderr, "failed to encode event: %v\n", err)
		}
	}
}

func configSnapshot() string {
	data, err := json.Marshal(cfg)
	if err != nil {
		return ""
	}
	return string(data)
}

func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
