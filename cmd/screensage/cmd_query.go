package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"screensage/internal/sandbox"
	"screensage/internal/solver"
	"screensage/internal/store"
	"screensage/internal/types"
	"screensage/internal/validator"
)

var flagQueryLimit int

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Full-text search over stored screen text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.NewLocalStore(cfg.DatabasePath())
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer st.Close()

		hits, err := st.SearchText(context.Background(), strings.Join(args, " "), flagQueryLimit)
		if err != nil {
			return err
		}
		if len(hits) == 0 {
			fmt.Println("no matches")
			return nil
		}
		return printJSON(hits)
	},
}

var solveCmd = &cobra.Command{
	Use:   "solve <problem.json>",
	Short: "Generate and validate a solution for a saved problem",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read problem: %w", err)
		}
		var problem types.DetectedProblem
		if err := json.Unmarshal(data, &problem); err != nil {
			return fmt.Errorf("failed to parse problem: %w", err)
		}

		client, err := solver.NewClientFromConfig(cfg.Solution)
		if err != nil {
			return err
		}
		generator := solver.NewGenerator(cfg.Solution, client)

		ctx := cmd.Context()
		solution, err := generator.Generate(ctx, &problem)
		if err != nil {
			return err
		}

		if len(problem.TestCases) > 0 {
			runner := sandbox.NewPythonRunner(cfg.Validator.PythonBinary)
			v := validator.New(cfg.Validator, runner)
			solution.TestResults = v.Validate(ctx, solution, problem.TestCases)
			report := v.Report(solution.TestResults)
			fmt.Fprintf(os.Stderr, "validation: %.0f%% passed, score %.1f/10\n",
				report.SuccessRate*100, report.PerformanceScore)
		}
		return printJSON(solution)
	},
}

func init() {
	queryCmd.Flags().IntVar(&flagQueryLimit, "limit", 20, "maximum hits to return")
}
