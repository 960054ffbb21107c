package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/viant/fanout"
)

const minWarmup = 1000

type stats struct {
	Sum      float64
	Rounds   int
	Workers  int
	Duration time.Duration
}

// messages counts the Start, the reply, and a work item plus result per worker.
func (s stats) messages() int {
	return (2 + 2*s.Workers) * s.Rounds
}

func (s stats) print(w io.Writer) {
	seconds := s.Duration.Seconds()
	if seconds <= 0 {
		seconds = 1e-9
	}
	fmt.Fprintf(w, "sum: %.3f\n", s.Sum)
	fmt.Fprintf(w, "duration: %d ms\n", s.Duration.Milliseconds())
	fmt.Fprintf(w, "messages/s: %.0f\n", float64(s.messages())/seconds)
	fmt.Fprintf(w, "rounds/s: %.0f\n", float64(s.Rounds)/seconds)
}

func warmupRounds(rounds int) int {
	return max(minWarmup, rounds/100)
}

// resolveConfig loads --config when set; flags given explicitly take precedence.
func resolveConfig(cmd *cobra.Command) (*fanout.Config, error) {
	config := fanout.DefaultConfig()
	URL, _ := cmd.Flags().GetString("config")
	if URL != "" {
		loaded, err := fanout.LoadConfig(cmd.Context(), URL)
		if err != nil {
			return nil, err
		}
		config = loaded
	}
	flags := cmd.Flags()
	fromFlag := func(name string) bool {
		return URL == "" || flags.Changed(name)
	}
	if fromFlag("workers") {
		config.Workers, _ = flags.GetInt("workers")
	}
	if fromFlag("timeout") {
		config.RoundTimeout, _ = flags.GetDuration("timeout")
	}
	if fromFlag("failure-rate") {
		config.FailureRate, _ = flags.GetFloat64("failure-rate")
	}
	return config, config.Validate()
}

// Run rounds and report throughput
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run warmup and measured rounds, then print throughput",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			rounds, _ := cmd.Flags().GetInt("rounds")
			warmup, _ := cmd.Flags().GetInt("warmup")
			if warmup < 0 {
				warmup = warmupRounds(rounds)
			}
			options := []fanout.Option{fanout.WithConfig(config), fanout.WithLogger(log.Logger)}
			if traceFile, _ := cmd.Flags().GetString("trace"); traceFile != "" {
				options = append(options, fanout.WithTracing("fanout", version, traceFile))
			}
			srv, err := fanout.New(options...)
			if err != nil {
				return err
			}
			rt := srv.Runtime()
			ctx := cmd.Context()
			if err = rt.Start(ctx); err != nil {
				return err
			}
			defer rt.Shutdown(ctx)

			log.Info().Int("workers", config.Workers).Int("rounds", warmup).Msg("warming up")
			if _, err = runRounds(ctx, rt, warmup); err != nil {
				return err
			}
			log.Info().Int("workers", config.Workers).Int("rounds", rounds).Msg("measuring")
			started := time.Now()
			sum, err := runRounds(ctx, rt, rounds)
			if err != nil {
				return err
			}
			stats{Sum: sum, Rounds: rounds, Workers: config.Workers, Duration: time.Since(started)}.print(cmd.OutOrStdout())
			snapshot := rt.Progress().Snapshot()
			log.Info().Int("failures", snapshot.Failures).Int("replacements", snapshot.Replacements).
				Int("ignored", snapshot.Ignored).Msg("done")
			return nil
		},
	}
	defaults := fanout.DefaultConfig()
	cmd.Flags().Int("workers", defaults.Workers, "worker pool size")
	cmd.Flags().Int("rounds", 1000, "measured rounds")
	cmd.Flags().Int("warmup", -1, "warmup rounds; negative selects max(1000, rounds/100)")
	cmd.Flags().Duration("timeout", defaults.RoundTimeout, "per round timeout")
	cmd.Flags().Float64("failure-rate", defaults.FailureRate, "probability a work item makes its worker fail; 0 disables faults")
	cmd.Flags().String("trace", "", "write OpenTelemetry spans to this file")
	return cmd
}

func runRounds(ctx context.Context, rt *fanout.Runtime, rounds int) (float64, error) {
	var total float64
	for i := 0; i < rounds; i++ {
		sum, err := rt.Round(ctx)
		if err != nil {
			return total, fmt.Errorf("round %d: %w", i, err)
		}
		total += sum
	}
	return total, nil
}
