package main

import (
	"context"
	"fmt"
	"github.com/Avi18971911/augur-go/pkg/augur"
	"github.com/Avi18971911/augur-go/pkg/route"
	"github.com/spf13/cobra"
	"time"
)

func newSendSpanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send-span",
		Short: "Send a transaction with a single span of the given duration",
		Args:  cobra.NoArgs,
		RunE:  runSendSpan,
	}
	cmd.Flags().String("name", "", "transaction name")
	cmd.Flags().String("op", "cli", "span operation")
	cmd.Flags().Duration("duration", time.Second, "span duration")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func runSendSpan(cmd *cobra.Command, _ []string) error {
	name, err := cmd.Flags().GetString("name")
	if err != nil {
		return fmt.Errorf("failed to get name flag: %w", err)
	}
	op, err := cmd.Flags().GetString("op")
	if err != nil {
		return fmt.Errorf("failed to get op flag: %w", err)
	}
	duration, err := cmd.Flags().GetDuration("duration")
	if err != nil {
		return fmt.Errorf("failed to get duration flag: %w", err)
	}
	if duration < 0 {
		return fmt.Errorf("duration must not be negative, got %s", duration)
	}

	// A span sent on purpose is always sampled, unless the configuration says otherwise.
	s, err := setup(cmd, func(options *augur.Options) {
		if !options.EnableTracing {
			options.EnableTracing = true
			options.TracesSampleRate = 1
		}
	})
	if err != nil {
		return err
	}

	end := time.Now()
	start := end.Add(-duration)
	var traceID string
	_ = augur.StartSpan(cmd.Context(), augur.SpanOptions{
		Name:      name,
		Op:        op,
		Source:    route.SourceCustom,
		StartTime: start,
	}, func(_ context.Context, span *augur.Span) error {
		traceID = span.TraceID().String()
		span.End(augur.WithEndTime(end))
		return nil
	})

	if err := s.finish(); err != nil {
		return err
	}
	if s.dryRun == nil {
		fmt.Fprintln(s.cmd.OutOrStdout(), traceID)
	}
	return nil
}
