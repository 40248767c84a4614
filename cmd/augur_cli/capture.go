package main

import (
	"errors"
	"fmt"
	"github.com/Avi18971911/augur-go/pkg/augur"
	"github.com/Avi18971911/augur-go/pkg/event/model"
	"github.com/spf13/cobra"
	"strings"
)

func newCaptureMessageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture-message [flags] text...",
		Short: "Capture a message event",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runCaptureMessage,
	}
	cmd.Flags().String("level", string(model.InfoLevel), "event level (debug|info|warning|error|fatal)")
	cmd.Flags().StringToString("tag", nil, "tags to attach, as key=value")
	return cmd
}

func newCaptureExceptionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture-exception [flags] text...",
		Short: "Capture an error event with the given message",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runCaptureException,
	}
	cmd.Flags().StringToString("tag", nil, "tags to attach, as key=value")
	return cmd
}

func runCaptureMessage(cmd *cobra.Command, args []string) error {
	level, err := cmd.Flags().GetString("level")
	if err != nil {
		return fmt.Errorf("failed to get level flag: %w", err)
	}
	tags, err := cmd.Flags().GetStringToString("tag")
	if err != nil {
		return fmt.Errorf("failed to get tag flag: %w", err)
	}
	s, err := setup(cmd, nil)
	if err != nil {
		return err
	}
	eventID := s.client.CaptureMessage(cmd.Context(), strings.Join(args, " "), &augur.CaptureContext{
		Level: model.LevelFromString(level),
		Tags:  tags,
	})
	return s.report(eventID)
}

func runCaptureException(cmd *cobra.Command, args []string) error {
	tags, err := cmd.Flags().GetStringToString("tag")
	if err != nil {
		return fmt.Errorf("failed to get tag flag: %w", err)
	}
	s, err := setup(cmd, nil)
	if err != nil {
		return err
	}
	eventID := s.client.CaptureException(cmd.Context(), errors.New(strings.Join(args, " ")), &augur.CaptureContext{
		Tags: tags,
	})
	return s.report(eventID)
}

func (s *session) report(eventID string) error {
	if err := s.finish(); err != nil {
		return err
	}
	if eventID == "" {
		return fmt.Errorf("event was dropped")
	}
	if s.dryRun == nil {
		fmt.Fprintln(s.cmd.OutOrStdout(), eventID)
	}
	return nil
}
