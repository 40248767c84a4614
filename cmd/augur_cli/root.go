package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/Avi18971911/augur-go/pkg/augur"
	"github.com/Avi18971911/augur-go/pkg/config"
	"github.com/Avi18971911/augur-go/pkg/transport/memory"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"time"
)

const serviceName = "augur_cli"

var ErrMissingDsn = errors.New("no DSN configured, use --dsn or AUGUR_DSN")

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "augur_cli",
		Short:         "Send events and spans to Augur",
		Long:          `augur_cli captures one-off messages, errors and spans with the augur-go SDK, useful for smoke testing a backend`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().String("config", "", "path to a TOML configuration file")
	rootCmd.PersistentFlags().String("dsn", "", "destination DSN, overrides the configuration")
	rootCmd.PersistentFlags().Bool("dry-run", false, "print envelopes instead of sending them")
	rootCmd.PersistentFlags().Duration("timeout", 5*time.Second, "how long to wait for delivery")

	rootCmd.AddCommand(newCaptureMessageCmd())
	rootCmd.AddCommand(newCaptureExceptionCmd())
	rootCmd.AddCommand(newSendSpanCmd())
	return rootCmd
}

// session is one CLI invocation's SDK setup.
type session struct {
	cmd     *cobra.Command
	client  *augur.Client
	dryRun  *memory.Transport
	timeout time.Duration
	logger  *zap.Logger
}

// setup loads the configuration, resolves flags and initializes the SDK. configure may adjust
// the client options before Init.
func setup(cmd *cobra.Command, configure func(options *augur.Options)) (*session, error) {
	flags := cmd.Root().PersistentFlags()
	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	dsn, err := flags.GetString("dsn")
	if err != nil {
		return nil, fmt.Errorf("failed to get dsn flag: %w", err)
	}
	dryRun, err := flags.GetBool("dry-run")
	if err != nil {
		return nil, fmt.Errorf("failed to get dry-run flag: %w", err)
	}
	timeout, err := flags.GetDuration("timeout")
	if err != nil {
		return nil, fmt.Errorf("failed to get timeout flag: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dsn != "" {
		cfg.Dsn = dsn
	}
	if cfg.Dsn == "" {
		return nil, ErrMissingDsn
	}
	logger, err := newLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	s := &session{cmd: cmd, timeout: timeout, logger: logger}
	if dryRun {
		cfg.Transport.Kind = config.TransportMemory
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	t, err := cfg.NewTransport(ctx, serviceName, logger)
	if err != nil {
		return nil, err
	}
	if memoryTransport, ok := t.(*memory.Transport); ok {
		s.dryRun = memoryTransport
	}

	options := cfg.ClientOptions(t, logger)
	options.AutoSessionTracking = false
	if configure != nil {
		configure(&options)
	}
	client, err := augur.Init(options)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize augur: %w", err)
	}
	s.client = client
	return s, nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// finish flushes and closes the client, then prints what a dry run collected.
func (s *session) finish() error {
	defer s.logger.Sync()
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	flushed := s.client.Flush(ctx)
	s.client.Close(ctx)
	if !flushed {
		return fmt.Errorf("timed out after %s waiting for delivery", s.timeout)
	}
	if s.dryRun == nil {
		return nil
	}
	encoder := json.NewEncoder(s.cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	for _, envelope := range s.dryRun.Envelopes() {
		if err := encoder.Encode(envelope); err != nil {
			return fmt.Errorf("failed to print envelope: %w", err)
		}
	}
	return nil
}
