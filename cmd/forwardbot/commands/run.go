package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumitpatel080/Forward/internal/app"
	"github.com/Sumitpatel080/Forward/internal/config"
	"github.com/Sumitpatel080/Forward/internal/plugin/builtin/channels"
	"github.com/Sumitpatel080/Forward/internal/plugin/builtin/postsched"
	"github.com/Sumitpatel080/Forward/internal/plugin/builtin/system"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bot until SIGINT or SIGTERM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd)
		},
	}
}

func runBot(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(envPath); err != nil {
		return err
	}
	cfgm := config.NewManager(cfgPath)
	if _, err := cfgm.Load(); err != nil {
		return fmt.Errorf("load %s: %w", cfgPath, err)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfgm)
	if err != nil {
		return err
	}
	if err := a.Plugins().Register(postsched.New(), channels.New(), system.New()); err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelStop()
		_ = a.Stop(stopCtx, app.StopFatalError)
		return fmt.Errorf("start: %w", err)
	}

	reason := app.StopSignal
	select {
	case <-ctx.Done():
	case <-a.Done():
		reason = app.StopFatalError
	}

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelStop()
	if err := a.Stop(stopCtx, reason); err != nil {
		printWarning(cmd.ErrOrStderr(), "shutdown: %v", err)
	}
	return a.Err()
}
