package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ekdusrla/ssukssuk-closet/internal/app"
	"github.com/ekdusrla/ssukssuk-closet/internal/config"
	"github.com/ekdusrla/ssukssuk-closet/internal/profile"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

var (
	profileFlag string
	jsonOutput  bool
)

var rootCmd = &cobra.Command{
	Use:   "ssukchat",
	Short: "Chat with buyers and sellers of ssukssuk closet",
	Long: "Command-line client for the ssukssuk closet marketplace chat.\n" +
		"Conversations are cached per profile under ~/.ssukchat.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&profileFlag, "profile", "", "profile name (overrides config default)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type runOptions struct {
	poll bool
}

// withClient starts the client for the selected profile, runs fn and stops
// the client again. The profile lock is held throughout.
func withClient(cmd *cobra.Command, opts runOptions, fn func(ctx context.Context, c *app.Client) error) error {
	cfg, err := config.Resolve(profile.ConfigPath())
	if err != nil {
		return err
	}
	name := profile.Resolve(profileFlag, cfg)
	if err := profile.ValidateName(name); err != nil {
		return err
	}

	var client *app.Client
	fxApp := fx.New(
		app.Module(app.Params{
			Profile:   name,
			Config:    cfg,
			Exclusive: true,
			Console:   true,
			Poll:      opts.poll,
		}),
		fx.Populate(&client),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
	)
	if err := fxApp.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(cmd.Context(), fxApp.StartTimeout())
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = fxApp.Stop(stopCtx)
	}()

	return fn(cmd.Context(), client)
}
