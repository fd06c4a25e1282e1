package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ekdusrla/ssukssuk-closet/internal/app"
	"github.com/ekdusrla/ssukssuk-closet/internal/config"
	"github.com/ekdusrla/ssukssuk-closet/internal/profile"
	"github.com/ekdusrla/ssukssuk-closet/internal/tui"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	flag.Parse()

	if err := run(*profileFlag); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(profileFlag string) error {
	cfg, err := config.Resolve(profile.ConfigPath())
	if err != nil {
		return err
	}
	name := profile.Resolve(profileFlag, cfg)
	if err := profile.ValidateName(name); err != nil {
		return err
	}

	var (
		client *app.Client
		logger *zap.Logger
	)
	fxApp := fx.New(
		// stderr shares the screen with the UI, so logs only go to the file.
		app.Module(app.Params{Profile: name, Config: cfg, Exclusive: true, Poll: true}),
		fx.Populate(&client, &logger),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
	)
	if err := fxApp.Err(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, fxApp.StartTimeout())
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = fxApp.Stop(stopCtx)
	}()

	return tui.NewApp(client, logger.Named("tui")).Run(ctx)
}
