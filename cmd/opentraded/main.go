package main

import (
	"context"
	"github.com/ZilDuck/opentrade/internal/config"
	"github.com/ZilDuck/opentrade/internal/config/di"
	"go.uber.org/zap"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	config.Init("opentraded")

	container, err := di.NewContainer()
	if err != nil {
		zap.L().With(zap.Error(err)).Fatal("Failed to build container")
	}
	defer container.Delete()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zap.L().With(zap.String("hub", container.GetProtocol().Hub.Address().String())).Info("OpenTrade Started")

	if err := container.GetDaemon().Execute(ctx); err != nil {
		zap.L().With(zap.Error(err)).Error("Daemon exited")
		os.Exit(1)
	}
}
