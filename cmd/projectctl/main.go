package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"projectflow/internal/app"
	"projectflow/pkg/config"
	"projectflow/pkg/logger"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "projectctl",
		Short:         "Operational commands for projectflow",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(outboxCmd())
	rootCmd.AddCommand(tasksCmd())
	rootCmd.AddCommand(orgCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withApp 初始化依赖后执行 fn，结束时释放连接
func withApp(fn func(a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.NewLogger()
	defer log.Sync()

	a, err := app.New(cfg, log)
	if err != nil {
		log.Error("Application initialization failed", zap.Error(err))
		return err
	}
	defer a.Close()

	return fn(a)
}
