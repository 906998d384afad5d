package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"meanrevbacktest/cmd"
	"meanrevbacktest/internal/app"
	"meanrevbacktest/internal/config"
	"meanrevbacktest/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	backtestConfigPath string
	serveConfigPath    string
	startDate          string
	endDate            string
	assets             []string
	exportPath         string
	verbose            bool
	port               int
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		zap.S().Error(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "meanrev",
		Short:         "Multi-asset mean reversion backtester",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(c *cobra.Command, args []string) {
			zap.ReplaceGlobals(logger.NewWithOptions(logger.Options{Verbose: verbose}).Desugar())
		},
	}
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	backtestCmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run a backtest from a config file",
		RunE:  runBacktest,
	}
	backtestCmd.Flags().StringVar(&backtestConfigPath, "config", "config.yaml", "path to the yaml config")
	backtestCmd.Flags().StringVar(&startDate, "start_date", "", "override start date (YYYY-MM-DD)")
	backtestCmd.Flags().StringVar(&endDate, "end_date", "", "override end date (YYYY-MM-DD)")
	backtestCmd.Flags().StringSliceVar(&assets, "assets", nil, "override asset list")
	backtestCmd.Flags().StringVar(&exportPath, "export", "", "write daily results to this csv file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the backtest api",
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "optional yaml config for the price source")
	serveCmd.Flags().IntVar(&port, "port", 3009, "port to listen on")

	root.AddCommand(backtestCmd, serveCmd)

	return root
}

func runBacktest(c *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	log := zap.S()
	ctx = logger.NewContext(ctx, log)

	cfg, err := config.Load(backtestConfigPath)
	if err != nil {
		return err
	}
	cfg.ApplyOverrides(config.Overrides{
		StartDate: startDate,
		EndDate:   endDate,
		Assets:    assets,
	})
	if err := cfg.Validate(); err != nil {
		return err
	}
	log.Infow("config validated", cfg.Summary()...)

	apiHandler, err := cmd.InitializeDependencies(ctx, *cfg)
	if err != nil {
		return err
	}
	defer cmd.CloseDependencies(apiHandler)

	backtestHandler := apiHandler.BacktestHandler
	run, err := backtestHandler.RunFromConfig(ctx, *cfg)
	if err != nil {
		return err
	}
	printMetrics(*run)

	if exportPath != "" {
		if err := backtestHandler.Export(ctx, exportPath, *run); err != nil {
			return err
		}
	}

	if profileJson, err := run.Profile.ToJsonBytes(); err == nil {
		log.Debugw("run profile", "profile", string(profileJson))
	}

	return nil
}

func printMetrics(run app.BacktestRun) {
	m := run.Metrics
	fmt.Println("Performance Metrics:")
	fmt.Printf("  Final portfolio value: %.2f\n", m.FinalEquity)
	fmt.Printf("  Total return: %.2f%%\n", 100*m.TotalReturn)
	fmt.Printf("  Annualized return: %.2f%%\n", 100*m.AnnualizedReturn)
	fmt.Printf("  Sharpe Ratio: %.3f\n", m.SharpeRatio)
	fmt.Printf("  Max Drawdown: %.2f%%\n", 100*m.MaxDrawdown)
	fmt.Printf("  Win Rate: %.2f%%\n", 100*m.WinRate)
}

func runServe(c *cobra.Command, args []string) error {
	ctx := logger.NewContext(context.Background(), zap.S())

	cfg := config.Defaults()
	if serveConfigPath != "" {
		loaded, err := config.Load(serveConfigPath)
		if err != nil {
			return err
		}
		cfg = *loaded
	}

	apiHandler, err := cmd.InitializeDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer cmd.CloseDependencies(apiHandler)

	zap.S().Infow("starting api", "port", port)
	return apiHandler.StartApi(port)
}
