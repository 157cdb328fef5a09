package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"cosmossdk.io/log"
	"github.com/cometbft/cometbft/abci/server"
	"github.com/spf13/cobra"

	"rugroulette/internal/app"
	"rugroulette/internal/config"
	"rugroulette/internal/state"
)

const dbName = "roulette"

func StartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the ABCI server until SIGINT or SIGTERM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := newLogger(cmd.OutOrStdout(), cfg)
			if err != nil {
				return err
			}
			program, err := cfg.Program()
			if err != nil {
				return err
			}

			store, err := state.OpenStore(dbName, cfg.Backend(), cfg.DataDir())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			a, err := app.New(store,
				app.WithLogger(logger),
				app.WithFaucet(cfg.Faucet),
				app.WithProgramID(program),
			)
			if err != nil {
				return fmt.Errorf("init app: %w", err)
			}

			srv, err := server.NewServer(cfg.Addr, cfg.Transport, a)
			if err != nil {
				return fmt.Errorf("create abci server: %w", err)
			}
			if err := srv.Start(); err != nil {
				return fmt.Errorf("abci server start: %w", err)
			}
			defer func() { _ = srv.Stop() }()
			logger.Info("abci server listening", "addr", cfg.Addr, "transport", cfg.Transport, "faucet", cfg.Faucet)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			sig := <-sigCh
			logger.Info("shutting down", "signal", sig.String())
			return nil
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func newLogger(out io.Writer, cfg config.Config) (log.Logger, error) {
	lvl, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	opts := []log.Option{log.LevelOption(lvl)}
	if cfg.LogFormat == config.LogFormatJSON {
		opts = append(opts, log.OutputJSONOption())
	}
	return log.NewLogger(out, opts...), nil
}
