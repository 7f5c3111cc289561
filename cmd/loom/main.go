package main

import (
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/loom/pkg/config"
	"github.com/go-go-golems/loom/pkg/events"
	"github.com/go-go-golems/loom/pkg/gateway"
	"github.com/go-go-golems/loom/pkg/store"
)

var (
	configFile string
	logLevel   string

	settings *config.Settings
	bus      *events.ChangeBus
	engine   *store.Store
)

var rootCmd = &cobra.Command{
	Use:   "loom",
	Short: "Explore branching AI conversations on a spatial canvas",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		settings, err = config.Load(configFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			settings.Log.Level = logLevel
		}
		setupLogging(settings.Log)

		client := gateway.NewClient(
			settings.Gateway.BaseURL,
			gateway.WithIdentity(settings.Identity),
		)
		bus = events.NewChangeBus(
			events.WithBusLogger(events.NewWatermillLogger(log.Logger)),
		)
		engine = store.NewStore(client, store.WithChangeBus(bus))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if bus != nil {
			_ = bus.Close()
		}
	},
}

func setupLogging(cfg config.LogSettings) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" && isatty.IsTerminal(os.Stderr.Fd()) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: ./loom.yaml, ~/.loom/loom.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(newCanvasCommand())
	rootCmd.AddCommand(newTreeCommand())
	rootCmd.AddCommand(newNodeCommand())
	rootCmd.AddCommand(newChatCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
