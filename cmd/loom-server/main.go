package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/loom/pkg/config"
)

var rootCmd = &cobra.Command{
	Use:   "loom-server",
	Short: "In-memory reference implementation of the loom canvas gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		configFile, _ := cmd.Flags().GetString("config")
		settings, err := config.Load(configFile)
		if err != nil {
			return err
		}

		level, err := zerolog.ParseLevel(settings.Log.Level)
		if err != nil {
			level = zerolog.InfoLevel
		}
		zerolog.SetGlobalLevel(level)
		if settings.Log.Format == "console" && isatty.IsTerminal(os.Stderr.Fd()) {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		}

		var engine ChatEngine
		if settings.Server.OpenAIAPIKey != "" {
			engine = NewOpenAIEngine(settings.Server.OpenAIAPIKey, settings.Server.OpenAIModel)
			log.Info().Str("model", settings.Server.OpenAIModel).Msg("using OpenAI chat engine")
		} else {
			engine = &EchoEngine{}
			log.Info().Msg("no OpenAI API key configured, using echo engine")
		}

		server := NewServer(engine)
		log.Info().Str("addr", settings.Server.ListenAddr).Msg("listening")
		return http.ListenAndServe(settings.Server.ListenAddr, server.Router())
	},
}

func main() {
	rootCmd.Flags().String("config", "", "config file (default: ./loom.yaml, ~/.loom/loom.yaml)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
