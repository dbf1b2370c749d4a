package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	cfg        Config

	rootCmd = &cobra.Command{
		Use:           "deployer",
		Short:         "Deploys SpaceRoom contracts to EVM networks",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
			return setupLogger(cfg.LogLevel)
		},
	}
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "2006-01-02 15:04:05",
	}).Level(zerolog.InfoLevel)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "deployer.yml", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "overrides `log_level` of the config")
	rootCmd.AddCommand(newDeployCmd(), newAccountsCmd(), newStatusCmd(), newForgetCmd())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		log.Err(err).Msg("")
		os.Exit(1)
	}
}

func setupLogger(configLevel string) error {
	level := configLevel
	if logLevel != "" {
		level = logLevel
	}
	if level == "" {
		level = zerolog.LevelInfoValue
	}

	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(parsed)
	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		short := file
		for i := len(file) - 1; i > 0; i-- {
			if file[i] == '/' {
				short = file[i+1:]
				break
			}
		}
		file = short
		return file + ":" + strconv.Itoa(line)
	}
	log.Logger = log.Logger.Level(parsed).With().Caller().Logger()
	return nil
}
