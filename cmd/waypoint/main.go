package main

import (
	"io"
	"os"

	"github.com/go-go-golems/waypoint/pkg/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

type logConfig struct {
	WithCaller bool
	Level      string
	LogFormat  string
	LogFile    string
}

// InitLogger replaces the global logger. Text format goes through the
// console writer, anything else is JSON.
func InitLogger(config *logConfig) error {
	var logWriter io.Writer
	if config.LogFormat == "text" {
		logWriter = zerolog.ConsoleWriter{Out: os.Stderr}
	} else {
		logWriter = os.Stderr
	}

	if config.LogFile != "" {
		logWriter = io.MultiWriter(
			logWriter,
			zerolog.ConsoleWriter{
				NoColor: true,
				Out: &lumberjack.Logger{
					Filename:   config.LogFile,
					MaxSize:    10, // megabytes
					MaxBackups: 3,
					MaxAge:     28, // days
				},
			})
	}

	logger := zerolog.New(logWriter).With().Timestamp().Logger()
	if config.WithCaller {
		logger = logger.With().Caller().Logger()
	}
	log.Logger = logger
	// log.Ctx falls back to the global logger outside of requests
	zerolog.DefaultContextLogger = &log.Logger

	level, err := zerolog.ParseLevel(config.Level)
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", config.Level)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	return nil
}

// cfg holds the merged configuration once the root command has run.
var cfg *viper.Viper

func initConfig(cmd *cobra.Command) error {
	if err := settings.LoadDotEnv(".env"); err != nil {
		return err
	}
	v, err := settings.New()
	if err != nil {
		return err
	}
	configPath, _ := cmd.Flags().GetString("config")
	if err := settings.ReadConfigFile(v, configPath); err != nil {
		return err
	}
	for _, name := range []string{"log-level", "log-format", "log-file", "with-caller", "verbose"} {
		if err := v.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
			return errors.Wrapf(err, "could not bind --%s", name)
		}
	}

	logLevel := v.GetString("log-level")
	if v.GetBool("verbose") && logLevel != "trace" {
		logLevel = "debug"
	}
	if err := InitLogger(&logConfig{
		Level:      logLevel,
		LogFile:    v.GetString("log-file"),
		LogFormat:  v.GetString("log-format"),
		WithCaller: v.GetBool("with-caller"),
	}); err != nil {
		return err
	}

	log.Debug().Str("config", v.ConfigFileUsed()).Msg("Loaded configuration")
	cfg = v
	return nil
}

func loadSettings() (*settings.Settings, error) {
	if cfg == nil {
		return nil, errors.New("configuration was not initialized")
	}
	return settings.Load(cfg)
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "waypoint",
		Short:         "waypoint is a location assistant backed by an LLM and Google Maps",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Path to the config file (default: waypoint.yaml in ., ~/.waypoint or the XDG config dir)")
	pf.String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	pf.String("log-format", "text", "Log format (text, json)")
	pf.String("log-file", "", "Also write logs to this rotated file")
	pf.Bool("with-caller", false, "Annotate log lines with the caller")
	pf.BoolP("verbose", "v", false, "Shorthand for --log-level debug")

	rootCmd.AddCommand(
		newServeCommand(),
		newChatCommand(),
		newCapabilitiesCommand(),
		newConfigCommand(),
	)
	return rootCmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Error().Err(err).Msg("waypoint failed")
		os.Exit(1)
	}
}
