package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type cli struct {
	v        *viper.Viper
	settings settings
}

func newRootCommand() *cobra.Command {
	c := &cli{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "mediadrop",
		Short: "Upload audio and video files to a mediadrop server",
		Long: `mediadrop uploads audio and video files. Files up to the size threshold
are sent in one request; larger files go through resumable sessions that
survive interrupted connections and later runs.

Settings are read from flags, MEDIADROP_* environment variables and
$XDG_CONFIG_HOME/mediadrop/config.yaml, in that order of precedence.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initialize(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default $XDG_CONFIG_HOME/mediadrop/config.yaml)")
	flags.String("server", defaultServer, "mediadrop server URL")
	flags.String("token", "", "access token (see 'server token <user-id>')")
	flags.String("bucket", defaultBucket, "destination bucket")
	flags.BoolP("verbose", "v", false, "debug logging")

	rootCmd.AddCommand(newUploadCommand(c))
	rootCmd.AddCommand(newListCommand(c))
	rootCmd.AddCommand(newSessionsCommand(c))

	return rootCmd
}

// initialize binds flags, reads the config file and installs the logger.
func (c *cli) initialize(cmd *cobra.Command) error {
	if err := c.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	c.v.SetEnvPrefix("MEDIADROP")
	c.v.SetEnvKeyReplacer(replacer())
	c.v.AutomaticEnv()

	if err := readConfigFile(c.v); err != nil {
		return err
	}

	s, err := loadSettings(c.v)
	if err != nil {
		return err
	}
	c.settings = s

	level := slog.LevelWarn
	if s.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// replacer maps flag names such as chunk-size to MEDIADROP_CHUNK_SIZE.
func replacer() *strings.Replacer {
	return strings.NewReplacer("-", "_", ".", "_")
}

func readConfigFile(v *viper.Viper) error {
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", path, err)
		}
		return nil
	}

	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "mediadrop"))
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}
