package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/microsoft/trident/internal/constants"
)

// RunConfig is the one struct every verb reads its settings from, populated
// from flags/env/config-file input via viper, so every subcommand agrees on
// where the datastore lives, which binaries to shell, and how verbose to
// log.
type RunConfig struct {
	LogLevel            string
	DatastorePath       string
	RootDevice          string
	ServicingRoot       string
	SocketPath          string
	AllowedOperations   []string
	DaemonIdleTimeout   time.Duration
	PipelineConcurrency int
}

func allows(cfg *RunConfig, op string) bool {
	if len(cfg.AllowedOperations) == 0 {
		return true
	}
	for _, a := range cfg.AllowedOperations {
		if strings.EqualFold(a, op) {
			return true
		}
	}
	return false
}

// bindConfigFlags declares the persistent flags every subcommand shares and
// binds them through viper so an optional config file (--config), TRIDENT_*
// environment variables and explicit CLI flags compose, in that order of
// increasing precedence.
func bindConfigFlags(root *cobra.Command, v *viper.Viper) {
	flags := root.PersistentFlags()
	flags.StringP("log-level", "v", "info", "log verbosity: trace|debug|info|warn|error")
	flags.String("config", "", "path to a trident config file")
	flags.String("datastore", "/var/lib/trident/"+constants.DatastoreFileName, "path to the Host Status datastore")
	flags.String("root-device", "", "the block device this servicing OS itself booted from")
	flags.String("servicing-root", "/mnt/newroot", "scratch mount point used while staging")
	flags.String("socket", "/run/trident/trident.sock", "daemon control socket path")
	flags.StringSlice("allowed-operations", nil, "restrict a servicing call to stage|finalize|commit (default: all)")
	flags.Duration("daemon-idle-timeout", constants.DefaultDaemonIdleTimeout, "daemon shutdown after this long with no connections")
	flags.Int("pipeline-concurrency", constants.DefaultConcurrentPartitionStreams, "bounded number of partitions streamed concurrently")

	_ = v.BindPFlags(flags)
	v.SetEnvPrefix("TRIDENT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
}

// loadRunConfig resolves the config file (if any) and returns the populated
// RunConfig, called once per invocation after cobra has parsed flags.
func loadRunConfig(v *viper.Viper) (*RunConfig, error) {
	if cf := v.GetString("config"); cf != "" {
		v.SetConfigFile(cf)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	return &RunConfig{
		LogLevel:            v.GetString("log-level"),
		DatastorePath:       v.GetString("datastore"),
		RootDevice:          v.GetString("root-device"),
		ServicingRoot:       v.GetString("servicing-root"),
		SocketPath:          v.GetString("socket"),
		AllowedOperations:   v.GetStringSlice("allowed-operations"),
		DaemonIdleTimeout:   v.GetDuration("daemon-idle-timeout"),
		PipelineConcurrency: v.GetInt("pipeline-concurrency"),
	}, nil
}
