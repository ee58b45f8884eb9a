package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/microsoft/trident/internal/daemon"
	"github.com/microsoft/trident/internal/fsutil"
	"github.com/microsoft/trident/internal/storage"
)

func newDaemonCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the trident daemon, serving VersionService and StreamingService on a Unix socket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRunConfig(v)
			if err != nil {
				return err
			}
			log := newLogger(cfg)
			runner := fsutil.ExecRunner{}
			srv := daemon.New(daemon.Deps{
				Log:                 log,
				FS:                  fsutil.NewOS(),
				Enumerator:          storage.GhwEnumerator{},
				Partitioner:         &storage.Partitioner{Runner: runner},
				NewFetcher:          newFetcher,
				RootDevice:          cfg.RootDevice,
				PipelineConcurrency: cfg.PipelineConcurrency,
				IdleTimeout:         cfg.DaemonIdleTimeout,
			})
			return srv.ListenAndServe(cmd.Context(), cfg.SocketPath)
		},
	}
}
