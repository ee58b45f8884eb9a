package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newCommitCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "commit",
		Short: "Verify the boot that just happened and finalize or roll back (spec.md §4.7)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRunConfig(v)
			if err != nil {
				return err
			}
			if !allows(cfg, "commit") {
				return nil
			}
			log := newLogger(cfg)
			store, err := openStore(cfg, false)
			if err != nil {
				return err
			}
			defer store.Close()

			eng := buildEngine(cfg, log, store)
			controller := buildCommitController(cfg, log, store, eng)
			return controller.Run(cmd.Context())
		},
	}
}
