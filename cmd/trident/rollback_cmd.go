package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/microsoft/trident/internal/types"
)

func newRollbackCmd(v *viper.Viper) *cobra.Command {
	var ab, runtime, check bool

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Undo the last servicing operation (spec.md §4.8 manual rollback API)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ab && runtime {
				return types.Errorf(types.KindConfig, "rollback", "--ab and --runtime are mutually exclusive")
			}
			cfg, err := loadRunConfig(v)
			if err != nil {
				return err
			}
			log := newLogger(cfg)
			store, err := openStore(cfg, check)
			if err != nil {
				return err
			}
			defer store.Close()

			status, err := store.Load()
			if err != nil {
				return err
			}

			eng := buildEngine(cfg, log, store)

			if check {
				fmt.Fprintln(cmd.OutOrStdout(), string(eng.CheckRollback(status)))
				return nil
			}

			switch {
			case ab:
				return eng.RollbackAB(status)
			case runtime:
				return eng.RollbackRuntime(status)
			default:
				return eng.RollbackAuto(status)
			}
		},
	}
	cmd.Flags().BoolVar(&ab, "ab", false, "roll back the last A/B update specifically")
	cmd.Flags().BoolVar(&runtime, "runtime", false, "roll back the last runtime-only update specifically")
	cmd.Flags().BoolVar(&check, "check", false, "report what a rollback would undo (ab|runtime|none) without doing it")
	return cmd
}
