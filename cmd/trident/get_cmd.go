package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/microsoft/trident/internal/types"
)

func newGetCmd(v *viper.Viper) *cobra.Command {
	get := &cobra.Command{
		Use:   "get",
		Short: "Inspect the persisted Host Status",
	}
	get.AddCommand(
		newGetSubCmd(v, "status", "Print the full Host Status document", func(status *types.HostStatus) (interface{}, error) {
			return status, nil
		}),
		newGetSubCmd(v, "configuration", "Print the currently installed Host Configuration", func(status *types.HostStatus) (interface{}, error) {
			return status.InstalledSpec, nil
		}),
		newGetSubCmd(v, "rollback-chain", "Print the A/B rollback chain, most recent first", func(status *types.HostStatus) (interface{}, error) {
			return status.RollbackChain, nil
		}),
		newGetSubCmd(v, "rollback-target", "Print the Host Configuration a rollback would restore", func(status *types.HostStatus) (interface{}, error) {
			if status.PreviousRuntimeSpec != nil {
				return status.PreviousRuntimeSpec, nil
			}
			if len(status.RollbackChain) > 0 {
				return status.RollbackChain[0].Spec, nil
			}
			return nil, nil
		}),
	)
	return get
}

func newGetSubCmd(v *viper.Viper, use, short string, project func(*types.HostStatus) (interface{}, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRunConfig(v)
			if err != nil {
				return err
			}
			store, err := openStore(cfg, true)
			if err != nil {
				return err
			}
			defer store.Close()

			status, err := store.Load()
			if err != nil {
				return err
			}
			out, err := project(status)
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(out)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
