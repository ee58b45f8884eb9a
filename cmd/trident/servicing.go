package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/microsoft/trident/internal/fsutil"
	"github.com/microsoft/trident/internal/hostconfig"
	"github.com/microsoft/trident/internal/types"
)

func newInstallCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "install <hc.yaml>",
		Short: "Apply a Host Configuration to bare metal (clean install)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRunConfig(v)
			if err != nil {
				return err
			}
			return runServicing(cmd.Context(), cfg, args[0])
		},
	}
}

func newUpdateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "update <hc.yaml>",
		Short: "Apply a Host Configuration to an already-provisioned host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRunConfig(v)
			if err != nil {
				return err
			}
			return runServicing(cmd.Context(), cfg, args[0])
		},
	}
}

// runServicing drives one stage/finalize pass. install and update share it
// because the engine itself classifies clean-install vs. ab-update vs.
// runtime-update vs. none by diffing against the installed spec (spec.md
// §4.1) — the CLI verb a caller types doesn't change that classification.
func runServicing(ctx context.Context, cfg *RunConfig, hcPath string) error {
	log := newLogger(cfg)
	fs := fsutil.NewOS()

	hc, err := hostconfig.ParseFile(fs, hcPath)
	if err != nil {
		return err
	}
	if err := hostconfig.Validate(hc); err != nil {
		return types.NewError(types.KindConfig, "hostconfig", err)
	}

	store, err := openStore(cfg, false)
	if err != nil {
		return err
	}
	defer store.Close()

	eng := buildEngine(cfg, log, store)
	diskDevices := diskDevicesFromConfig(hc)

	if allows(cfg, "stage") {
		if err := eng.Stage(ctx, hc, diskDevices); err != nil {
			return err
		}
	}
	if !allows(cfg, "finalize") {
		return nil
	}

	status, err := store.Load()
	if err != nil {
		return err
	}
	if status.ServicingState != types.StateCleanInstallStaged && status.ServicingState != types.StateABUpdateStaged {
		// stage was a no-op (ServicingNone), a runtime update (which has no
		// finalize step), or the staged operation was already finalized;
		// nothing left for this call to finalize.
		log.Infof("nothing staged to finalize, servicing state is %q", status.ServicingState)
		return nil
	}
	return eng.Finalize(ctx, status, hc)
}
