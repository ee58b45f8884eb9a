package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/microsoft/trident/internal/daemon"
	"github.com/microsoft/trident/internal/types"
)

func newStreamDiskCmd(v *viper.Viper) *cobra.Command {
	var metadataHash string
	var handlesReboot bool

	cmd := &cobra.Command{
		Use:   "stream-disk <image-url>",
		Short: "Ask a running daemon to stream a COSI archive onto the smallest fitting disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRunConfig(v)
			if err != nil {
				return err
			}
			client, err := daemon.Dial(cfg.SocketPath)
			if err != nil {
				return types.NewError(types.KindInternal, "stream-disk", err)
			}
			defer client.Close()

			completed, err := client.StreamDisk(daemon.StreamDiskRequest{
				ImageURL:      args[0],
				MetadataHash:  metadataHash,
				HandlesReboot: handlesReboot,
			}, func(f daemon.Frame) {
				switch f.Type {
				case daemon.FrameStarted:
					fmt.Fprintln(cmd.OutOrStdout(), "started")
				case daemon.FrameLog:
					fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s: %s\n", f.Log.Level, f.Log.Module, f.Log.Message)
				}
			})
			if err != nil {
				return err
			}
			if !completed.Ok {
				return types.Errorf(types.KindInternal, "stream-disk", "%s", completed.Error)
			}
			if completed.RebootRequired {
				fmt.Fprintln(cmd.OutOrStdout(), "stream complete, reboot required")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&metadataHash, "metadata-hash", "", "expected hash of the COSI archive's embedded metadata")
	cmd.Flags().BoolVar(&handlesReboot, "handles-reboot", false, "caller will reboot itself; daemon should not")
	return cmd
}
