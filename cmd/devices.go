package main

import (
	"github.com/spf13/cobra"

	"github.com/cwbudde/dispatchbench/internal/bench"
	"github.com/cwbudde/dispatchbench/internal/device"
	"github.com/cwbudde/dispatchbench/internal/report"
)

var devicesAPI string

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List OpenCL platforms and devices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := bench.OpenDeviceAPI(devicesAPI)
		if err != nil {
			return err
		}
		platforms, err := device.Enumerate(api)
		if err != nil {
			return err
		}

		out := report.NewText(cmd.OutOrStdout())
		if err := out.Comment("Platforms found: %d", len(platforms)); err != nil {
			return err
		}
		for _, p := range platforms {
			if err := out.Comment("(%d) %s [%s]", p.Index, p.Label(), p.Name); err != nil {
				return err
			}
			for _, d := range p.Devices {
				err := out.Comment("    (%d) %s, %s, %d compute units", d.Index, d.Name, d.Type, d.MaxComputeUnits)
				if err != nil {
					return err
				}
			}
		}
		return nil
	},
}

func init() {
	devicesCmd.Flags().StringVar(&devicesAPI, "device-api", bench.DeviceAPIOpenCL, "Device API: opencl, host")
	rootCmd.AddCommand(devicesCmd)
}
