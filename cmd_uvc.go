package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"lensfocus/uvc"
)

// NewUVCCommand probes the video controls of every attached UVC camera
func NewUVCCommand() *cobra.Command {
	var (
		writeTest bool
		unit      int
	)

	cmd := &cobra.Command{
		Use:     "uvc-diag",
		Aliases: []string{"uvc"},
		Short:   "Report which UVC controls each camera supports",
		Long: `Enumerate USB devices, open every UVC camera and query the standard
processing unit and camera terminal controls. With --write-test each control
that accepts SET_CUR is written once and restored.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("write-test") {
				cfg.UVC.WriteTest = writeTest
			}
			if cmd.Flags().Changed("unit") {
				cfg.UVC.Unit = unit
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "USB Camera Diagnostic Tool (%s/%s)\n", runtime.GOOS, runtime.GOARCH)
			fmt.Fprintln(out, "================================")
			if runtime.GOOS != "windows" && os.Geteuid() != 0 {
				color.New(color.FgYellow).Fprintln(out, "Not running as root: opening devices may fail. Try sudo if no controls are found.")
			}

			bus := uvc.OpenBus()
			defer bus.Close()

			all, cameras, err := bus.Scan()
			if err != nil {
				return err
			}
			defer func() {
				for _, c := range cameras {
					c.Close()
				}
			}()

			uvc.WriteDevices(out, all)
			if len(cameras) == 0 {
				fmt.Fprintln(out, "\nNo UVC cameras found!")
				return nil
			}

			for _, cam := range cameras {
				if !cam.Info.VideoControl {
					logrus.WithField("device", cam.Info.ID()).Warn("no video control interface found")
					continue
				}
				p := &uvc.Prober{
					T:         cam,
					Interface: uint8(cam.Info.ControlInterface),
					Unit:      cfg.UVC.Unit,
					WriteTest: cfg.UVC.WriteTest,
				}
				uvc.WriteReport(out, cam.Info, p.Probe(), cfg.UVC.WriteTest)
				uvc.WriteUsage(out, cam.Info)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&writeTest, "write-test", false, "write each settable control once and restore it")
	cmd.Flags().IntVar(&unit, "unit", -1, "entity id for wIndex; -1 uses the interface number")

	return cmd
}
