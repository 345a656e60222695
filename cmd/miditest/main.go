// Command miditest pokes at MIDI ports and a connected Launchpad without
// starting the sequencer.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"go-nonagon/midi"
)

const scanTimeout = 3 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := &cobra.Command{
		Use:          "miditest",
		Short:        "MIDI test scripts",
		SilenceUsage: true,
	}
	root.AddCommand(listCommand(), detectCommand(), ledsCommand(), padsCommand(), pollCommand())
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all MIDI ports",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("(waiting up to 3 seconds...)")
			ports, err := midi.ScanPorts(scanTimeout)
			if err != nil {
				fmt.Println("Fix: sudo killall coreaudiod midiserver")
				return err
			}
			fmt.Println("=== MIDI Input Ports ===")
			for i, p := range ports.Ins {
				fmt.Printf("  %d: %s\n", i, p.String())
			}
			fmt.Println("\n=== MIDI Output Ports ===")
			for i, p := range ports.Outs {
				fmt.Printf("  %d: %s\n", i, p.String())
			}
			return nil
		},
	}
}

// waitLaunchpad runs a device manager until it reports a controller. The
// controller stays open until the returned cancel is called.
func waitLaunchpad(ctx context.Context, timeout time.Duration) (midi.Controller, context.CancelFunc, error) {
	ctx, cancel := context.WithCancel(ctx)
	dm := midi.NewDeviceManager()
	go dm.Run(ctx)

	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-dm.Events():
			if !ok {
				cancel()
				return nil, nil, ctx.Err()
			}
			if ev.Type == midi.DeviceConnected {
				return ev.Controller, cancel, nil
			}
		case <-deadline:
			cancel()
			return nil, nil, fmt.Errorf("no Launchpad found within %v", timeout)
		}
	}
}

func detectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Find a Launchpad and switch it to programmer mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Looking for Launchpad...")
			c, cancel, err := waitLaunchpad(cmd.Context(), 2*scanTimeout)
			if err != nil {
				return err
			}
			defer cancel()
			fmt.Printf("Found %s, now in programmer mode\n", c.ID())
			return nil
		},
	}
}

func ledsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "leds",
		Short: "Light the diagonal, then clear on Enter",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cancel, err := waitLaunchpad(cmd.Context(), 2*scanTimeout)
			if err != nil {
				return err
			}
			defer cancel()

			fmt.Println("Lighting up diagonal (green)...")
			for i := 0; i < midi.GridRows; i++ {
				c.SetLEDRGB(i, i, [3]uint8{0, 255, 0}, midi.ChannelStatic)
				time.Sleep(100 * time.Millisecond)
			}
			fmt.Println("Press Enter to clear...")
			fmt.Scanln()

			var off []midi.LEDUpdate
			for row := 0; row < midi.GridRows; row++ {
				for col := 0; col < midi.GridCols; col++ {
					off = append(off, midi.LEDUpdate{Row: row, Col: col})
				}
			}
			return c.SetLEDBatch(off)
		},
	}
}

func padsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pads",
		Short: "Print pad edges until Ctrl+C",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cancel, err := waitLaunchpad(cmd.Context(), 2*scanTimeout)
			if err != nil {
				return err
			}
			defer cancel()

			fmt.Printf("Reading %s. Ctrl+C to exit.\n", c.ID())
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case ev, ok := <-c.PadEvents():
					if !ok {
						return nil
					}
					edge := "up"
					if ev.Pressed {
						edge = "down"
					}
					fmt.Printf("  row %d col %d %s vel %d\n", ev.Row, ev.Col, edge, ev.Velocity)
				}
			}
		},
	}
}

func pollCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Poll for port changes every 2 seconds",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Connect/disconnect devices to test. Ctrl+C to exit.")
			ticker := time.NewTicker(2 * time.Second)
			defer ticker.Stop()

			var last string
			for {
				ports, err := midi.ScanPorts(scanTimeout)
				if err != nil {
					fmt.Printf("scan: %v\n", err)
				} else {
					ins := ports.InputList()
					var names []string
					for _, p := range ins.Ports[1:] {
						names = append(names, p.Name)
					}
					if current := strings.Join(names, ","); current != last {
						fmt.Printf("\n[%s] Device change detected!\n", time.Now().Format("15:04:05"))
						fmt.Printf("  Inputs: %v\n", names)
						last = current
					}
				}

				select {
				case <-cmd.Context().Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}
}
