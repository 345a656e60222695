package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"go-nonagon/audio"
	"go-nonagon/bridge"
	"go-nonagon/config"
	"go-nonagon/debug"
	"go-nonagon/engine"
	"go-nonagon/hardware"
	"go-nonagon/midi"
	"go-nonagon/sequencer"
	"go-nonagon/theme"
	"go-nonagon/tui"
)

const scanTimeout = 3 * time.Second

type options struct {
	configPath string
	debug      bool
	headless   bool
	fps        int
	kit        string
	latest     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "go-nonagon",
		Short:        "Polymetric drum sequencer for the terminal and Launchpad",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.debug {
				return debug.Enable()
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.config/go-nonagon/config.json)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "write a debug log to "+debug.DefaultPath())
	cmd.Flags().BoolVar(&opts.headless, "headless", false, "run without a sound device")
	cmd.Flags().IntVar(&opts.fps, "fps", 0, "display refresh rate, 30-60")
	cmd.Flags().StringVar(&opts.kit, "kit", "", fmt.Sprintf("drum kit note map %v", sequencer.KitNames()))
	cmd.Flags().BoolVar(&opts.latest, "latest", false, "start from the newest snapshot instead of the last session")

	cmd.AddCommand(newPortsCommand(), newSavesCommand())
	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFrom(path)
}

func saveConfig(path string) func(*config.Config) error {
	return func(cfg *config.Config) error {
		if path == "" {
			return cfg.Save()
		}
		return cfg.SaveTo(path)
	}
}

// loadState picks the session to start from. A missing file is a fresh start.
func loadState(latest bool) (sequencer.State, bool) {
	var (
		st  sequencer.State
		err error
	)
	if latest {
		dir, derr := sequencer.ProjectsDir()
		if derr != nil {
			return st, false
		}
		st, err = sequencer.LoadLatest(dir)
	} else {
		path, perr := sequencer.SessionPath()
		if perr != nil {
			return st, false
		}
		st, err = sequencer.LoadState(path)
	}
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			debug.Log("main", "state: %v", err)
		}
		return st, false
	}
	return st, true
}

func run(ctx context.Context, opts *options) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.fps != 0 {
		cfg.Display.FPS = opts.fps
	}
	if opts.headless {
		cfg.Audio.Disabled = true
	}
	cfg.Validate()

	palette, err := theme.LoadOrDefault(cfg.UI.Palette)
	if err != nil {
		debug.Log("main", "palette: %v", err)
	}
	th := theme.New(palette)

	st, restored := loadState(opts.latest)
	kit := opts.kit
	if kit == "" {
		kit = st.Kit
	}

	h, err := engine.Open(sequencer.Create(sequencer.Options{
		SampleRate: cfg.Audio.SampleRate,
		AuxCount:   cfg.UI.AuxCount,
		Tempo:      float64(cfg.UI.LastTempo),
		Kit:        kit,
		Ports:      midi.System{Timeout: scanTimeout},
	}))
	if err != nil {
		return err
	}
	defer h.Close()

	seq := h.Engine().(*sequencer.Nonagon)
	if restored {
		seq.Restore(st)
	}
	applyPorts(seq, cfg.MIDI)

	aux := h.AuxCount(cfg.UI.AuxCount)
	dispatcher := bridge.NewDispatcher(h, aux)
	display := bridge.NewDisplayLoop(h, aux, cfg.Display.FPS)
	renderer := bridge.NewRenderer(h)
	pump := audio.NewPump(renderer, cfg.Audio)

	var out audio.Output
	if cfg.Audio.Disabled {
		out = audio.NewNull(pump, cfg.Audio.SampleRate)
	} else if out, err = audio.Open(pump, cfg.Audio); err != nil {
		debug.Log("main", "%v, continuing without sound", err)
		out = audio.NewNull(pump, cfg.Audio.SampleRate)
	}
	if err := out.Start(); err != nil {
		return err
	}

	devices := midi.NewDeviceManager()
	mirror := hardware.NewMirror(dispatcher, display, nil)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return display.Run(gctx) })
	g.Go(func() error { return devices.Run(gctx) })
	g.Go(func() error { return mirror.Run(gctx) })

	m := tui.NewModel(tui.Deps{
		Handle:     h,
		Dispatcher: dispatcher,
		Display:    display,
		Renderer:   renderer,
		Devices:    devices,
		Mirror:     mirror,
		Config:     cfg,
		Theme:      th,
		ListPorts: func() ([]string, []string, error) {
			ports, err := midi.ScanPorts(scanTimeout)
			if err != nil {
				return nil, nil, err
			}
			return portNames(ports.InputList()), portNames(ports.OutputList()), nil
		},
		SaveConfig: saveConfig(opts.configPath),
		SaveSnapshot: func() (string, error) {
			dir, err := sequencer.ProjectsDir()
			if err != nil {
				return "", err
			}
			return sequencer.SaveSnapshot(dir, "", seq.State(), time.Now())
		},
	})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithReportFocus(), tea.WithContext(ctx))
	_, runErr := p.Run()
	if errors.Is(runErr, tea.ErrProgramKilled) && ctx.Err() != nil {
		runErr = nil
	}

	// Audio first: after Stop no render call is running, so closing the
	// engine cannot race the device thread.
	if err := out.Stop(); err != nil {
		debug.Log("main", "audio stop: %v", err)
	}
	dispatcher.ReleaseAll()
	cfg.UI.LastTempo = int(seq.Tempo())
	if err := saveSession(seq.State()); err != nil {
		debug.Log("main", "%v", err)
	}
	if err := h.Close(); err != nil {
		debug.Log("main", "close engine: %v", err)
	}

	cancel()
	if err := g.Wait(); err != nil {
		debug.Log("main", "background: %v", err)
	}
	if err := saveConfig(opts.configPath)(cfg); err != nil {
		debug.Log("main", "save config: %v", err)
	}
	return runErr
}

func saveSession(st sequencer.State) error {
	path, err := sequencer.SessionPath()
	if err != nil {
		return err
	}
	return sequencer.SaveState(path, st)
}

// applyPorts reconnects the MIDI ports remembered by name. A port that has
// gone away is left unconnected.
func applyPorts(e engine.Engine, mc config.MIDIConfig) {
	if mc.InputPort == "" && mc.OutputPort == "" {
		return
	}
	ports, err := midi.ScanPorts(scanTimeout)
	if err != nil {
		debug.Log("main", "midi ports: %v", err)
		return
	}
	if idx := ports.InputList().IndexOf(mc.InputPort); idx != midi.NoneSelected {
		e.SetMidiInput(idx)
	}
	if idx := ports.OutputList().IndexOf(mc.OutputPort); idx != midi.NoneSelected {
		e.SetMidiOutput(idx)
	}
}

func portNames(pl midi.PortList) []string {
	var names []string
	for _, p := range pl.Ports {
		if p.Index != midi.NoneSelected {
			names = append(names, p.Name)
		}
	}
	return names
}

func newPortsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List MIDI ports by the names the config uses",
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := midi.ScanPorts(scanTimeout)
			if err != nil {
				return fmt.Errorf("%w (try: sudo killall coreaudiod midiserver)", err)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "Inputs:")
			for i, name := range portNames(ports.InputList()) {
				fmt.Fprintf(w, "  %d: %s\n", i, name)
			}
			fmt.Fprintln(w, "Outputs:")
			for i, name := range portNames(ports.OutputList()) {
				fmt.Fprintf(w, "  %d: %s\n", i, name)
			}
			return nil
		},
	}
}

func newSavesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "saves",
		Short: "List saved snapshots, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := sequencer.ProjectsDir()
			if err != nil {
				return err
			}
			saves, err := sequencer.ListSaves(dir)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(saves) == 0 {
				fmt.Fprintf(w, "no saves in %s\n", dir)
				return nil
			}
			for _, s := range saves {
				fmt.Fprintf(w, "%s  %s\n", s.Timestamp.Format("2006-01-02 15:04:05"), filepath.Join(dir, s.Filename))
			}
			return nil
		},
	}
}
