//go:build !headless

package audio

import (
	"fmt"
	"sync"
	"time"

	"go-nonagon/config"
	"go-nonagon/debug"

	"github.com/ebitengine/oto/v3"
)

// Device plays the pump through the system sound device
type Device struct {
	ctx    *oto.Context
	player *oto.Player
	pump   *Pump

	mu      sync.Mutex // guards started and player
	started bool
}

// Open creates the device context. oto allows one context per process, so
// Open must only be called once.
func Open(p *Pump, cfg config.AudioConfig) (Output, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: p.Channels(),
		Format:       oto.FormatFloat32LE,
		BufferSize:   time.Duration(cfg.BufferFrames) * time.Second / time.Duration(cfg.SampleRate),
	})
	if err != nil {
		return nil, fmt.Errorf("open audio device: %w", err)
	}
	<-ready

	debug.Log("audio", "oto %d Hz x%d, %d frames", cfg.SampleRate, p.Channels(), cfg.BufferFrames)
	return &Device{ctx: ctx, player: ctx.NewPlayer(p), pump: p}, nil
}

func (d *Device) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started && d.player != nil {
		d.player.Play()
		d.started = true
	}
	return nil
}

// Stop silences the pump, waits out the read in progress and closes the
// player
func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.pump.Halt(haltTimeout)
	if d.player != nil {
		if cerr := d.player.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close player: %w", cerr)
		}
		d.player = nil
	}
	d.started = false
	return err
}
