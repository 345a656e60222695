//go:build headless

package audio

import "go-nonagon/config"

// Open returns a Null sink in builds without a sound backend
func Open(p *Pump, cfg config.AudioConfig) (Output, error) {
	return NewNull(p, cfg.SampleRate), nil
}
