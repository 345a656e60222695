package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// ControllerType identifies the kind of controller
type ControllerType string

const (
	ControllerLaunchpadX    ControllerType = "launchpad-x"
	ControllerLaunchpadMini ControllerType = "launchpad-mini"
	ControllerLaunchpadPro  ControllerType = "launchpad-pro"
	ControllerGenericGrid   ControllerType = "generic-grid"
)

// ControllerConfig defines a saved controller configuration
type ControllerConfig struct {
	PortName    string         `json:"portName"`
	Type        ControllerType `json:"type"`
	AutoConnect bool           `json:"autoConnect"`
}

// AudioConfig describes the output stream
type AudioConfig struct {
	SampleRate   int  `json:"sampleRate"`
	Channels     int  `json:"channels"`
	BufferFrames int  `json:"bufferFrames"`
	Disabled     bool `json:"disabled,omitempty"`
}

// DisplayConfig sets the snapshot polling rate
type DisplayConfig struct {
	FPS int `json:"fps"`
}

// MIDIConfig remembers the engine's MIDI ports by name. Empty means none.
type MIDIConfig struct {
	InputPort  string `json:"inputPort,omitempty"`
	OutputPort string `json:"outputPort,omitempty"`
}

// UIConfig stores UI preferences
type UIConfig struct {
	AuxCount  int    `json:"auxCount"`
	LastTempo int    `json:"lastTempo,omitempty"`
	LastPane  string `json:"lastPane,omitempty"`
	Palette   string `json:"palette,omitempty"` // GIMP .gpl file, built-in palette if empty
}

// Config is the main configuration structure
type Config struct {
	Controllers []ControllerConfig `json:"controllers,omitempty"`
	Audio       AudioConfig        `json:"audio"`
	Display     DisplayConfig      `json:"display"`
	MIDI        MIDIConfig         `json:"midi,omitempty"`
	UI          UIConfig           `json:"ui,omitempty"`
}

// Limits enforced by Validate
const (
	MinFPS      = 30
	MaxFPS      = 60
	MinAux      = 2
	MaxAux      = 6
	MinTempo    = 20
	MaxTempo    = 300
	MinChannels = 1
	MaxChannels = 2
)

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Controllers: []ControllerConfig{
			{
				PortName:    "Launchpad X LPX MIDI",
				Type:        ControllerLaunchpadX,
				AutoConnect: true,
			},
		},
		Audio: AudioConfig{
			SampleRate:   48000,
			Channels:     2,
			BufferFrames: 512,
		},
		Display: DisplayConfig{
			FPS: 60,
		},
		UI: UIConfig{
			AuxCount:  2,
			LastTempo: 120,
			LastPane:  "Grid",
		},
	}
}

// Validate clamps values into their accepted ranges and fills zero values
// with defaults
func (c *Config) Validate() {
	def := DefaultConfig()

	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = def.Audio.SampleRate
	}
	if c.Audio.BufferFrames <= 0 {
		c.Audio.BufferFrames = def.Audio.BufferFrames
	}
	c.Audio.Channels = clamp(c.Audio.Channels, MinChannels, MaxChannels)

	if c.Display.FPS == 0 {
		c.Display.FPS = def.Display.FPS
	}
	c.Display.FPS = clamp(c.Display.FPS, MinFPS, MaxFPS)

	if c.UI.AuxCount == 0 {
		c.UI.AuxCount = def.UI.AuxCount
	}
	c.UI.AuxCount = clamp(c.UI.AuxCount, MinAux, MaxAux)

	if c.UI.LastTempo == 0 {
		c.UI.LastTempo = def.UI.LastTempo
	}
	c.UI.LastTempo = clamp(c.UI.LastTempo, MinTempo, MaxTempo)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-nonagon"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads the config at path, or returns defaults if it does not exist
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Validate()

	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the config to path, creating its directory
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// FindController finds a controller config by port name
func (c *Config) FindController(portName string) *ControllerConfig {
	for i := range c.Controllers {
		if c.Controllers[i].PortName == portName {
			return &c.Controllers[i]
		}
	}
	return nil
}

// AddController adds or updates a controller config
func (c *Config) AddController(ctrl ControllerConfig) {
	for i := range c.Controllers {
		if c.Controllers[i].PortName == ctrl.PortName {
			c.Controllers[i] = ctrl
			return
		}
	}
	c.Controllers = append(c.Controllers, ctrl)
}

// AutoConnectControllers returns controllers with autoConnect enabled
func (c *Config) AutoConnectControllers() []ControllerConfig {
	var result []ControllerConfig
	for _, ctrl := range c.Controllers {
		if ctrl.AutoConnect {
			result = append(result, ctrl)
		}
	}
	return result
}
