package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveTo_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")

	cfg := DefaultConfig()
	cfg.MIDI.OutputPort = "IAC Driver Bus 1"
	cfg.UI.AuxCount = 4
	cfg.Display.FPS = 48
	require.NoError(t, cfg.SaveTo(path))

	got, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestLoadFrom_ClampsOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{"display":{"fps":144},"ui":{"auxCount":9,"lastTempo":5},"audio":{"channels":8,"sampleRate":0}}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, MaxFPS, cfg.Display.FPS)
	assert.Equal(t, MaxAux, cfg.UI.AuxCount)
	assert.Equal(t, MinTempo, cfg.UI.LastTempo)
	assert.Equal(t, MaxChannels, cfg.Audio.Channels)
	assert.Equal(t, 48000, cfg.Audio.SampleRate)
}

func TestLoadFrom_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))
	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestControllers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AddController(ControllerConfig{PortName: "Launchpad Mini MIDI", Type: ControllerLaunchpadMini})
	cfg.AddController(ControllerConfig{PortName: "Launchpad X LPX MIDI", Type: ControllerLaunchpadX, AutoConnect: false})

	require.Len(t, cfg.Controllers, 2)
	assert.Empty(t, cfg.AutoConnectControllers())
	require.NotNil(t, cfg.FindController("Launchpad Mini MIDI"))
	assert.Nil(t, cfg.FindController("nope"))
}
