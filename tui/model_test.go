package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"go-nonagon/bridge"
	"go-nonagon/config"
	"go-nonagon/engine"
	"go-nonagon/engine/enginetest"
	"go-nonagon/grid"
	"go-nonagon/midi"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	rec   *enginetest.Recorder
	h     *engine.Handle
	loop  *bridge.DisplayLoop
	cfg   *config.Config
	saved int
}

func newFixture(t *testing.T) (*fixture, Model) {
	t.Helper()
	f := &fixture{rec: enginetest.NewRecorder(3), cfg: config.DefaultConfig()}
	h, err := engine.Open(func() (engine.Engine, error) { return f.rec, nil })
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	f.h = h
	f.loop = bridge.NewDisplayLoop(h, 3, 60)

	m := NewModel(Deps{
		Handle:     h,
		Dispatcher: bridge.NewDispatcher(h, 3),
		Display:    f.loop,
		Config:     f.cfg,
		ListPorts: func() ([]string, []string, error) {
			return []string{"Keystep"}, []string{"IAC Bus 1", "TR-8S"}, nil
		},
		SaveConfig: func(*config.Config) error { f.saved++; return nil },
	})
	return f, m
}

func (f *fixture) calls(op string) []enginetest.Call {
	var out []enginetest.Call
	for _, c := range f.rec.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func send(m Model, msgs ...tea.Msg) Model {
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func key(s string) tea.KeyMsg {
	switch s {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func mouse(x, y int, action tea.MouseAction) tea.MouseMsg {
	return tea.MouseMsg{X: x, Y: y, Action: action, Button: tea.MouseButtonLeft}
}

func TestParsePage(t *testing.T) {
	assert.Equal(t, PageTheory, ParsePage("theory"))
	assert.Equal(t, PageSettings, ParsePage("Settings"))
	assert.Equal(t, PageGrid, ParsePage(""))
	assert.Equal(t, PageGrid, ParsePage("nope"))
}

func TestModel_SpaceTapsCursorCell(t *testing.T) {
	f, m := newFixture(t)
	m = send(m, key(" "))

	assert.Equal(t, []enginetest.Call{{Op: "press", Surface: grid.Matrix}}, f.calls("press"))
	assert.Equal(t, []enginetest.Call{{Op: "release", Surface: grid.Matrix}}, f.calls("release"))
}

func TestModel_CursorCrossesIntoRightSurface(t *testing.T) {
	f, m := newFixture(t)
	for i := 0; i < 9; i++ {
		m = send(m, key("l"))
	}
	m = send(m, key("k"), key(" ")) // up wraps to the bottom row

	presses := f.calls("press")
	require.Len(t, presses, 1)
	assert.Equal(t, enginetest.Call{Op: "press", Surface: grid.RHS, X: 1, Y: 7}, presses[0])
}

func TestModel_MouseReleaseFollowsPress(t *testing.T) {
	f, m := newFixture(t)

	// column 2 + 3*3 is pane column 3, row gridTop+2 is pane row 2
	m = send(m, mouse(11, gridTop+2, tea.MouseActionPress))
	m = send(m, key("tab"))                                // page change releases
	m = send(m, mouse(11, gridTop+5, tea.MouseActionRelease)) // nothing held any more

	require.Len(t, f.calls("press"), 1)
	rel := f.calls("release")
	require.Len(t, rel, 1)
	assert.Equal(t, enginetest.Call{Op: "release", Surface: grid.Matrix, X: 3, Y: 2}, rel[0])
	assert.Equal(t, PageTheory, m.Page())
}

func TestModel_BlurReleasesHeldCell(t *testing.T) {
	f, m := newFixture(t)
	m = send(m, mouse(2, gridTop, tea.MouseActionPress), tea.BlurMsg{})
	assert.Len(t, f.calls("release"), 1)

	m = send(m, mouse(2, gridTop, tea.MouseActionRelease))
	assert.Len(t, f.calls("release"), 1)
}

func TestModel_AuxKeysAndClicks(t *testing.T) {
	f, m := newFixture(t)
	m = send(m, key("p"), key("x"), key("n"))
	m = send(m, mouse(2+5, auxRow, tea.MouseActionPress))
	m = send(m, mouse(2+5*3, auxRow, tea.MouseActionPress)) // past aux count

	var idx []int
	for _, c := range f.calls("aux-press") {
		idx = append(idx, c.Index)
	}
	// n is aux 5; the dispatcher drops it because only 3 exist
	assert.Equal(t, []int{0, 1, 1}, idx)
}

func TestModel_PageSwitchRemembered(t *testing.T) {
	f, m := newFixture(t)
	m = send(m, key("2"))
	assert.Equal(t, PageTheory, m.Page())
	assert.Equal(t, "Theory", f.cfg.UI.LastPane)

	_, cmd := m.Update(key("3"))
	require.NotNil(t, cmd, "settings triggers a port scan")
	msg := cmd()
	assert.Equal(t, PortsMsg{Ins: []string{"Keystep"}, Outs: []string{"IAC Bus 1", "TR-8S"}}, msg)
}

func TestModel_SettingsAppliesPorts(t *testing.T) {
	f, m := newFixture(t)
	f.cfg.MIDI.OutputPort = "TR-8S"
	m = send(m, key("3"), PortsMsg{Ins: []string{"Keystep"}, Outs: []string{"IAC Bus 1", "TR-8S"}})
	assert.Equal(t, 1, m.outs.Selected, "configured name preselected")

	m = send(m, key("right"), key("enter")) // input row: None -> Keystep
	m = send(m, key("down"), key("right"), key("enter"))

	assert.Equal(t, []enginetest.Call{{Op: "midi-in", Index: 0}}, f.calls("midi-in"))
	assert.Equal(t, []enginetest.Call{{Op: "midi-out", Index: midi.NoneSelected}}, f.calls("midi-out"))
	assert.Equal(t, "Keystep", f.cfg.MIDI.InputPort)
	assert.Empty(t, f.cfg.MIDI.OutputPort)
	assert.Equal(t, 2, f.saved)
	assert.Contains(t, m.View(), "midi output: None")
}

func TestModel_PortScanError(t *testing.T) {
	_, m := newFixture(t)
	m = send(m, key("3"), PortsMsg{Err: midi.ErrScanTimeout})
	assert.True(t, m.ins.Empty())
	assert.Contains(t, m.View(), "timed out")
}

func TestModel_SaveSnapshot(t *testing.T) {
	_, m := newFixture(t)
	m.deps.SaveSnapshot = func() (string, error) { return "jam_2026.json", nil }
	m = send(m, tea.KeyMsg{Type: tea.KeyCtrlS})
	assert.Contains(t, m.View(), "saved jam_2026.json")

	m.deps.SaveSnapshot = func() (string, error) { return "", errors.New("disk full") }
	m = send(m, tea.KeyMsg{Type: tea.KeyCtrlS})
	assert.Contains(t, m.View(), "disk full")
}

func TestModel_SnapshotMsgPicksUpLatest(t *testing.T) {
	f, m := newFixture(t)
	assert.Nil(t, m.snap)

	require.True(t, f.loop.Tick())
	next, cmd := m.Update(SnapshotMsg{})
	m = next.(Model)
	assert.Same(t, f.loop.Snapshot(), m.snap)
	assert.NotNil(t, cmd, "keeps listening")
}

func TestModel_ViewLayout(t *testing.T) {
	f, m := newFixture(t)
	require.True(t, f.loop.Tick())
	m = send(m, SnapshotMsg{})

	lines := strings.Split(m.View(), "\n")
	require.Greater(t, len(lines), auxRow)
	assert.Contains(t, lines[titleRow], "Matrix")
	assert.Contains(t, lines[titleRow], "RHS")
	assert.Contains(t, lines[auxRow], "●")
	assert.Contains(t, lines[1], "[Grid]")

	m = send(m, key("2"))
	lines = strings.Split(m.View(), "\n")
	assert.Contains(t, lines[titleRow], "CoMute")
}

func TestModel_QuitReleasesAndClears(t *testing.T) {
	f, m := newFixture(t)
	m = send(m, mouse(2, gridTop, tea.MouseActionPress))
	next, cmd := m.Update(key("q"))
	m = next.(Model)

	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Len(t, f.calls("release"), 1)
	assert.Empty(t, m.View())
}

func TestModel_DeviceEvents(t *testing.T) {
	_, m := newFixture(t)
	m = send(m, DeviceEventMsg{Type: midi.DeviceConnected, ID: "Launchpad X"})
	assert.Contains(t, m.View(), "LP:X")

	m = send(m, DeviceEventMsg{Type: midi.DeviceDisconnected, ID: "Launchpad X"})
	assert.NotContains(t, m.View(), "LP:X")

	cc := m.deps.Config.FindController("Launchpad X")
	require.NotNil(t, cc, "new controllers are remembered")
	assert.True(t, cc.AutoConnect)
}

func TestModel_AutoConnectOffIgnoresController(t *testing.T) {
	f, m := newFixture(t)
	f.cfg.AddController(config.ControllerConfig{PortName: "Launchpad X", Type: config.ControllerLaunchpadX})
	m = send(m, DeviceEventMsg{Type: midi.DeviceConnected, ID: "Launchpad X"})
	assert.NotContains(t, m.View(), "LP:X")
}

func TestModel_SettingsAdjustsDisplayRate(t *testing.T) {
	f, m := newFixture(t)
	m = send(m, key("3"), key("k")) // up wraps to the display row
	m = send(m, key("h"), key("h"))
	assert.Equal(t, 50, f.loop.Rate())
	assert.Equal(t, 50, f.cfg.Display.FPS)

	for i := 0; i < 10; i++ {
		m = send(m, key("l"))
	}
	assert.Equal(t, 60, f.loop.Rate(), "clamped")

	m = send(m, key("enter"))
	assert.Equal(t, 1, f.saved)
	assert.Contains(t, m.View(), "display 60 fps")
}

func TestModel_HelpToggle(t *testing.T) {
	_, m := newFixture(t)
	assert.NotContains(t, m.View(), "save snapshot")
	m = send(m, key("?"))
	assert.Contains(t, m.View(), "save snapshot")
	m = send(m, key("?"))
	assert.NotContains(t, m.View(), "save snapshot")
}

// labeled adds aux names to the recorder
type labeled struct {
	*enginetest.Recorder
}

func (labeled) AuxLabel(i int) string {
	if i == 0 {
		return "play"
	}
	return ""
}

func TestModel_AuxLegend(t *testing.T) {
	h, err := engine.Open(func() (engine.Engine, error) { return labeled{enginetest.NewRecorder(2)}, nil })
	require.NoError(t, err)
	defer h.Close()
	m := NewModel(Deps{
		Handle:     h,
		Dispatcher: bridge.NewDispatcher(h, 2),
		Display:    bridge.NewDisplayLoop(h, 2, 60),
	})

	lines := strings.Split(m.View(), "\n")
	require.Greater(t, len(lines), auxRow+2)
	assert.Contains(t, lines[auxRow+2], "play - z")
}

func TestModel_SettingsShowsRenderStats(t *testing.T) {
	f, m := newFixture(t)
	m.deps.Renderer = bridge.NewRenderer(f.h)
	m = send(m, key("3"))
	assert.Contains(t, m.View(), "blocks 0")
	assert.Contains(t, m.View(), "60 fps")
}
