package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-nonagon/bridge"
	"go-nonagon/config"
	"go-nonagon/debug"
	"go-nonagon/engine"
	"go-nonagon/grid"
	"go-nonagon/hardware"
	"go-nonagon/midi"
	"go-nonagon/theme"
	"go-nonagon/widgets"
)

// Page is one screen of the right-hand menu
type Page int

const (
	PageGrid Page = iota
	PageTheory
	PageSettings
	numPages
)

var pageNames = [numPages]string{"Grid", "Theory", "Settings"}

func (p Page) String() string {
	if p < 0 || p >= numPages {
		return "Page(?)"
	}
	return pageNames[p]
}

// ParsePage maps a page name back to a Page, defaulting to PageGrid
func ParsePage(name string) Page {
	for i, n := range pageNames {
		if strings.EqualFold(n, name) {
			return Page(i)
		}
	}
	return PageGrid
}

var panes = map[Page]grid.Pane{
	PageGrid:   grid.GridPane,
	PageTheory: grid.TheoryPane,
}

// Screen rows, counted from the top of the view
const (
	titleRow = 3
	gridTop  = titleRow + 1
	auxRow   = gridTop + grid.Height + 1
)

// Keys that press aux buttons, in index order
var auxKeys = []string{"z", "x", "c", "v", "b", "n"}

// Settings page rows
const (
	rowInput = iota
	rowOutput
	rowFPS
	numRows
)

// Deps are the collaborators the model drives. Renderer, Devices, Mirror and
// the callbacks are optional.
type Deps struct {
	Handle     *engine.Handle
	Dispatcher *bridge.Dispatcher
	Display    *bridge.DisplayLoop
	Renderer   *bridge.Renderer
	Devices    *midi.DeviceManager
	Mirror     *hardware.Mirror
	Config     *config.Config
	Theme      *theme.Theme

	ListPorts    func() (ins, outs []string, err error)
	SaveConfig   func(*config.Config) error
	SaveSnapshot func() (string, error)
}

type Model struct {
	deps    Deps
	updates <-chan struct{}

	page      Page
	cursor    [2]int // pane coordinates
	mouseCell *grid.Cell
	snap      *bridge.Snapshot

	ins, outs  midi.PortList
	settingRow int

	status     string
	failed     bool // status is an error
	controller string
	showHelp   bool
	quitting   bool
}

// SnapshotMsg arrives after the display loop publishes
type SnapshotMsg struct{}

type DeviceEventMsg midi.DeviceEvent

// PortsMsg carries a finished MIDI port scan
type PortsMsg struct {
	Ins, Outs []string
	Err       error
}

func NewModel(deps Deps) Model {
	if deps.Theme == nil {
		deps.Theme = theme.New(nil)
	}
	if deps.Config == nil {
		deps.Config = config.DefaultConfig()
	}
	return Model{
		deps:    deps,
		updates: deps.Display.Subscribe(),
		page:    ParsePage(deps.Config.UI.LastPane),
		snap:    deps.Display.Snapshot(),
		ins:     midi.NewPortList(nil),
		outs:    midi.NewPortList(nil),
	}
}

func ListenForSnapshots(updates <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-updates
		return SnapshotMsg{}
	}
}

func ListenForDevices(deviceMgr *midi.DeviceManager) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-deviceMgr.Events()
		if !ok {
			return nil
		}
		return DeviceEventMsg(event)
	}
}

// ScanPorts lists MIDI ports off the UI goroutine
func ScanPorts(list func() ([]string, []string, error)) tea.Cmd {
	return func() tea.Msg {
		ins, outs, err := list()
		return PortsMsg{Ins: ins, Outs: outs, Err: err}
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{ListenForSnapshots(m.updates)}
	if m.deps.Devices != nil {
		cmds = append(cmds, ListenForDevices(m.deps.Devices))
	}
	if m.deps.ListPorts != nil {
		cmds = append(cmds, ScanPorts(m.deps.ListPorts))
	}
	return tea.Batch(cmds...)
}

// Page returns the page on screen
func (m Model) Page() Page {
	return m.page
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		m.handleMouse(msg)

	case tea.BlurMsg:
		// No release will arrive for a drag that leaves the window
		m.releaseMouse()

	case SnapshotMsg:
		m.snap = m.deps.Display.Snapshot()
		return m, ListenForSnapshots(m.updates)

	case PortsMsg:
		m.setPorts(msg)

	case DeviceEventMsg:
		m.handleDevice(midi.DeviceEvent(msg))
		if m.deps.Devices == nil {
			return m, nil
		}
		return m, ListenForDevices(m.deps.Devices)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		m.releaseMouse()
		return m, tea.Quit
	case "tab":
		return m.setPage((m.page + 1) % numPages)
	case "1", "2", "3":
		return m.setPage(Page(key[0] - '1'))
	case "ctrl+s":
		m.saveSnapshot()
		return m, nil
	case "?":
		m.showHelp = !m.showHelp
		return m, nil
	case "+", "=":
		m.nudgeTempo(5)
		return m, nil
	case "-", "_":
		m.nudgeTempo(-5)
		return m, nil
	}

	if m.page == PageSettings {
		return m.settingsKey(key)
	}

	switch key {
	case "left", "h":
		m.moveCursor(-1, 0)
	case "right", "l":
		m.moveCursor(1, 0)
	case "up", "k":
		m.moveCursor(0, -1)
	case "down", "j":
		m.moveCursor(0, 1)
	case " ", "enter":
		// Terminals report no key-up, so a key is a full tap
		s, x, y := m.pane().Resolve(m.cursor[0], m.cursor[1])
		m.deps.Dispatcher.Press(s, x, y)
		m.deps.Dispatcher.Release(s, x, y)
	case "p":
		m.deps.Dispatcher.AuxPress(0)
	default:
		for i, k := range auxKeys {
			if key == k {
				m.deps.Dispatcher.AuxPress(i)
			}
		}
	}
	return m, nil
}

func (m Model) setPage(p Page) (tea.Model, tea.Cmd) {
	m.releaseMouse()
	m.page = p
	m.deps.Config.UI.LastPane = p.String()
	if p == PageSettings && m.deps.ListPorts != nil {
		return m, ScanPorts(m.deps.ListPorts)
	}
	return m, nil
}

func (m *Model) pane() grid.Pane {
	if p, ok := panes[m.page]; ok {
		return p
	}
	return grid.GridPane
}

func (m *Model) moveCursor(dx, dy int) {
	m.cursor[0] = (m.cursor[0] + dx + grid.Columns) % grid.Columns
	m.cursor[1] = (m.cursor[1] + dy + grid.Height) % grid.Height
}

func (m *Model) nudgeTempo(delta float64) {
	clock, ok := m.deps.Handle.Engine().(engine.Clock)
	if !ok {
		return
	}
	clock.SetTempo(clock.Tempo() + delta)
	m.deps.Config.UI.LastTempo = int(clock.Tempo())
}

func (m *Model) saveSnapshot() {
	if m.deps.SaveSnapshot == nil {
		return
	}
	name, err := m.deps.SaveSnapshot()
	if err != nil {
		m.setStatus(true, "save failed: %v", err)
		return
	}
	m.setStatus(false, "saved %s", name)
}

func (m *Model) setStatus(failed bool, format string, args ...any) {
	m.status = fmt.Sprintf(format, args...)
	m.failed = failed
}

func (m *Model) handleMouse(msg tea.MouseMsg) {
	if m.page == PageSettings {
		return
	}
	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft {
			return
		}
		if x, y, ok := widgets.PaneHit(msg.X, msg.Y-gridTop); ok {
			m.releaseMouse()
			s, lx, ly := m.pane().Resolve(x, y)
			m.deps.Dispatcher.Press(s, lx, ly)
			m.mouseCell = &grid.Cell{Surface: s, X: lx, Y: ly}
			m.cursor = [2]int{x, y}
			return
		}
		if msg.Y == auxRow {
			if i, ok := widgets.AuxHit(msg.X, m.deps.Dispatcher.AuxCount()); ok {
				m.deps.Dispatcher.AuxPress(i)
			}
		}
	case tea.MouseActionRelease:
		m.releaseMouse()
	}
}

// releaseMouse releases the cell the mouse pressed, wherever the pointer is
// now
func (m *Model) releaseMouse() {
	if m.mouseCell == nil {
		return
	}
	c := *m.mouseCell
	m.mouseCell = nil
	m.deps.Dispatcher.Release(c.Surface, c.X, c.Y)
}

func (m *Model) handleDevice(ev midi.DeviceEvent) {
	switch ev.Type {
	case midi.DeviceConnected:
		cc := m.deps.Config.FindController(ev.ID)
		if cc == nil {
			m.deps.Config.AddController(config.ControllerConfig{
				PortName:    ev.ID,
				Type:        config.ControllerLaunchpadX,
				AutoConnect: true,
			})
		} else if !cc.AutoConnect {
			debug.Log("tui", "%s: auto-connect off", ev.ID)
			return
		}
		m.controller = ev.ID
		if m.deps.Mirror != nil && ev.Controller != nil {
			m.deps.Mirror.Attach(ev.Controller)
		}
	case midi.DeviceDisconnected:
		if m.controller == ev.ID {
			m.controller = ""
		}
		if m.deps.Mirror != nil {
			m.deps.Mirror.Detach(ev.ID)
		}
	}
}

func (m *Model) setPorts(msg PortsMsg) {
	if msg.Err != nil {
		m.setStatus(true, "midi: %v", msg.Err)
		debug.Log("tui", "port scan: %v", msg.Err)
		return
	}
	m.ins = midi.NewPortList(msg.Ins)
	m.ins.SelectName(m.deps.Config.MIDI.InputPort)
	m.outs = midi.NewPortList(msg.Outs)
	m.outs.SelectName(m.deps.Config.MIDI.OutputPort)
}

func (m Model) settingsKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "up", "k":
		m.settingRow = (m.settingRow + numRows - 1) % numRows
	case "down", "j":
		m.settingRow = (m.settingRow + 1) % numRows
	case "left", "h":
		m.adjust(-1)
	case "right", "l":
		m.adjust(1)
	case "enter", " ":
		m.apply()
	case "r":
		if m.deps.ListPorts != nil {
			return m, ScanPorts(m.deps.ListPorts)
		}
	}
	return m, nil
}

// adjust changes the value on the focused row. Ports only change on apply,
// the display rate changes at once.
func (m *Model) adjust(delta int) {
	switch m.settingRow {
	case rowInput:
		cycle(&m.ins, delta)
	case rowOutput:
		cycle(&m.outs, delta)
	case rowFPS:
		m.deps.Display.SetRate(m.deps.Display.Rate() + 5*delta)
		m.deps.Config.Display.FPS = m.deps.Display.Rate()
	}
}

func cycle(pl *midi.PortList, delta int) {
	n := len(pl.Ports)
	pos := (pl.Position() + delta + n) % n
	pl.Select(pl.Ports[pos].Index)
}

// apply hands the selected port on the focused row to the engine, then
// saves the config so ports are remembered by name
func (m *Model) apply() {
	switch m.settingRow {
	case rowInput, rowOutput:
		e := m.deps.Handle.Engine()
		if e == nil {
			return
		}
		if m.settingRow == rowInput {
			e.SetMidiInput(m.ins.Selected)
			m.deps.Config.MIDI.InputPort = m.ins.SelectedName()
			m.setStatus(false, "midi input: %s", portLabel(m.ins))
		} else {
			e.SetMidiOutput(m.outs.Selected)
			m.deps.Config.MIDI.OutputPort = m.outs.SelectedName()
			m.setStatus(false, "midi output: %s", portLabel(m.outs))
		}
	case rowFPS:
		m.setStatus(false, "display %d fps", m.deps.Display.Rate())
	}
	if m.deps.SaveConfig != nil {
		if err := m.deps.SaveConfig(m.deps.Config); err != nil {
			m.setStatus(true, "config: %v", err)
		}
	}
}

func portLabel(pl midi.PortList) string {
	if name := pl.SelectedName(); name != "" {
		return name
	}
	return midi.NoneName
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	th := m.deps.Theme
	headerStyle := lipgloss.NewStyle().Foreground(th.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(th.Muted())

	lines := []string{"", m.header(headerStyle, dimStyle), ""}
	if m.page == PageSettings {
		lines = append(lines, m.settingsView(headerStyle, dimStyle))
	} else {
		lines = append(lines, m.gridView(dimStyle)...)
	}

	if m.showHelp {
		lines = append(lines, "", widgets.RenderKeyHelp(keyHelp))
	} else {
		hint := "tab:page  hjkl:move  space:press  p:play  +/-:tempo  ctrl+s:save  ?:help  q:quit"
		if m.page == PageSettings {
			hint = "tab:page  j/k:row  h/l:change  enter:apply  r:rescan  ?:help  q:quit"
		}
		lines = append(lines, "", dimStyle.Render(hint))
	}
	if m.status != "" {
		color := th.Success()
		if m.failed {
			color = th.Warning()
		}
		lines = append(lines, lipgloss.NewStyle().Foreground(color).Render(m.status))
	}
	return strings.Join(lines, "\n")
}

var keyHelp = []widgets.KeySection{
	{Title: "Grid", Keys: []widgets.KeyBinding{
		{Key: "h j k l", Desc: "move cursor (arrows too)"},
		{Key: "space", Desc: "tap the cell under the cursor"},
		{Key: "mouse", Desc: "press and hold cells"},
	}},
	{Title: "Transport", Keys: []widgets.KeyBinding{
		{Key: "p", Desc: "play / stop"},
		{Key: "z x c v b n", Desc: "aux buttons 0-5"},
		{Key: "+ -", Desc: "tempo"},
	}},
	{Title: "General", Keys: []widgets.KeyBinding{
		{Key: "tab 1 2 3", Desc: "switch page"},
		{Key: "ctrl+s", Desc: "save snapshot"},
		{Key: "q", Desc: "quit"},
	}},
}

func (m Model) header(accent, dim lipgloss.Style) string {
	play, tempo := "STOP", ""
	if clock, ok := m.deps.Handle.Engine().(engine.Clock); ok {
		if clock.Playing() {
			play = "PLAY"
		}
		tempo = fmt.Sprintf("  %3.0fbpm", clock.Tempo())
	}

	var tabs []string
	for p := Page(0); p < numPages; p++ {
		if p == m.page {
			tabs = append(tabs, accent.Render("["+p.String()+"]"))
		} else {
			tabs = append(tabs, dim.Render(" "+p.String()+" "))
		}
	}

	device := ""
	if m.controller != "" {
		device = "  LP:X"
	}
	return accent.Render("go-nonagon  "+play+tempo) + "  " + strings.Join(tabs, "") + dim.Render(device)
}

// gridView is the title row, the pane and the aux row; its line offsets
// match titleRow, gridTop and auxRow
func (m Model) gridView(dim lipgloss.Style) []string {
	sym := m.deps.Theme.Symbols
	p := m.pane()
	out := []string{widgets.PaneTitles(p, dim)}

	cursor := m.cursor
	out = append(out, strings.Split(widgets.RenderPane(m.snap.Surface(p.Left), m.snap.Surface(p.Right), &cursor, sym), "\n")...)

	aux := make([]engine.RGB, m.deps.Dispatcher.AuxCount())
	for i := range aux {
		aux[i] = m.snap.AuxColor(i)
	}
	out = append(out, "", widgets.RenderAux(aux, sym))

	if labeler, ok := m.deps.Handle.Engine().(engine.AuxLabeler); ok {
		out = append(out, "")
		for i, c := range aux {
			if label := labeler.AuxLabel(i); label != "" && i < len(auxKeys) {
				out = append(out, widgets.RenderLegendItem(c, sym.Aux, label, auxKeys[i]))
			}
		}
	}
	return out
}

func (m Model) settingsView(accent, dim lipgloss.Style) string {
	var out strings.Builder
	for row, sec := range []struct {
		title string
		list  midi.PortList
	}{{"MIDI input", m.ins}, {"MIDI output", m.outs}} {
		title := dim.Render(sec.title)
		if row == m.settingRow {
			title = accent.Render(sec.title)
		}
		out.WriteString(title + "\n")
		for _, port := range sec.list.Ports {
			mark := ' '
			if port.Index == sec.list.Selected {
				mark = m.deps.Theme.Symbols.Select
			}
			out.WriteString(fmt.Sprintf("  %c %s\n", mark, port.Name))
		}
	}

	title := dim.Render("Display")
	if m.settingRow == rowFPS {
		title = accent.Render("Display")
	}
	d := m.deps.Display
	out.WriteString(fmt.Sprintf("%s\n  %d fps  skipped %d  overruns %d\n", title, d.Rate(), d.Skipped(), d.Overruns()))

	body := lipgloss.NewStyle().Foreground(m.deps.Theme.FG())
	if r := m.deps.Renderer; r != nil {
		st := r.Stats()
		out.WriteString(dim.Render("Audio") + "\n")
		out.WriteString(body.Render(fmt.Sprintf("  blocks %d  silent %d  recovered %d  t=%d", st.Blocks, st.Silent, st.Recovered, st.SampleTime)) + "\n")
	}
	if dr, ok := m.deps.Handle.Engine().(interface{ Dropped() uint64 }); ok {
		out.WriteString(body.Render(fmt.Sprintf("  midi out dropped %d", dr.Dropped())) + "\n")
	}
	return strings.TrimRight(out.String(), "\n")
}
