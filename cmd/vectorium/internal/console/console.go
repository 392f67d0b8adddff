package console

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/go-lynx/vectorium"
	"github.com/go-lynx/vectorium/cmd/vectorium/internal/base"
	"github.com/go-lynx/vectorium/log"
	"github.com/go-lynx/vectorium/ui"
	"github.com/go-lynx/vectorium/ui/bridge"
)

const logLines = 8

var builtin bool

// CmdConsole runs the engine behind an interactive terminal UI.
var CmdConsole = &cobra.Command{
	Use:   "console",
	Short: "Interactive plugin console",
	Long: `Console runs the engine and shows the plugin menu, the loaded plugins,
the packet registry and every visible plugin window.

Keys: up/down select, enter load/unload, w toggle window, d toggle debug
logging, a toggle auto-scan, r rescan, s save config, q quit.`,
	RunE: runE,
}

func init() {
	CmdConsole.Flags().BoolVar(&builtin, "builtin", false, "serve the sample plugins from memory")
}

func runE(cmd *cobra.Command, _ []string) error {
	cfg, path, err := base.LoadConfig()
	if err != nil {
		return err
	}
	ring := log.NewRing(256)
	closeLog, err := base.InitLogging(cfg, ring)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	e := base.NewEngine(cfg, path, builtin)
	defer func() { _ = e.Shutdown() }()
	if err := e.Init(cmd.Context()); err != nil {
		return err
	}

	p := tea.NewProgram(NewModel(e, ring, cfg.TickInterval()), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	_, err = p.Run()
	return err
}

type tickMsg time.Time

// Model is the console's bubbletea model.
type Model struct {
	engine   *vectorium.Engine
	bridge   *bridge.Bridge
	ring     *log.Ring
	interval time.Duration
	cursor   int
	width    int
}

// NewModel returns a console model over e. ring may be nil.
func NewModel(e *vectorium.Engine, ring *log.Ring, interval time.Duration) Model {
	if interval <= 0 {
		interval = time.Second / 60
	}
	return Model{engine: e, bridge: bridge.New(e), ring: ring, interval: interval, width: 80}
}

func (m Model) Init() tea.Cmd { return m.tickCmd() }

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.engine.Tick()
		return m, m.tickCmd()
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.engine.UIContext().SetWidth(msg.Width / 2)
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg.String())
	}
	return m, nil
}

func (m Model) handleKey(key string) (tea.Model, tea.Cmd) {
	items := m.bridge.PluginMenu()
	selected := ""
	if m.cursor < len(items) {
		selected = items[m.cursor].Name
	}
	switch key {
	case "q", "ctrl+c":
		m.bridge.RequestQuit()
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(items)-1 {
			m.cursor++
		}
	case "enter", " ":
		if selected != "" {
			_ = m.bridge.TogglePlugin(selected)
		}
	case "w":
		if selected != "" {
			m.bridge.ToggleWindow(selected)
		}
	case "d":
		if selected != "" {
			mgr := m.engine.Manager()
			if mgr.IsDebugLogging(selected) {
				_ = mgr.DisableDebugLogging(selected)
			} else {
				_ = mgr.EnableDebugLogging(selected)
			}
		}
	case "a":
		m.bridge.SetAutoScan(!m.bridge.ConfigPanel().AutoScan)
	case "r":
		_, _ = m.bridge.Rescan()
	case "s":
		_ = m.bridge.SaveConfig()
	}
	return m, nil
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	cursorStyle = lipgloss.NewStyle().Background(lipgloss.Color("240"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func (m Model) View() string {
	left := m.renderMenu()

	s := ui.NewTextSurface(m.engine.UIContext())
	m.bridge.DrawSidebar(s)
	m.bridge.DrawPacketPanel(s)
	_ = m.bridge.RenderPlugins(s)
	right := s.String()

	body := lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right)

	status := ui.NewTextSurface(m.engine.UIContext())
	m.bridge.DrawStatusBar(status)

	parts := []string{titleStyle.Render("vectorium console"), body, strings.TrimRight(status.String(), "\n")}
	if m.ring != nil {
		lines := m.ring.Lines()
		if len(lines) > logLines {
			lines = lines[len(lines)-logLines:]
		}
		parts = append(parts, mutedStyle.Render(strings.Join(lines, "\n")))
	}
	parts = append(parts, mutedStyle.Render("↑/↓ select • enter load/unload • w window • d debug • a auto-scan • r rescan • s save • q quit"))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderMenu() string {
	p := m.bridge.ConfigPanel()
	rows := []string{
		titleStyle.Render("Plugins"),
		mutedStyle.Render(fmt.Sprintf("auto-scan %v every %s", p.AutoScan, p.ScanInterval)),
	}
	for i, it := range m.bridge.PluginMenu() {
		mark := "[ ]"
		if it.Loaded {
			mark = "[x]"
		}
		row := fmt.Sprintf("%s %s", mark, it.Name)
		if i == m.cursor {
			row = cursorStyle.Render(row)
		}
		rows = append(rows, row)
		if it.Error != "" {
			rows = append(rows, errStyle.Render("    "+it.Error))
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}
