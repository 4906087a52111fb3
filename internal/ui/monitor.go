package ui

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/crazy3lf/colorconv"

	"github.com/attunelab/attune/internal/utils"
)

// MonitorFrame is one snapshot of the running session, pushed to the
// terminal view after every coherence tick.
type MonitorFrame struct {
	Timestamp time.Time

	State   string
	Score   float64
	Quality float64

	BaselineGain    float64
	CoherenceGain   float64
	ShimmerGain     float64
	SustainedGain   float64
	EntrainmentGain float64
	FogWet          float64
	Master          float64

	EntrainmentOn   bool
	FogActive       bool
	CoherentSeconds float64
	LongestStreak   float64
	Cues            int
	Transitions     int
}

const monitorRenderLatency = 45 * time.Millisecond

// Monitor renders live session frames in an alternate-screen terminal view.
type Monitor struct {
	program *tea.Program

	mu       sync.Mutex
	lastSend time.Time

	closeOnce sync.Once
}

// NewMonitor starts the terminal view on its own goroutine. onExit fires
// once when the user quits the view with q, esc or ctrl+c.
func NewMonitor(onExit func()) *Monitor {
	model := monitorModel{onExit: onExit}
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithoutSignalHandler())

	m := &Monitor{program: program}
	go func() {
		_, _ = program.Run()
	}()
	return m
}

// Update pushes a frame to the view. Frames arriving faster than the
// render latency are dropped so the session loop never blocks on drawing.
func (m *Monitor) Update(frame MonitorFrame) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if now.Sub(m.lastSend) < monitorRenderLatency {
		return
	}
	m.lastSend = now
	m.program.Send(monitorFrameMsg(frame))
}

// Close tears the view down. Safe to call more than once.
func (m *Monitor) Close() {
	m.closeOnce.Do(func() {
		m.program.Quit()
	})
}

type monitorFrameMsg MonitorFrame

type monitorModel struct {
	frame       MonitorFrame
	lastUpdated time.Time
	ready       bool
	width       int
	height      int

	onExit   func()
	exitOnce sync.Once
}

func (m monitorModel) Init() tea.Cmd {
	return nil
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case monitorFrameMsg:
		m.frame = MonitorFrame(msg)
		m.lastUpdated = time.Now()
		m.ready = true
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.invokeExit()
			return m, tea.Quit
		}
	case tea.QuitMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m monitorModel) View() string {
	if !m.ready {
		content := lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("attune session"),
			"",
			monWaitingStyle.Render("Waiting for coherence data..."),
			"",
			monHintStyle.Render("press q to quit"),
		)
		return monContainerStyle.Render(content)
	}
	return renderMonitorView(m.frame)
}

func (m *monitorModel) invokeExit() {
	m.exitOnce.Do(func() {
		if m.onExit != nil {
			m.onExit()
		}
	})
}

var (
	monContainerStyle = lipgloss.NewStyle().
				Padding(1, 2)
	monTimestampStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("244"))
	monMetricLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("246"))
	monMetricValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252")).
				Bold(true)
	monFlagOnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("213")).
			Bold(true)
	monFlagOffStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
	monWaitingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)
	monHintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

const (
	monBarWidth    = 32
	stateStripSize = 18
)

func renderMonitorView(frame MonitorFrame) string {
	sections := []string{
		renderMonitorHeader(frame),
		"",
		renderStateStrip(frame),
		"",
		renderBar("Coherence", frame.Score, monThemes["coherence"]),
		renderBar("Contact", frame.Quality, monThemes["contact"]),
		"",
		renderBar("Baseline", frame.BaselineGain, monThemes["baseline"]),
		renderBar("Reward", frame.CoherenceGain, monThemes["reward"]),
		renderBar("Shimmer", frame.ShimmerGain, monThemes["shimmer"]),
		renderBar("Sustained", frame.SustainedGain, monThemes["sustained"]),
		renderBar("Entrainment", frame.EntrainmentGain, monThemes["entrainment"]),
		renderBar("Fog", frame.FogWet, monThemes["fog"]),
		"",
		renderMonitorMetrics(frame),
		"",
		monHintStyle.Render("press q to quit"),
	}
	return monContainerStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func renderMonitorHeader(frame MonitorFrame) string {
	state := normalizeState(frame.State)
	stateColor := lipgloss.Color(hexColorFromHSV(stateHue(state), 0.75, 0.95))
	stateStyle := lipgloss.NewStyle().Foreground(stateColor).Bold(true)

	left := lipgloss.JoinHorizontal(lipgloss.Left,
		titleStyle.Render("attune session"),
		subtitleStyle.Render("  ·  "),
		stateStyle.Render(strings.ToUpper(state)),
	)
	right := monTimestampStyle.Render(frame.Timestamp.Format("15:04:05.000"))
	return lipgloss.JoinHorizontal(lipgloss.Left, left, "   ", right)
}

// renderStateStrip paints a block strip in the state hue, lit in
// proportion to the current score.
func renderStateStrip(frame MonitorFrame) string {
	state := normalizeState(frame.State)
	hue := stateHue(state)
	lit := int(math.Round(utils.Clamp(frame.Score, 0, 1) * stateStripSize))

	var b strings.Builder
	for i := 0; i < stateStripSize; i++ {
		t := float64(i) / float64(stateStripSize-1)
		if i < lit {
			color := lipgloss.Color(hexColorFromHSV(hue, 0.7, 0.55+0.4*t))
			b.WriteString(lipgloss.NewStyle().Foreground(color).Render("█"))
		} else {
			b.WriteString(monFlagOffStyle.Render("░"))
		}
	}
	return b.String()
}

func renderMonitorMetrics(frame MonitorFrame) string {
	entrain := monFlagOffStyle.Render("○ entrain")
	if frame.EntrainmentOn {
		entrain = monFlagOnStyle.Render("● entrain")
	}
	fog := monFlagOffStyle.Render("○ fog")
	if frame.FogActive {
		fog = monFlagOnStyle.Render("● fog")
	}

	metrics := []string{
		renderMetric("coherent", fmt.Sprintf("%.1fs", frame.CoherentSeconds)),
		renderMetric("streak", fmt.Sprintf("%.1fs", frame.LongestStreak)),
		renderMetric("cues", fmt.Sprintf("%d", frame.Cues)),
		renderMetric("shifts", fmt.Sprintf("%d", frame.Transitions)),
		entrain,
		fog,
	}
	return strings.Join(metrics, monMetricLabelStyle.Render("   "))
}

func renderMetric(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Left,
		monMetricLabelStyle.Render(label+" "),
		monMetricValueStyle.Render(value),
	)
}

type barTheme struct {
	HueStart   float64
	HueEnd     float64
	Saturation float64
	ValueBase  float64
	ValueSpan  float64
	FilledChar string
	EmptyChar  string
}

var defaultBarTheme = barTheme{
	HueStart:   200,
	HueEnd:     160,
	Saturation: 0.65,
	ValueBase:  0.55,
	ValueSpan:  0.4,
	FilledChar: "█",
	EmptyChar:  "░",
}

var monThemes = map[string]barTheme{
	"coherence":   {HueStart: 190, HueEnd: 140, Saturation: 0.8, ValueBase: 0.6, ValueSpan: 0.35},
	"contact":     {HueStart: 0, HueEnd: 110, Saturation: 0.7, ValueBase: 0.6, ValueSpan: 0.3},
	"baseline":    {HueStart: 215, HueEnd: 230, Saturation: 0.45, ValueBase: 0.5, ValueSpan: 0.35},
	"reward":      {HueStart: 110, HueEnd: 150, Saturation: 0.75, ValueBase: 0.6, ValueSpan: 0.35},
	"shimmer":     {HueStart: 285, HueEnd: 315, Saturation: 0.7, ValueBase: 0.65, ValueSpan: 0.3},
	"sustained":   {HueStart: 25, HueEnd: 45, Saturation: 0.8, ValueBase: 0.6, ValueSpan: 0.35},
	"entrainment": {HueStart: 330, HueEnd: 355, Saturation: 0.7, ValueBase: 0.6, ValueSpan: 0.35},
	"fog":         {HueStart: 200, HueEnd: 220, Saturation: 0.25, ValueBase: 0.5, ValueSpan: 0.3},
}

func renderBar(label string, value float64, theme barTheme) string {
	theme = normalizeBarTheme(theme)
	clamped := utils.Clamp(value, 0, 1)

	filled := int(math.Round(clamped * monBarWidth))
	if clamped > 0 && filled == 0 {
		filled = 1
	}

	var bar strings.Builder
	for i := 0; i < monBarWidth; i++ {
		if i < filled {
			t := float64(i) / float64(monBarWidth-1)
			hue := theme.HueStart + (theme.HueEnd-theme.HueStart)*t
			color := lipgloss.Color(hexColorFromHSV(hue, theme.Saturation, theme.ValueBase+theme.ValueSpan*t))
			bar.WriteString(lipgloss.NewStyle().Foreground(color).Render(theme.FilledChar))
		} else {
			bar.WriteString(monFlagOffStyle.Render(theme.EmptyChar))
		}
	}

	return lipgloss.JoinHorizontal(lipgloss.Left,
		monMetricLabelStyle.Render(fmt.Sprintf("%-14s", label)),
		"[",
		bar.String(),
		"] ",
		monMetricValueStyle.Render(fmt.Sprintf("%3.0f%%", clamped*100)),
	)
}

func normalizeBarTheme(theme barTheme) barTheme {
	if theme.Saturation == 0 {
		theme.Saturation = defaultBarTheme.Saturation
	}
	if theme.ValueBase == 0 {
		theme.ValueBase = defaultBarTheme.ValueBase
	}
	if theme.ValueSpan == 0 {
		theme.ValueSpan = defaultBarTheme.ValueSpan
	}
	if theme.FilledChar == "" {
		theme.FilledChar = defaultBarTheme.FilledChar
	}
	if theme.EmptyChar == "" {
		theme.EmptyChar = defaultBarTheme.EmptyChar
	}
	return theme
}

func stateHue(state string) float64 {
	switch state {
	case "coherent":
		return 130
	case "stabilizing":
		return 45
	default:
		return 210
	}
}

func normalizeState(state string) string {
	state = strings.ToLower(strings.TrimSpace(state))
	switch state {
	case "coherent", "stabilizing", "baseline":
		return state
	default:
		return "baseline"
	}
}

func hexColorFromHSV(h, s, v float64) string {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	r, g, b, err := colorconv.HSVToRGB(h, utils.Clamp(s, 0, 1), utils.Clamp(v, 0, 1))
	if err != nil {
		return "#FFFFFF"
	}
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}
