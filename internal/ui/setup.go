package ui

import (
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rotisserie/eris"
	"golang.org/x/term"

	"github.com/attunelab/attune/internal/utils"
)

var (
	ErrSelectionAborted = eris.New("selection aborted")
	ErrNoInteractiveTTY = eris.New("no interactive terminal available")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("114")).
			Bold(true)
	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("246"))
	pointerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("114"))
	inactivePointerStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))
	itemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))
	selectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("157")).
				Bold(true)
	instructionKeyStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("114")).
				Bold(true)
	instructionTextStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))
	instructionDividerStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))
	summaryLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("246"))
	summaryValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252")).
				Bold(true)
	emptyStateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

type Option struct {
	Label string
}

type SetupConfig struct {
	RequireDevice     bool
	RequireDifficulty bool
	InitialDevice     int
	InitialDifficulty int
}

type SetupResult struct {
	DeviceIndex     int
	DifficultyIndex int
}

// RunSetup walks the user through output-device and difficulty selection.
// When nothing needs asking it resolves immediately from the initial
// indices without touching the terminal.
func RunSetup(devices []Option, difficulties []Option, cfg SetupConfig) (SetupResult, error) {
	if !cfg.RequireDevice && !cfg.RequireDifficulty {
		return SetupResult{
			DeviceIndex:     utils.ClampIndex(cfg.InitialDevice, len(devices)),
			DifficultyIndex: utils.ClampIndex(cfg.InitialDifficulty, len(difficulties)),
		}, nil
	}

	if !isInteractiveTerminal() {
		return SetupResult{}, ErrNoInteractiveTTY
	}

	program := tea.NewProgram(newSetupModel(devices, difficulties, cfg))
	finalModel, err := program.Run()
	if err != nil {
		return SetupResult{}, err
	}

	result := finalModel.(setupModel)
	if result.err != nil {
		return SetupResult{}, result.err
	}

	return SetupResult{
		DeviceIndex:     utils.ClampIndex(result.deviceIndex, len(devices)),
		DifficultyIndex: utils.ClampIndex(result.difficultyIndex, len(difficulties)),
	}, nil
}

type setupStep int

const (
	stepSelectDevice setupStep = iota
	stepSelectDifficulty
	stepConfirm
	stepDone
)

type setupModel struct {
	step         setupStep
	cfg          SetupConfig
	devices      []Option
	difficulties []Option

	cursor          int
	deviceIndex     int
	difficultyIndex int
	err             error
}

func newSetupModel(devices []Option, difficulties []Option, cfg SetupConfig) setupModel {
	m := setupModel{
		devices:         devices,
		difficulties:    difficulties,
		cfg:             cfg,
		deviceIndex:     utils.ClampIndex(cfg.InitialDevice, len(devices)),
		difficultyIndex: utils.ClampIndex(cfg.InitialDifficulty, len(difficulties)),
	}

	switch {
	case cfg.RequireDevice && len(devices) > 0:
		m.step = stepSelectDevice
		m.cursor = utils.ClampIndex(cfg.InitialDevice, len(devices))
	case cfg.RequireDifficulty && len(difficulties) > 0:
		m.step = stepSelectDifficulty
		m.cursor = utils.ClampIndex(cfg.InitialDifficulty, len(difficulties))
	default:
		m.step = stepConfirm
	}

	return m
}

func (m setupModel) Init() tea.Cmd {
	return nil
}

func (m setupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.step == stepDone {
		return m, tea.Quit
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			m.err = ErrSelectionAborted
			return m, tea.Quit
		case "up", "k":
			items := m.currentItems()
			if len(items) > 0 {
				m.cursor = wrapIndex(m.cursor-1, len(items))
			}
		case "down", "j":
			items := m.currentItems()
			if len(items) > 0 {
				m.cursor = wrapIndex(m.cursor+1, len(items))
			}
		case "tab", "right", "l":
			switch m.step {
			case stepSelectDevice:
				if m.cfg.RequireDifficulty && len(m.difficulties) > 0 {
					m.deviceIndex = m.cursor
					m.step = stepSelectDifficulty
					m.cursor = utils.ClampIndex(m.difficultyIndex, len(m.difficulties))
				}
			case stepSelectDifficulty:
				m.difficultyIndex = m.cursor
				m.step = stepConfirm
				m.cursor = 0
			}
		case "shift+tab", "left", "h":
			switch m.step {
			case stepSelectDifficulty:
				if m.cfg.RequireDevice && len(m.devices) > 0 {
					m.difficultyIndex = m.cursor
					m.step = stepSelectDevice
					m.cursor = utils.ClampIndex(m.deviceIndex, len(m.devices))
				}
			case stepConfirm:
				if m.cfg.RequireDifficulty {
					m.step = stepSelectDifficulty
					m.cursor = utils.ClampIndex(m.difficultyIndex, len(m.difficulties))
				} else if m.cfg.RequireDevice {
					m.step = stepSelectDevice
					m.cursor = utils.ClampIndex(m.deviceIndex, len(m.devices))
				}
			}
		case "enter":
			switch m.step {
			case stepSelectDevice:
				m.deviceIndex = m.cursor
				if m.cfg.RequireDifficulty && len(m.difficulties) > 0 {
					m.step = stepSelectDifficulty
					m.cursor = utils.ClampIndex(m.difficultyIndex, len(m.difficulties))
				} else {
					m.step = stepConfirm
					m.cursor = 0
				}
			case stepSelectDifficulty:
				m.difficultyIndex = m.cursor
				m.step = stepConfirm
				m.cursor = 0
			case stepConfirm:
				m.step = stepDone
				return m, tea.Quit
			}
		case "backspace", "b":
			if m.step == stepConfirm {
				if m.cfg.RequireDifficulty {
					m.step = stepSelectDifficulty
					m.cursor = utils.ClampIndex(m.difficultyIndex, len(m.difficulties))
				} else if m.cfg.RequireDevice {
					m.step = stepSelectDevice
					m.cursor = utils.ClampIndex(m.deviceIndex, len(m.devices))
				}
			}
		}
	}

	return m, nil
}

func (m setupModel) View() string {
	switch m.step {
	case stepSelectDevice:
		return renderDeviceView(m)
	case stepSelectDifficulty:
		return renderDifficultyView(m)
	case stepConfirm:
		return renderSummaryView(m)
	default:
		return ""
	}
}

func (m setupModel) currentItems() []Option {
	switch m.step {
	case stepSelectDevice:
		return m.devices
	case stepSelectDifficulty:
		return m.difficulties
	default:
		return nil
	}
}

func renderDeviceView(m setupModel) string {
	instructions := []string{"↑/k ↓/j move", "enter confirm"}
	if m.cfg.RequireDifficulty {
		instructions = append(instructions, "tab/right continue")
	}
	instructions = append(instructions, "esc cancel")

	lines := []string{
		"",
		titleStyle.Render("Select an audio output device"),
		"",
		renderOptionList(m.devices, m.cursor),
		"",
		renderInstructions(instructions),
		"",
	}
	return strings.Join(lines, "\n")
}

func renderDifficultyView(m setupModel) string {
	instructions := []string{"↑/k ↓/j move", "enter confirm"}
	if m.cfg.RequireDevice {
		instructions = append(instructions, "shift+tab/left back")
	}
	instructions = append(instructions, "tab/right finish", "esc cancel")

	lines := []string{
		"",
		titleStyle.Render("Select a session difficulty"),
	}

	if m.cfg.RequireDevice {
		lines = append(lines,
			"",
			renderSummaryRow("Device", m.selectedDeviceLabel()),
		)
	}

	lines = append(lines,
		"",
		renderOptionList(m.difficulties, m.cursor),
		"",
		renderInstructions(instructions),
		"",
	)

	return strings.Join(lines, "\n")
}

func renderSummaryView(m setupModel) string {
	instructions := []string{"enter start", "←/h/b/backspace edit", "esc cancel"}

	lines := []string{
		"",
		titleStyle.Render("Ready to start"),
		"",
		renderSummaryRow("Device", m.selectedDeviceLabel()),
		renderSummaryRow("Difficulty", m.selectedDifficultyLabel()),
		"",
		renderInstructions(instructions),
		"",
	}
	return strings.Join(lines, "\n")
}

func (m setupModel) selectedDeviceLabel() string {
	if m.deviceIndex >= 0 && m.deviceIndex < len(m.devices) {
		return m.devices[m.deviceIndex].Label
	}
	return "system default"
}

func (m setupModel) selectedDifficultyLabel() string {
	if m.difficultyIndex >= 0 && m.difficultyIndex < len(m.difficulties) {
		return m.difficulties[m.difficultyIndex].Label
	}
	return "not selected"
}

func renderPointer(active bool) string {
	if active {
		return pointerStyle.Render("›")
	}
	return inactivePointerStyle.Render(" ")
}

func renderOptionLabel(text string, active bool) string {
	if active {
		return selectedItemStyle.Render(text)
	}
	return itemStyle.Render(text)
}

func renderOptionList(items []Option, cursor int) string {
	if len(items) == 0 {
		return emptyStateStyle.Render("No options detected")
	}

	rows := make([]string, len(items))
	for i, item := range items {
		rows[i] = lipgloss.JoinHorizontal(lipgloss.Left,
			renderPointer(cursor == i),
			" ",
			renderOptionLabel(item.Label, cursor == i),
		)
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderInstructions(parts []string) string {
	if len(parts) == 0 {
		return ""
	}

	if len(parts) == 1 {
		return renderInstruction(parts[0])
	}

	var segments []string
	for i, part := range parts {
		if i > 0 {
			segments = append(segments, instructionDividerStyle.Render(" · "))
		}
		segments = append(segments, renderInstruction(part))
	}
	return lipgloss.JoinHorizontal(lipgloss.Left, segments...)
}

func renderInstruction(part string) string {
	tokens := strings.Fields(part)
	if len(tokens) == 0 {
		return ""
	}
	if len(tokens) == 1 {
		return instructionTextStyle.Render(tokens[0])
	}

	var segments []string
	keyTokens := tokens[:len(tokens)-1]
	for i, token := range keyTokens {
		if i > 0 {
			segments = append(segments, instructionTextStyle.Render(" "))
		}
		segments = append(segments, instructionKeyStyle.Render(token))
	}
	segments = append(segments, instructionTextStyle.Render(" "))
	segments = append(segments, instructionTextStyle.Render(tokens[len(tokens)-1]))
	return lipgloss.JoinHorizontal(lipgloss.Left, segments...)
}

func renderSummaryRow(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Left,
		summaryLabelStyle.Render(label+": "),
		summaryValueStyle.Render(value),
	)
}

func wrapIndex(idx, length int) int {
	if length <= 0 {
		return 0
	}
	idx = idx % length
	if idx < 0 {
		idx += length
	}
	return idx
}

func isInteractiveTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
