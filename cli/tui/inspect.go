package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/modelpush/cli/reader"
	"github.com/pithecene-io/modelpush/types"
)

// InspectModel is a Bubble Tea model for inspect views.
type InspectModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewInspectModel creates a new inspect model.
func NewInspectModel(viewType string, data any) InspectModel {
	return InspectModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case "inspect_run":
		content = m.renderInspectRun()
	case "inspect_manifest":
		content = m.renderInspectManifest()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m InspectModel) renderInspectRun() string {
	data, ok := m.data.(*reader.ReportRow)
	if !ok {
		return "Invalid data type for inspect_run"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Run Report"))
	b.WriteString("\n\n")

	status := fmt.Sprintf("%d", data.StatusCode)
	if data.StatusCode == types.StatusPrepareFailed {
		status = "0xFFFFFFFF"
	}
	rows := [][]string{
		{"Run ID", data.RunID},
		{"Device", data.DeviceID},
		{"Outcome", data.Outcome},
		{"Cycles", fmt.Sprintf("%d", data.CycleCount)},
		{"Status", status},
		{"Layers", fmt.Sprintf("%d", data.LayerCount)},
		{"Scratch Used", fmt.Sprintf("%d B", data.ScratchUsed)},
		{"Artifact", fmt.Sprintf("%d B in %s", data.ArtifactBytes, data.ArtifactRegion)},
		{"Scratch Region", data.ScratchRegion},
		{"Reported At", data.Timestamp},
		{"Duration", fmt.Sprintf("%d ms", data.DurationMs)},
	}

	for _, row := range rows {
		label := LabelStyle.Render(row[0] + ":")
		value := ValueStyle.Render(row[1])
		if row[0] == "Outcome" {
			value = OutcomeStyle(data.Outcome).Render(row[1])
		}
		fmt.Fprintf(&b, "%s %s\n", label, value)
	}

	return BoxStyle.Render(b.String())
}

func (m InspectModel) renderInspectManifest() string {
	data, ok := m.data.(*types.ArtifactManifest)
	if !ok {
		return "Invalid data type for inspect_manifest"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Artifact Manifest"))
	b.WriteString("\n\n")

	for _, row := range [][]string{
		{"Upload ID", data.UploadID},
		{"Device", data.DeviceID},
		{"Region", data.Region},
		{"Size", fmt.Sprintf("%d B", data.SizeBytes)},
		{"Chunks", fmt.Sprintf("%d", data.ChunkCount)},
		{"CRC-32", fmt.Sprintf("0x%08X", data.CRC32)},
		{"Completed At", data.Timestamp},
	} {
		fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render(row[0]+":"), ValueStyle.Render(row[1]))
	}

	return BoxStyle.Render(b.String())
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RunInspectTUI runs the inspect TUI.
func RunInspectTUI(viewType string, data any) error {
	p := tea.NewProgram(NewInspectModel(viewType, data), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderInspectStatic renders inspect data without full TUI (for fallback).
func RenderInspectStatic(viewType string, data any) string {
	model := NewInspectModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
