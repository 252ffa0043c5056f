package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/modelpush/host"
)

// ProgressMsg carries one host upload progress update.
type ProgressMsg host.Progress

// DoneMsg ends the upload view. Err is the upload result.
type DoneMsg struct {
	Err error
}

// UploadModel shows a live progress bar for one upload.
type UploadModel struct {
	name     string
	bar      progress.Model
	last     host.Progress
	err      error
	done     bool
	canceled bool
}

// NewUploadModel creates the view for uploading the artifact called name.
func NewUploadModel(name string) UploadModel {
	return UploadModel{
		name: name,
		bar:  progress.New(progress.WithDefaultGradient(), progress.WithWidth(48)),
	}
}

// Init implements tea.Model.
func (m UploadModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m UploadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = max(10, min(msg.Width-8, 80))
		return m, nil

	case ProgressMsg:
		m.last = host.Progress(msg)
		return m, nil

	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.canceled = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m UploadModel) View() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Uploading " + m.name))
	b.WriteString("\n")
	b.WriteString(m.bar.ViewAs(m.last.Fraction()))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render("Chunks:"),
		ValueStyle.Render(fmt.Sprintf("%d / %d", m.acked(), m.last.ChunkCount)))
	fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render("Bytes:"),
		ValueStyle.Render(fmt.Sprintf("%d / %d", m.last.Bytes, m.last.TotalBytes)))
	if m.last.Retransmits > 0 {
		fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render("Retransmits:"),
			WarningStyle.Render(fmt.Sprintf("%d", m.last.Retransmits)))
	}

	switch {
	case m.done && m.err != nil:
		b.WriteString(ErrorStyle.Render("upload failed: " + m.err.Error()))
	case m.done:
		b.WriteString(SuccessStyle.Render("upload complete"))
	case m.canceled:
		b.WriteString(WarningStyle.Render("canceled"))
	default:
		b.WriteString(HelpStyle.Render("Press q or Ctrl+C to cancel"))
	}
	return b.String() + "\n"
}

// acked is the number of acknowledged chunks.
func (m UploadModel) acked() uint32 {
	if m.last.ChunkCount == 0 {
		return 0
	}
	return m.last.Chunk + 1
}

// Canceled reports whether the user quit before the upload finished.
func (m UploadModel) Canceled() bool { return m.canceled }

// RunUpload shows the progress view while upload runs. upload receives a
// progress callback and should stop when cancel is called; cancel fires if
// the user quits the view.
func RunUpload(name string, cancel func(), upload func(onProgress func(host.Progress)) error) error {
	p := tea.NewProgram(NewUploadModel(name))

	result := make(chan error, 1)
	go func() {
		err := upload(func(pr host.Progress) { p.Send(ProgressMsg(pr)) })
		result <- err
		p.Send(DoneMsg{Err: err})
	}()

	final, err := p.Run()
	if err != nil {
		cancel()
		return err
	}
	if m, ok := final.(UploadModel); ok && m.Canceled() {
		cancel()
	}
	return <-result
}
