package checkout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// PreviewFunc renders the pending change of one file, typically a diff.
type PreviewFunc func(path string) string

// Lipgloss styles for terminal output
var (
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("yellow")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("cyan")).Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	borderStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
)

type choice int

const (
	choiceCheckout choice = iota
	choiceShowChanges
	choiceCancel
)

// InteractiveStrategy shows a menu listing the files that need checkout.
// Without a terminal on stdin it rejects the batch instead of blocking.
type InteractiveStrategy struct {
	Preview PreviewFunc

	// Input and Output override the terminal, mostly for tests.
	Input  io.Reader
	Output io.Writer
}

// Approve runs the menu until the user checks out or cancels. Choosing
// "Show changes" opens the preview and returns to the menu afterwards.
func (s *InteractiveStrategy) Approve(ctx context.Context, paths []string) (bool, error) {
	if s.Input == nil && !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return false, nil
	}

	for {
		picked, err := s.runMenu(ctx, paths)
		if err != nil {
			return false, err
		}
		switch picked {
		case choiceCheckout:
			return true, nil
		case choiceShowChanges:
			if err := s.showChanges(ctx, paths); err != nil {
				return false, err
			}
		default:
			return false, nil
		}
	}
}

func (s *InteractiveStrategy) options(ctx context.Context) []tea.ProgramOption {
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if s.Input != nil {
		opts = append(opts, tea.WithInput(s.Input))
	}
	if s.Output != nil {
		opts = append(opts, tea.WithOutput(s.Output))
	}
	return opts
}

func (s *InteractiveStrategy) runMenu(ctx context.Context, paths []string) (choice, error) {
	p := tea.NewProgram(newMenuModel(paths, s.Preview != nil), s.options(ctx)...)
	final, err := p.Run()
	if err != nil {
		return choiceCancel, fmt.Errorf("failed to show checkout menu: %w", err)
	}
	result := final.(menuModel)
	if result.selected == nil {
		return choiceCancel, nil
	}
	return *result.selected, nil
}

func (s *InteractiveStrategy) showChanges(ctx context.Context, paths []string) error {
	var b strings.Builder
	for _, path := range paths {
		b.WriteString(s.Preview(path))
		b.WriteString("\n")
	}
	p := tea.NewProgram(newPreviewModel(b.String()), append(s.options(ctx), tea.WithAltScreen())...)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to show changes: %w", err)
	}
	return nil
}

// menuModel is the BubbleTea model for the checkout menu
type menuModel struct {
	paths    []string
	choices  []choice
	cursor   int
	selected *choice
}

func newMenuModel(paths []string, canPreview bool) menuModel {
	choices := []choice{choiceCheckout}
	if canPreview {
		choices = append(choices, choiceShowChanges)
	}
	choices = append(choices, choiceCancel)
	return menuModel{paths: paths, choices: choices}
}

func (c choice) label(n int) string {
	switch c {
	case choiceCheckout:
		if n == 1 {
			return "Check out 1 file and write it"
		}
		return fmt.Sprintf("Check out %d files and write them", n)
	case choiceShowChanges:
		return "Show changes"
	default:
		return "Cancel generation"
	}
}

func (m menuModel) Init() tea.Cmd {
	return nil
}

func (m menuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "ctrl+c", "q", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.choices)-1 {
			m.cursor++
		}
	case "enter":
		picked := m.choices[m.cursor]
		m.selected = &picked
		return m, tea.Quit
	}
	return m, nil
}

func (m menuModel) View() string {
	var b strings.Builder

	b.WriteString(warningStyle.Render("🔒 These files are read-only and must be checked out:") + "\n")
	for _, path := range m.paths {
		b.WriteString(mutedStyle.Render("    "+path) + "\n")
	}
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("    [↑/↓] Navigate    [Enter] Select    [q] Cancel") + "\n\n")

	for i, c := range m.choices {
		if m.cursor == i {
			b.WriteString("    " + selectedStyle.Render("> "+c.label(len(m.paths))) + "\n")
		} else {
			b.WriteString("      " + c.label(len(m.paths)) + "\n")
		}
	}
	return b.String()
}

// previewModel shows the pending changes in a scrollable viewport
type previewModel struct {
	content  string
	viewport viewport.Model
	ready    bool
}

func newPreviewModel(content string) previewModel {
	return previewModel{content: content}
}

func (m previewModel) Init() tea.Cmd {
	return nil
}

func (m previewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		const chrome = 4
		if !m.ready {
			m.viewport = viewport.New(msg.Width-4, msg.Height-chrome)
			m.viewport.SetContent(m.content)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 4
			m.viewport.Height = msg.Height - chrome
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m previewModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	footer := mutedStyle.Render(" [↑/↓] Scroll    [q] Return to menu ")
	return borderStyle.Render(m.viewport.View()) + "\n" + footer
}
