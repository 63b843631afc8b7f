package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/browser"
)

var (
	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			PaddingLeft(2)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228")). // yellow
			PaddingLeft(2)
)

// pagerModel pages a rendered report and jumps between its result sections
type pagerModel struct {
	viewport viewport.Model
	content  string
	ready    bool

	// offsets[i] is the first line of section i; urls[i] is its link or ""
	offsets []int
	urls    []string
	status  string
	open    func(string) error
}

// NewPager creates a pager over rendered sections. urls holds one entry per section.
func NewPager(sections []string, urls []string) *pagerModel {
	offsets := make([]int, len(sections))
	line := 0
	for i, s := range sections {
		offsets[i] = line
		line += strings.Count(s, "\n") + 1
	}
	return &pagerModel{
		content: strings.Join(sections, "\n"),
		offsets: offsets,
		urls:    urls,
		open:    browser.OpenURL,
	}
}

// Init initializes the pager model
func (m *pagerModel) Init() tea.Cmd {
	return nil
}

// Update handles user input and updates the model state
func (m *pagerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.status = ""
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "j", "down":
			m.viewport.ScrollDown(1)
		case "k", "up":
			m.viewport.ScrollUp(1)
		case "f", "pagedown", " ", "space":
			m.viewport.ScrollDown(m.viewport.Height)
		case "b", "pageup":
			m.viewport.ScrollUp(m.viewport.Height)
		case "g", "home":
			m.viewport.GotoTop()
		case "G", "end":
			m.viewport.GotoBottom()
		case "n":
			m.jump(1)
		case "N":
			m.jump(-1)
		case "o":
			m.openCurrent()
		}
		return m, nil

	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-2)
			m.viewport.Style = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				PaddingLeft(2).
				PaddingRight(2)
			m.viewport.SetContent(m.content)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 2
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// current returns the section at the top of the viewport
func (m *pagerModel) current() int {
	cur := 0
	for i, off := range m.offsets {
		if off <= m.viewport.YOffset {
			cur = i
		}
	}
	return cur
}

// jump scrolls to the next (dir > 0) or previous section, clamped to the ends
func (m *pagerModel) jump(dir int) {
	if len(m.offsets) == 0 {
		return
	}
	target := m.current() + dir
	if dir < 0 && m.viewport.YOffset > m.offsets[m.current()] {
		// first go back to the start of the section being read
		target = m.current()
	}
	target = max(0, min(target, len(m.offsets)-1))
	m.viewport.SetYOffset(m.offsets[target])
}

func (m *pagerModel) openCurrent() {
	i := m.current()
	if i >= len(m.urls) || m.urls[i] == "" {
		m.status = "no link in this section"
		return
	}
	if err := m.open(m.urls[i]); err != nil {
		m.status = fmt.Sprintf("open failed: %v", err)
		return
	}
	m.status = "opened " + m.urls[i]
}

// View renders the current state of the model
func (m *pagerModel) View() string {
	if !m.ready {
		return "\nInitializing..."
	}
	if m.status != "" {
		return m.viewport.View() + "\n" + statusStyle.Render(m.status)
	}
	help := "↑/k up • ↓/j down • space/f forward • b back • g/G top/bottom • n/N next/previous result • o open • q quit"
	return m.viewport.View() + "\n" + helpStyle.Render(help)
}

// RunPager starts the pager program over the rendered report sections
func RunPager(sections []string, urls []string) error {
	// keep the browser launcher from writing over the alt screen
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard

	p := tea.NewProgram(
		NewPager(sections, urls),
		tea.WithAltScreen(),
	)

	_, err := p.Run()
	return err
}
