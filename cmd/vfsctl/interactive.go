package main

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pagekv/vfs-runtime/file"
	"github.com/pagekv/vfs-runtime/store"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	entryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// previewLimit caps how many bytes of a file the preview pane loads.
const previewLimit = 4096

type browserState int

const (
	stateList browserState = iota
	statePreview
)

type browserModel struct {
	store    *store.Badger
	err      error
	entries  []fileEntry
	selected int
	preview  viewport.Model
	state    browserState
	ready    bool
}

type entriesMsg struct {
	entries []fileEntry
	err     error
}

type previewMsg struct {
	path string
	dump string
	err  error
}

func runInteractive(s *store.Badger) error {
	m := &browserModel{store: s}
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func (m *browserModel) Init() tea.Cmd {
	return m.loadEntries
}

func (m *browserModel) loadEntries() tea.Msg {
	entries, err := scanFiles(context.Background(), m.store)
	return entriesMsg{entries: entries, err: err}
}

func (m *browserModel) loadPreview() tea.Cmd {
	path := m.entries[m.selected].path
	return func() tea.Msg {
		ctx := context.Background()

		f, err := file.Open(ctx, m.store, path, "r")
		if err != nil {
			return previewMsg{path: path, err: err}
		}
		defer f.Close()

		n := f.Size()
		if n > previewLimit {
			n = previewLimit
		}
		if n == 0 {
			return previewMsg{path: path, dump: "(empty file)"}
		}

		data, err := f.Read(ctx, 1, int(n))
		if err != nil {
			return previewMsg{path: path, err: err}
		}
		return previewMsg{path: path, dump: hex.Dump(data)}
	}
}

func (m *browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.preview = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.preview.Width = msg.Width
			m.preview.Height = msg.Height - 4
		}
		return m, nil

	case entriesMsg:
		m.entries = msg.entries
		m.err = msg.err
		if m.selected >= len(m.entries) {
			m.selected = 0
		}
		return m, nil

	case previewMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.preview.SetContent(msg.dump)
		m.preview.GotoTop()
		m.state = statePreview
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case stateList:
			switch msg.String() {
			case "q", "ctrl+c":
				return m, tea.Quit
			case "up", "k":
				if m.selected > 0 {
					m.selected--
				}
			case "down", "j":
				if m.selected < len(m.entries)-1 {
					m.selected++
				}
			case "enter":
				if len(m.entries) > 0 {
					return m, m.loadPreview()
				}
			case "r":
				return m, m.loadEntries
			}

		case statePreview:
			switch msg.String() {
			case "q", "esc":
				m.state = stateList
				return m, nil
			case "ctrl+c":
				return m, tea.Quit
			default:
				var cmd tea.Cmd
				m.preview, cmd = m.preview.Update(msg)
				return m, cmd
			}
		}
	}

	return m, nil
}

func (m *browserModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v", m.err)) + "\n" +
			helpStyle.Render("q: quit")
	}

	switch m.state {
	case statePreview:
		title := titleStyle.Render("vfsctl: " + m.entries[m.selected].path)
		return title + "\n" + m.preview.View() + "\n" +
			helpStyle.Render("esc: back  ↑/↓: scroll  ctrl+c: quit")

	default:
		s := titleStyle.Render("vfsctl: stored files") + "\n\n"

		if len(m.entries) == 0 {
			s += helpStyle.Render("(no files in store)") + "\n"
		}
		for i, e := range m.entries {
			line := fmt.Sprintf("%-40s %10d bytes  %4d pages  v%d",
				e.path, e.meta.Size, e.meta.PageCount, e.meta.Version)
			if i == m.selected {
				s += selectedStyle.Render("> "+line) + "\n"
			} else {
				s += entryStyle.Render("  "+line) + "\n"
			}
		}

		s += "\n" + helpStyle.Render("↑/↓: select  enter: preview  r: reload  q: quit")
		return s
	}
}
