package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/creachadair/command"

	"github.com/lookingstars/Xcodeproj/value"
)

type entry struct {
	label string
	node  value.Value
}

// frame is one container on the navigation stack.
type frame struct {
	label    string
	entries  []entry
	selected int
}

type browseModel struct {
	err      error
	load     func() (*value.Map, error)
	filename string
	stack    []frame
	filter   textinput.Model
	state    browseState
}

type browseState int

const (
	stateLoading browseState = iota
	stateNavigate
	stateFilter
)

type loadedMsg struct {
	err  error
	root *value.Map
}

func newBrowseModel(filename string, load func() (*value.Map, error)) *browseModel {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "filter keys"
	ti.Width = 40
	return &browseModel{
		filename: filename,
		load:     load,
		filter:   ti,
		state:    stateLoading,
	}
}

func entriesOf(v value.Value) []entry {
	switch x := v.(type) {
	case *value.Map:
		out := make([]entry, 0, x.Len())
		for k, e := range x.All() {
			out = append(out, entry{label: k, node: e})
		}
		return out
	case value.Seq:
		out := make([]entry, len(x))
		for i, e := range x {
			out[i] = entry{label: value.IndexSegment(i), node: e}
		}
		return out
	}
	return nil
}

func (m *browseModel) Init() tea.Cmd {
	return func() tea.Msg {
		root, err := m.load()
		return loadedMsg{root: root, err: err}
	}
}

func (m *browseModel) top() *frame {
	return &m.stack[len(m.stack)-1]
}

// visible returns the entries of the current frame that match the filter.
func (m *browseModel) visible() []entry {
	f := m.top()
	q := strings.ToLower(m.filter.Value())
	if q == "" {
		return f.entries
	}
	var out []entry
	for _, e := range f.entries {
		if strings.Contains(strings.ToLower(e.label), q) {
			out = append(out, e)
		}
	}
	return out
}

func (m *browseModel) path() string {
	labels := make([]string, len(m.stack))
	for i, f := range m.stack {
		labels[i] = f.label
	}
	return strings.Join(labels, ".")
}

func (m *browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.stack = []frame{{label: "root", entries: entriesOf(msg.root)}}
		m.state = stateNavigate
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.state == stateFilter {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit

		case "up", "k":
			if m.state == stateNavigate && m.top().selected > 0 {
				m.top().selected--
			}

		case "down", "j":
			if m.state == stateNavigate && m.top().selected < len(m.visible())-1 {
				m.top().selected++
			}

		case "enter", "right", "l":
			if m.state != stateNavigate {
				break
			}
			vis := m.visible()
			if len(vis) == 0 {
				break
			}
			e := vis[m.top().selected]
			if k := e.node.Kind(); k == value.KindMap || k == value.KindSeq {
				m.stack = append(m.stack, frame{label: e.label, entries: entriesOf(e.node)})
				m.filter.Reset()
			}

		case "esc", "left", "h", "backspace":
			if len(m.stack) > 1 {
				m.stack = m.stack[:len(m.stack)-1]
				m.filter.Reset()
			}

		case "/":
			if m.state == stateNavigate {
				m.state = stateFilter
				m.top().selected = 0
				return m, m.filter.Focus()
			}
		}
	}
	return m, nil
}

func (m *browseModel) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.filter.Blur()
		m.state = stateNavigate
		return m, nil
	case "esc":
		m.filter.Reset()
		m.filter.Blur()
		m.state = stateNavigate
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.top().selected = 0
	return m, cmd
}

func (m *browseModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if m.state == stateLoading {
		return "Loading property list..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("plist"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n")
	b.WriteString(typeStyle.Render(m.path()))
	b.WriteString("\n\n")

	vis := m.visible()
	if len(vis) == 0 {
		b.WriteString(helpStyle.Render("(empty)"))
		b.WriteString("\n")
	}
	for i, e := range vis {
		line := e.label + "  " + summary(e.node)
		if i == m.top().selected {
			b.WriteString(selectedStyle.Render("> " + e.label))
			b.WriteString("  " + summary(e.node))
		} else {
			b.WriteString("  " + keyStyle.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.state == stateFilter || m.filter.Value() != "" {
		b.WriteString(m.filter.View())
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("↑/↓ select • enter open • esc back • / filter • q quit"))
	return b.String()
}

func runBrowse(env *command.Env, path string) error {
	ctx := env.Context()
	p, err := openPlist(ctx)
	if err != nil {
		return err
	}
	defer p.Close(context.Background())

	load := func() (*value.Map, error) { return p.Read(ctx, path) }
	prog := tea.NewProgram(newBrowseModel(path, load), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = prog.Run()
	return err
}
