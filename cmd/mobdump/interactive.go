package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/objgraph"
	"github.com/wippyai/objgraph/marshal"
	"github.com/wippyai/objgraph/typedesc"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	bytesStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	sharedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFB86C"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type interactiveModel struct {
	table    *typedesc.Table
	listing  *marshal.Listing
	source   string
	detail   viewport.Model
	history  []int
	selected int
	edge     int
	ready    bool
}

func newInteractiveModel(source string, table *typedesc.Table, listing *marshal.Listing) *interactiveModel {
	return &interactiveModel{
		source:  source,
		table:   table,
		listing: listing,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return nil
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := msg.Height/2 - 2
		if !m.ready {
			m.detail = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.detail.Width = msg.Width
			m.detail.Height = height
		}
		m.refresh()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "k":
			if m.selected > 0 {
				m.selected--
				m.edge = 0
				m.refresh()
			}

		case "down", "j":
			if m.selected < len(m.listing.Records)-1 {
				m.selected++
				m.edge = 0
				m.refresh()
			}

		case "tab":
			if n := len(m.edges()); n > 0 {
				m.edge = (m.edge + 1) % n
				m.refresh()
			}

		case "enter":
			m.follow()

		case "esc", "backspace":
			if n := len(m.history); n > 0 {
				m.selected = m.history[n-1]
				m.history = m.history[:n-1]
				m.edge = 0
				m.refresh()
			}
		}
	}

	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

func (m *interactiveModel) edges() []marshal.Edge {
	if len(m.listing.Records) == 0 {
		return nil
	}
	return m.listing.EdgesFrom(m.listing.Records[m.selected].Index)
}

// follow moves the selection to the object the highlighted pointer targets.
func (m *interactiveModel) follow() {
	edges := m.edges()
	if m.edge >= len(edges) || edges[m.edge].Target.IsNull() {
		return
	}
	target := edges[m.edge].Target
	for i, r := range m.listing.Records {
		if r.Mob.Type == target.Type && r.Mob.Address == target.Address {
			m.jump(i)
			return
		}
	}
	// shared members live inside their owner
	for i, r := range m.listing.Records {
		if r.Mob.Address <= target.Address && target.Address < r.Mob.Address+objgraph.Address(r.Size) {
			m.jump(i)
			return
		}
	}
}

func (m *interactiveModel) jump(i int) {
	m.history = append(m.history, m.selected)
	m.selected = i
	m.edge = 0
	m.refresh()
}

func (m *interactiveModel) refresh() {
	if !m.ready || len(m.listing.Records) == 0 {
		return
	}
	r := m.listing.Records[m.selected]

	var b strings.Builder
	fmt.Fprintf(&b, "%s  addr=0x%x  d=%d  size=%d\n\n",
		typeStyle.Render(m.table.Name(r.Mob.Type)), uint32(r.Mob.Address), r.Mob.Disambiguator, r.Size)
	b.WriteString(bytesStyle.Render(hexdump(r.Raw)))
	b.WriteString("\n")

	for i, e := range m.edges() {
		target := "null"
		if !e.Target.IsNull() {
			target = fmt.Sprintf("%s@0x%x", m.table.Name(e.Target.Type), uint32(e.Target.Address))
		}
		line := fmt.Sprintf("+0x%-4x -> [%d] %s", uint32(e.Slot-r.Mob.Address), e.Index, target)
		if e.Shared {
			line += sharedStyle.Render(" shared")
		}
		if i == m.edge {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	m.detail.SetContent(b.String())
	m.detail.GotoTop()
}

func (m *interactiveModel) View() string {
	if len(m.listing.Records) == 0 {
		return "Stream holds no objects.\n"
	}
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Object Graph"))
	fmt.Fprintf(&b, " %s  %d roots, %d objects, %d pointers\n\n",
		m.source, len(m.listing.Roots), len(m.listing.Records), len(m.listing.Edges))

	// keep the selection inside a window of the list
	rows := max(m.detail.Height, 4)
	start := max(0, m.selected-rows/2)
	end := min(len(m.listing.Records), start+rows)
	for i := start; i < end; i++ {
		r := m.listing.Records[i]
		line := fmt.Sprintf("#%-3d %-24s %4d bytes", r.Index, m.table.Name(r.Mob.Type), r.Size)
		if i == m.selected {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.detail.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓ select • tab pointer • enter follow • esc back • q quit"))
	return b.String()
}

func hexdump(raw []byte) string {
	var b strings.Builder
	for off := 0; off < len(raw); off += 16 {
		end := min(off+16, len(raw))
		fmt.Fprintf(&b, "%04x  % x\n", off, raw[off:end])
	}
	return b.String()
}

func runInteractive(source string, table *typedesc.Table, listing *marshal.Listing) error {
	p := tea.NewProgram(newInteractiveModel(source, table, listing), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
