// Copyright (C) CompScout, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/compscout/comp-scout/pkg/pipeline"
	"github.com/compscout/comp-scout/pkg/resource"
)

var (
	resultsTitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	resultsSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("51"))
	resultsDimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	resultsHeaderStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	resultsWarnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// ResultsModel browses an analysis report: component list on the left,
// knowledge details on the right.
type ResultsModel struct {
	report  *pipeline.Report
	cursor  int
	details viewport.Model
	width   int
	height  int
	ready   bool
}

// NewResultsModel builds the viewer for one report.
func NewResultsModel(report *pipeline.Report) ResultsModel {
	vp := viewport.New(60, 20) // Resized on the first WindowSizeMsg
	m := ResultsModel{
		report:  report,
		details: vp,
	}
	m.details.SetContent(m.detailContent())
	return m
}

func runResultsViewer(report *pipeline.Report) error {
	p := tea.NewProgram(NewResultsModel(report), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m ResultsModel) Init() tea.Cmd {
	return nil
}

func (m ResultsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.details.Width = msg.Width - m.listWidth() - 3
		m.details.Height = msg.Height - 4
		m.details.SetContent(m.detailContent())
		m.ready = true
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
				m.details.SetContent(m.detailContent())
				m.details.GotoTop()
			}
		case "down", "j":
			if m.cursor < len(m.report.Components)-1 {
				m.cursor++
				m.details.SetContent(m.detailContent())
				m.details.GotoTop()
			}
		case "pgup", "b":
			m.details.HalfViewUp()
		case "pgdown", "f", " ":
			m.details.HalfViewDown()
		case "g":
			m.details.GotoTop()
		case "G":
			m.details.GotoBottom()
		}
	}

	var cmd tea.Cmd
	m.details, cmd = m.details.Update(msg)
	return m, cmd
}

func (m ResultsModel) listWidth() int {
	w := m.width / 3
	if w < 30 {
		w = 30
	}
	return w
}

func (m ResultsModel) selected() *resource.AnalysisResult {
	if m.cursor < 0 || m.cursor >= len(m.report.Components) {
		return nil
	}
	return &m.report.Components[m.cursor]
}

func (m ResultsModel) detailContent() string {
	sel := m.selected()
	if sel == nil {
		return "No components identified."
	}

	var b strings.Builder
	k := sel.Knowledge
	if k == nil {
		fmt.Fprintf(&b, "%s\n\nNo knowledge available for this component.\n", sel.Resource.Name)
		return b.String()
	}

	fmt.Fprintf(&b, "%s\n", resultsHeaderStyle.Render(k.ComponentName))
	fmt.Fprintf(&b, "%s\n", resultsDimStyle.Render(k.ComponentType))
	if k.Minimal {
		fmt.Fprintf(&b, "%s\n", resultsWarnStyle.Render("(built-in description; knowledge service was unavailable)"))
	}

	b.WriteString("\nArchitecture\n")
	b.WriteString(k.ArchitecturalOverview)
	b.WriteString("\n\nFunction\n")
	b.WriteString(k.FunctionalOverview)

	if len(k.Capabilities) > 0 {
		b.WriteString("\n\nCapabilities\n")
		for _, c := range k.Capabilities {
			fmt.Fprintf(&b, "  • %s\n", c)
		}
	}
	if len(k.RelatedServices) > 0 {
		b.WriteString("\nRelated services\n")
		for _, s := range k.RelatedServices {
			fmt.Fprintf(&b, "  • %s\n", s)
		}
	}
	fmt.Fprintf(&b, "\n%s\n", resultsDimStyle.Render("Resource: "+sel.Resource.ID))
	return b.String()
}

func (m ResultsModel) View() string {
	if !m.ready {
		return "Loading..."
	}

	title := resultsTitleStyle.Render(fmt.Sprintf("comp-scout: %d components", len(m.report.Components)))
	if n := len(m.report.Unclassified); n > 0 {
		title += resultsDimStyle.Render(fmt.Sprintf("  (%d unclassified)", n))
	}

	listHeight := m.height - 4
	var rows []string
	for i, c := range m.report.Components {
		name := c.Resource.Name
		if c.Knowledge != nil {
			name = c.Knowledge.ComponentName
		}
		line := truncate(name, m.listWidth()-4)
		if i == m.cursor {
			line = resultsSelectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		rows = append(rows, line)
	}
	rows = window(rows, m.cursor, listHeight)
	list := lipgloss.NewStyle().Width(m.listWidth()).Height(listHeight).Render(strings.Join(rows, "\n"))

	body := lipgloss.JoinHorizontal(lipgloss.Top, list, " │ ", m.details.View())
	help := resultsDimStyle.Render("↑/↓ select · pgup/pgdn scroll details · q quit")
	return lipgloss.JoinVertical(lipgloss.Left, title, "", body, help)
}

// window trims rows so the cursor stays visible in a fixed-height list.
func window(rows []string, cursor, height int) []string {
	if height <= 0 || len(rows) <= height {
		return rows
	}
	start := cursor - height/2
	if start < 0 {
		start = 0
	}
	if start+height > len(rows) {
		start = len(rows) - height
	}
	return rows[start : start+height]
}

func truncate(s string, max int) string {
	if max <= 3 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
