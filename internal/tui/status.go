package tui

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

type Status struct {
	chain    []string
	statuses map[string]string
	err      error
}

func NewStatus() *Status {
	return &Status{statuses: make(map[string]string)}
}

func (s *Status) Update(msg tea.Msg) (*Status, tea.Cmd) {
	switch msg := msg.(type) {
	case providersMsg:
		s.chain = msg.chain
		s.statuses = msg.statuses
		s.err = nil
	case providersErrMsg:
		s.err = msg.err
	}
	return s, nil
}

func (s *Status) View(width, height int, active bool) string {
	var sb strings.Builder
	sb.WriteString("Providers\n\n")
	if s.err != nil {
		sb.WriteString(fmt.Sprintf("unavailable: %v\n", s.err))
	} else if len(s.statuses) == 0 {
		sb.WriteString("loading...\n")
	} else {
		names := make([]string, 0, len(s.statuses))
		for name := range s.statuses {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			marker := "?"
			switch s.statuses[name] {
			case "up":
				marker = "●"
			case "down":
				marker = "✗"
			}
			sb.WriteString(fmt.Sprintf("%s %s\n", marker, name))
		}
		if len(s.chain) > 0 {
			sb.WriteString("\nChain: " + strings.Join(s.chain, " → "))
		}
	}
	style := StatusPanelStyle
	if !active {
		style = style.BorderForeground(MutedBorder)
	}
	return style.Width(width).Height(height).Render(sb.String())
}
