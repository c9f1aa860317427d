package main

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// ------------------------------ Styles -----------------------------------------

var (
	badge           = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	portOpenStyle   = badge.Background(lipgloss.Color("2"))
	portClosedStyle = badge.Background(lipgloss.Color("1"))
	txIdleStyle     = badge.Background(lipgloss.Color("8"))
	txLitStyle      = badge.Foreground(lipgloss.Color("0")).Background(lipgloss.Color("214"))
	consoleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func defaultTableStyles() table.Styles {
	s := table.Styles{}
	s.Header = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).Bold(true)
	s.Selected = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Bold(true)
	return s
}
