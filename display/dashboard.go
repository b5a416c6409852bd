// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

package display

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Metrics is one dashboard refresh.
type Metrics struct {
	FPS      int
	Session  string
	Counters []Counter
	Gauges   []Gauge
}

// Counter is a monotonically increasing total.
type Counter struct {
	Name  string
	Value uint64
}

// Gauge is a bounded level, such as queue depth against capacity.
type Gauge struct {
	Name     string
	Value    int
	Capacity int
}

type dashboardKeys struct {
	Quit key.Binding
}

var defaultDashboardKeys = dashboardKeys{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

var (
	dashboardTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	dashboardLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Width(18)
	dashboardValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Bold(true)
	dashboardHelpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	dashboardBoxStyle   = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("238")).
				Padding(0, 1)

	gaugeLow  = lipgloss.Color("42")
	gaugeMid  = lipgloss.Color("214")
	gaugeHigh = lipgloss.Color("196")
)

// gaugeWidth is the bar length in cells.
const gaugeWidth = 30

type refreshMsg time.Time

// Dashboard is a terminal view of receiver counters, refreshed by
// polling a metrics function.
type Dashboard struct {
	title    string
	interval time.Duration
	provider func() Metrics
	keys     dashboardKeys

	metrics Metrics
	width   int
}

// NewDashboard returns a dashboard polling provider every interval.
func NewDashboard(title string, interval time.Duration, provider func() Metrics) Dashboard {
	return Dashboard{
		title:    title,
		interval: interval,
		provider: provider,
		keys:     defaultDashboardKeys,
		metrics:  provider(),
	}
}

func (model Dashboard) refresh() tea.Cmd {
	return tea.Tick(model.interval, func(now time.Time) tea.Msg {
		return refreshMsg(now)
	})
}

// Init starts the refresh ticker.
func (model Dashboard) Init() tea.Cmd {
	return model.refresh()
}

// Update handles refresh ticks, resizes, and quit keys.
func (model Dashboard) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case refreshMsg:
		model.metrics = model.provider()
		return model, model.refresh()
	case tea.WindowSizeMsg:
		model.width = message.Width
		return model, nil
	case tea.KeyMsg:
		if key.Matches(message, model.keys.Quit) {
			return model, tea.Quit
		}
	}
	return model, nil
}

// View renders the current metrics.
func (model Dashboard) View() string {
	var builder strings.Builder

	header := fmt.Sprintf("%s  %s fps", model.title, dashboardValueStyle.Render(fmt.Sprint(model.metrics.FPS)))
	builder.WriteString(dashboardTitleStyle.Render(header))
	builder.WriteString("\n")
	if model.metrics.Session != "" {
		builder.WriteString(dashboardHelpStyle.Render("session " + model.metrics.Session))
		builder.WriteString("\n")
	}
	builder.WriteString("\n")

	for _, counter := range model.metrics.Counters {
		builder.WriteString(dashboardLabelStyle.Render(counter.Name))
		builder.WriteString(dashboardValueStyle.Render(fmt.Sprint(counter.Value)))
		builder.WriteString("\n")
	}
	if len(model.metrics.Gauges) > 0 {
		builder.WriteString("\n")
	}
	for _, gauge := range model.metrics.Gauges {
		builder.WriteString(dashboardLabelStyle.Render(gauge.Name))
		builder.WriteString(renderGauge(gauge, gaugeWidth))
		builder.WriteString(fmt.Sprintf(" %d/%d", gauge.Value, gauge.Capacity))
		builder.WriteString("\n")
	}

	builder.WriteString("\n")
	builder.WriteString(dashboardHelpStyle.Render(model.keys.Quit.Help().Key + " " + model.keys.Quit.Help().Desc))

	box := dashboardBoxStyle
	if model.width > 4 {
		box = box.Width(model.width - 2)
	}
	return box.Render(builder.String())
}

// renderGauge draws a bar width cells wide, coloured by fill level.
func renderGauge(gauge Gauge, width int) string {
	filled := 0
	if gauge.Capacity > 0 {
		filled = min(max(gauge.Value*width/gauge.Capacity, 0), width)
	}
	colour := gaugeLow
	switch {
	case filled*10 >= width*9:
		colour = gaugeHigh
	case filled*2 >= width:
		colour = gaugeMid
	}
	bar := lipgloss.NewStyle().Foreground(colour).Render(strings.Repeat("█", filled))
	return bar + dashboardHelpStyle.Render(strings.Repeat("░", width-filled))
}

// RunDashboard runs model on the terminal until the user quits or ctx
// ends.
func RunDashboard(ctx context.Context, model Dashboard) error {
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	if err != nil && ctx.Err() != nil && errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
