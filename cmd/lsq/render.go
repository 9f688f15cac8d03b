package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/agent"
	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/llm"
)

var (
	accent    = lipgloss.Color("#f97316")
	success   = lipgloss.Color("#22c55e")
	failure   = lipgloss.Color("#ef4444")
	secondary = lipgloss.Color("#888888")
	dim       = lipgloss.Color("#5a5a70")

	answerStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(accent).Padding(0, 1)
	errorStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(failure).Foreground(failure).Padding(0, 1)
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	labelStyle   = lipgloss.NewStyle().Foreground(secondary)
	sourceStyle  = lipgloss.NewStyle().Foreground(success)
	dimStyle     = lipgloss.NewStyle().Foreground(dim)
)

func renderAnswer(result agent.Result) string {
	var b strings.Builder
	if llm.IsError(result.Answer) {
		b.WriteString(errorStyle.Render(result.Answer))
	} else {
		b.WriteString(answerStyle.Render(strings.TrimSpace(result.Answer)))
	}
	if len(result.SourceURLs) > 0 {
		b.WriteString("\n")
		b.WriteString(headingStyle.Render("Sources"))
		for i, url := range result.SourceURLs {
			b.WriteString(fmt.Sprintf("\n %s %s", labelStyle.Render(fmt.Sprintf("[%d]", i+1)), sourceStyle.Render(url)))
		}
	}
	if result.Trace != "" {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("query: ") + dimStyle.Render(result.Trace))
	}
	return b.String()
}

func renderEvent(eventType string, payload map[string]any) string {
	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", key, payload[key]))
	}
	line := headingStyle.Render(eventType)
	if len(parts) > 0 {
		line += " " + dimStyle.Render(strings.Join(parts, " "))
	}
	return line
}

func renderProvider(spec llm.ProviderSpec, hasKey bool) string {
	var b strings.Builder
	b.WriteString(headingStyle.Render(spec.ID))
	b.WriteString(" " + labelStyle.Render(spec.Name))
	switch {
	case spec.Anonymous:
		b.WriteString(" " + dimStyle.Render("(no key needed)"))
	case hasKey:
		b.WriteString(" " + sourceStyle.Render("(key configured)"))
	default:
		b.WriteString(" " + dimStyle.Render("(no key)"))
	}
	if len(spec.TextModels) > 0 {
		b.WriteString("\n  " + labelStyle.Render("text:   ") + strings.Join(spec.TextModels, ", "))
	}
	if len(spec.VisionModels) > 0 {
		b.WriteString("\n  " + labelStyle.Render("vision: ") + strings.Join(spec.VisionModels, ", "))
	}
	return b.String()
}
