package theme

import (
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/studyflow/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for section headers and table headings.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// CellStyle pads ordinary table cells.
var CellStyle = lipgloss.NewStyle().Padding(0, 1)

// DoneStyle dims completed tasks.
var DoneStyle = CellStyle.
	Foreground(ColorGray).
	Strikethrough(true)

// HelpStyle is used for hints and summary lines.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// BorderStyle provides a standard rounded border for panels.
var BorderStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder).
	Padding(0, 1)

// TypeStyle returns a color-coded style for a task type.
func TypeStyle(t model.TaskType) lipgloss.Style {
	base := CellStyle.Bold(true)

	switch t {
	case model.TaskTypeAssignment:
		return base.Foreground(ColorBlue)
	case model.TaskTypePrep:
		return base.Foreground(ColorMagenta)
	case model.TaskTypeQuiz:
		return base.Foreground(ColorOrange)
	case model.TaskTypeReading, model.TaskTypeStudy:
		return base.Foreground(ColorGreen)
	default:
		return base.Foreground(ColorGray)
	}
}

// SourceStyle returns a color-coded style for a task's provenance.
func SourceStyle(s model.TaskSource) lipgloss.Style {
	base := CellStyle

	switch s {
	case model.TaskSourceCanvas:
		return base.Foreground(ColorRed)
	case model.TaskSourceEmail:
		return base.Foreground(ColorGreen)
	default:
		return base.Foreground(ColorGray)
	}
}

// DueStyle colors a deadline by urgency: overdue, due within two days,
// or later.
func DueStyle(due, now time.Time) lipgloss.Style {
	switch {
	case due.Before(now):
		return CellStyle.Foreground(ColorRed).Bold(true)
	case due.Sub(now) <= 48*time.Hour:
		return CellStyle.Foreground(ColorYellow)
	default:
		return CellStyle
	}
}
