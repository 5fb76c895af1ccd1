package theme

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/nhle/studyflow/internal/model"
)

// DueLayout is how deadlines are printed in the terminal.
const DueLayout = "Mon Jan 2 15:04"

var taskHeaders = []string{"", "Due", "Course", "Title", "Type", "Source"}

const (
	colCheck = iota
	colDue
	colCourse
	colTitle
	colType
	colSource
)

// TaskTable renders tasks as a bordered table. Deadlines are shown in loc
// and colored relative to now.
func TaskTable(tasks []model.Task, now time.Time, loc *time.Location) string {
	if len(tasks) == 0 {
		return HelpStyle.Render("No tasks.")
	}

	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		check := "[ ]"
		if t.Completed {
			check = "[x]"
		}
		rows = append(rows, []string{
			check,
			t.DueDate.In(loc).Format(DueLayout),
			t.Course,
			t.Title,
			string(t.Type),
			string(t.Source),
		})
	}

	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorBorder)).
		Headers(taskHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return HeaderStyle
			}
			t := tasks[row]
			if t.Completed {
				return DoneStyle
			}
			switch col {
			case colDue:
				return DueStyle(t.DueDate, now)
			case colType:
				return TypeStyle(t.Type)
			case colSource:
				return SourceStyle(t.Source)
			}
			return CellStyle
		})

	return tbl.Render()
}

// TaskCard renders a single task for review prompts.
func TaskCard(t model.Task, loc *time.Location) string {
	body := fmt.Sprintf("%s\n%s  %s\n%s",
		lipgloss.NewStyle().Bold(true).Render(t.Title),
		TypeStyle(t.Type).Render(string(t.Type)),
		t.Course,
		HelpStyle.Render(fmt.Sprintf("due %s · from %s", t.DueDate.In(loc).Format(DueLayout), t.Source)),
	)
	return BorderStyle.Render(body)
}
