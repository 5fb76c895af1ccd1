package sync

import (
	"time"

	"github.com/nhle/studyflow/internal/model"
)

// prepHour is the evening-before deadline for prep work.
const prepHour = 20

// ApplyPrepDeadlines moves the due date of prep tasks to 20:00 on the day
// before class when their course meets on the due weekday. Weekdays and
// the resulting wall clock are evaluated in loc. Tasks are modified in
// place and returned.
func ApplyPrepDeadlines(tasks []model.Task, courses []model.Course, loc *time.Location) []model.Task {
	if len(courses) == 0 {
		return tasks
	}

	for i := range tasks {
		t := &tasks[i]
		if t.Type != model.TaskTypePrep {
			continue
		}
		course, ok := model.FindCourse(courses, t.Course)
		if !ok {
			continue
		}

		due := t.DueDate.In(loc)
		if !course.MeetsOn(due.Weekday()) {
			continue
		}
		prev := due.AddDate(0, 0, -1)
		t.DueDate = time.Date(prev.Year(), prev.Month(), prev.Day(), prepHour, 0, 0, 0, loc)
	}
	return tasks
}
