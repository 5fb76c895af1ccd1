package model

import (
	"fmt"
	"strings"
	"time"
)

// PlaceholderCourseTime is the meeting time given to courses discovered
// by sync, before the user fills in a real schedule.
const PlaceholderCourseTime = "00:00"

// Course is a class the user attends. Days holds weekday indices
// (0 = Sunday ... 6 = Saturday) and Time is a naive HH:MM wall clock.
type Course struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"-" db:"user_id"`
	Name   string `json:"name" db:"name"`
	Days   []int  `json:"days" db:"-"`
	Time   string `json:"time" db:"time"`
}

// MeetsOn reports whether the course is scheduled on the given weekday.
func (c Course) MeetsOn(day time.Weekday) bool {
	for _, d := range c.Days {
		if d == int(day) {
			return true
		}
	}
	return false
}

// FindCourse returns the first course whose name equals name,
// ignoring case.
func FindCourse(courses []Course, name string) (Course, bool) {
	for _, c := range courses {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Course{}, false
}

// ParseClock validates an HH:MM string.
func ParseClock(s string) error {
	if _, err := time.Parse("15:04", s); err != nil {
		return fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	return nil
}
