// Package models defines the domain types shared across komorebi packages.
package models

import "time"

// Bucket is the section a task is classified into.
type Bucket string

const (
	BucketInProgress Bucket = "in_progress"
	BucketPending    Bucket = "pending"
	BucketCompleted  Bucket = "completed"
)

// Task is one parsed checkbox line of a task document.
type Task struct {
	Text      string   `json:"text"`
	Completed bool     `json:"completed"`
	Tags      []string `json:"tags,omitempty"`
	IsToday   bool     `json:"is_today"`
	// CompletedDate is set only when the line carried a "(YYYY-MM-DD)" suffix.
	CompletedDate *time.Time `json:"completed_date,omitempty"`
}

// CompletedWithin reports whether the task has a completion date inside
// [start, end], compared by calendar day.
func (t Task) CompletedWithin(start, end time.Time) bool {
	if t.CompletedDate == nil {
		return false
	}
	d := t.CompletedDate.Format(time.DateOnly)
	return d >= start.Format(time.DateOnly) && d <= end.Format(time.DateOnly)
}

// TaskList holds the three task buckets in document order.
type TaskList struct {
	InProgress []Task `json:"in_progress"`
	Pending    []Task `json:"pending"`
	Completed  []Task `json:"completed"`
}

// Stats reduces the list to counts.
func (l TaskList) Stats() Stats {
	s := Stats{
		InProgress: len(l.InProgress),
		Pending:    len(l.Pending),
		Completed:  len(l.Completed),
	}
	s.Total = s.InProgress + s.Pending + s.Completed
	return s
}

// Stats are derived task counts; never persisted.
type Stats struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	InProgress int `json:"in_progress"`
	Pending    int `json:"pending"`
}

// Percent is floor(100*completed/total), 0 for an empty list.
func (s Stats) Percent() int {
	if s.Total == 0 {
		return 0
	}
	return 100 * s.Completed / s.Total
}

// Markdown renders the task as a checkbox line with its tags and date.
func (t Task) Markdown() string {
	box := "[ ]"
	if t.Completed {
		box = "[x]"
	}
	line := "- " + box + " " + t.Text
	for _, tag := range t.Tags {
		line += " #" + tag
	}
	if t.CompletedDate != nil {
		line += " (" + t.CompletedDate.Format(time.DateOnly) + ")"
	}
	return line
}
