// Package tasks parses Markdown task documents into bucketed task records.
package tasks

import (
	"regexp"
	"strings"
	"time"

	"github.com/starford/komorebi/internal/models"
)

const todayMarker = "@today"

var (
	taskRe = regexp.MustCompile(`^\s*-\s*\[([ xX])\]\s+(.*)$`)
	dateRe = regexp.MustCompile(`\((\d{4}-\d{2}-\d{2})\)\s*$`)
	tagRe  = regexp.MustCompile(`#(\S+)`)
	wsRe   = regexp.MustCompile(`\s+`)
)

var sectionAliases = map[string]models.Bucket{
	"進行中":         models.BucketInProgress,
	"in progress": models.BucketInProgress,
	"待處理":         models.BucketPending,
	"pending":     models.BucketPending,
	"todo":        models.BucketPending,
	"已完成":         models.BucketCompleted,
	"completed":   models.BucketCompleted,
	"done":        models.BucketCompleted,
}

// BucketFor maps a "## " heading title onto a bucket.
func BucketFor(heading string) (models.Bucket, bool) {
	b, ok := sectionAliases[strings.ToLower(strings.TrimSpace(heading))]
	return b, ok
}

// Parse classifies every task line of text. It never fails: lines that are
// neither headings nor tasks are skipped.
func Parse(text string) models.TaskList {
	var list models.TaskList
	current := models.BucketPending

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(line, "## ") {
			if b, ok := BucketFor(line[3:]); ok {
				current = b
			}
			continue
		}
		task, ok := ParseLine(line)
		if !ok {
			continue
		}
		bucket := current
		if task.Completed {
			bucket = models.BucketCompleted
		}
		switch bucket {
		case models.BucketInProgress:
			list.InProgress = append(list.InProgress, task)
		case models.BucketCompleted:
			list.Completed = append(list.Completed, task)
		default:
			list.Pending = append(list.Pending, task)
		}
	}
	return list
}

// ParseLine parses a single "- [ ] text" line.
func ParseLine(line string) (models.Task, bool) {
	m := taskRe.FindStringSubmatch(line)
	if m == nil {
		return models.Task{}, false
	}
	task := models.Task{Completed: m[1] != " "}
	text := m[2]

	seen := make(map[string]struct{})
	for _, tm := range tagRe.FindAllStringSubmatch(text, -1) {
		if _, dup := seen[tm[1]]; dup {
			continue
		}
		seen[tm[1]] = struct{}{}
		task.Tags = append(task.Tags, tm[1])
	}
	text = tagRe.ReplaceAllString(text, "")

	if strings.Contains(text, todayMarker) {
		task.IsToday = true
		text = strings.ReplaceAll(text, todayMarker, "")
	}

	// The date suffix is matched after markers are gone, so trailing tags
	// do not hide it.
	if dm := dateRe.FindStringSubmatchIndex(text); dm != nil {
		raw := text[dm[2]:dm[3]]
		if d, err := time.ParseInLocation(time.DateOnly, raw, time.Local); err == nil {
			task.CompletedDate = &d
			text = text[:dm[0]]
		}
	}

	task.Text = strings.TrimSpace(wsRe.ReplaceAllString(text, " "))
	return task, true
}

// CompletedWithin returns the completed tasks dated inside [start, end].
// Tasks without a completion date are left out.
func CompletedWithin(list models.TaskList, start, end time.Time) []models.Task {
	var out []models.Task
	for _, t := range list.Completed {
		if t.CompletedWithin(start, end) {
			out = append(out, t)
		}
	}
	return out
}
