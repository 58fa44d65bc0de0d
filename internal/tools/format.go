package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// Resource URIs.
const (
	TaskFormatURI = "komorebi://task-format"
	SkillsURI     = "komorebi://skills"
)

// TaskFormat describes the tasks.md layout the parser understands.
const TaskFormat = `# Komorebi Task Format

Every project lives in ` + "`projects/<name>/`" + ` with a ` + "`project.md`" + `
(YAML header + free-form body) and an optional ` + "`tasks.md`" + `.

## tasks.md

` + "```" + `markdown
## 進行中
- [ ] Write the parser @today #go

## 待處理
- [ ] Add search #index

## 已完成
- [x] Set up CI #infra (2026-10-10)
` + "```" + `

## Rules

1. Sections are ` + "`## 進行中`" + ` / ` + "`## In Progress`" + `, ` + "`## 待處理`" + ` / ` + "`## Pending`" + ` / ` + "`## Todo`" + `,
   and ` + "`## 已完成`" + ` / ` + "`## Completed`" + ` / ` + "`## Done`" + ` (case-insensitive).
2. A checked box ` + "`[x]`" + ` always counts as completed, whatever the section.
3. Tasks before the first known section count as pending; other headings
   leave the current section unchanged.
4. ` + "`#tag`" + ` words become tags; ` + "`@today`" + ` marks a task for today's list.
5. A trailing ` + "`(YYYY-MM-DD)`" + ` is the completion date used by weekly and monthly reviews.
   Completed tasks without it are left out of those reports.
6. Lines that are not tasks are ignored.

## project.md header

` + "```" + `yaml
---
name: komorebi          # defaults to the folder name
type: software          # defaults to software
status: active          # active | paused | completed | archived
priority: 1             # lower sorts first; default 999
repo: ~/code/komorebi   # used by sync_project and reviews
progress: 40            # optional override of the derived percent
updated: 2026-10-15
---
` + "```" + `
`

func (s *Server) readTaskFormat(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      TaskFormatURI,
			MIMEType: "text/markdown",
			Text:     TaskFormat,
		},
	}, nil
}

func (s *Server) readSkillCatalogue(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	text := "目前沒有可用的技能。"
	if s.Skills != nil {
		if p := s.Skills.Prompt(); p != "" {
			text = p
		}
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      SkillsURI,
			MIMEType: "text/markdown",
			Text:     text,
		},
	}, nil
}
