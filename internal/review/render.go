package review

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/starford/komorebi/internal/models"
)

func split(data []projectData) (map[string][]models.Task, map[string][]string) {
	completed := make(map[string][]models.Task)
	commits := make(map[string][]string)
	for _, d := range data {
		if len(d.completed) > 0 {
			completed[d.label] = d.completed
		}
		if len(d.commits) > 0 {
			commits[d.label] = d.commits
		}
	}
	return completed, commits
}

func countAll[V any](m map[string][]V) int {
	n := 0
	for _, v := range m {
		n += len(v)
	}
	return n
}

func sortByPriority(data []projectData) {
	sort.SliceStable(data, func(i, j int) bool {
		return data[i].project.Priority < data[j].project.Priority
	})
}

func taskLine(t models.Task) string {
	if t.CompletedDate != nil {
		return fmt.Sprintf("- [x] %s (%s)", t.Text, t.CompletedDate.Format(time.DateOnly))
	}
	return "- [x] " + t.Text
}

func renderDaySection(commits map[string][]string, notes string, now time.Time) string {
	var b strings.Builder
	b.WriteString("### Git Commits\n")
	if len(commits) == 0 {
		b.WriteString("- (今日無 commits)\n")
	}
	for _, name := range sortedKeys(commits) {
		for _, c := range commits[name] {
			fmt.Fprintf(&b, "- %s: %s\n", name, c)
		}
	}

	b.WriteString("\n### 筆記\n")
	if n := strings.TrimSpace(notes); n != "" {
		b.WriteString(n + "\n")
	} else {
		b.WriteString("(無)\n")
	}

	fmt.Fprintf(&b, "\n### 更新時間\n%s\n", now.Format("15:04"))
	return b.String()
}

func renderDaySummary(res *Result, commits map[string][]string) string {
	var b strings.Builder
	b.WriteString("## 日終回顧完成\n\n")
	fmt.Fprintf(&b, "**專案 commits**: %d 個專案\n", res.Projects)
	fmt.Fprintf(&b, "**總 commits**: %d 筆\n", res.Commits)
	fmt.Fprintf(&b, "**檔案已更新**: %s\n", res.Path)
	if len(commits) > 0 {
		b.WriteString("\n")
		for _, name := range sortedKeys(commits) {
			for _, c := range commits[name] {
				fmt.Fprintf(&b, "- %s: %s\n", name, c)
			}
		}
	}
	b.WriteString("\n辛苦了，好好休息！")
	return b.String()
}

func renderWeek(rng Range, completed map[string][]models.Task, commits map[string][]string, questions []string, notes string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# 週回顧 %s (%s ~ %s)\n\n", rng.Label,
		rng.Start.Format(time.DateOnly), rng.End.Format(time.DateOnly))

	b.WriteString("## 摘要\n")
	fmt.Fprintf(&b, "- 完成任務: %d\n", countAll(completed))
	fmt.Fprintf(&b, "- Commits: %d\n", countAll(commits))
	fmt.Fprintf(&b, "- 有進展的專案: %d\n\n", len(union(completed, commits)))

	b.WriteString("## 完成的任務\n")
	if len(completed) == 0 {
		b.WriteString("- (本週沒有完成的任務)\n")
	}
	for _, name := range sortedKeys(completed) {
		fmt.Fprintf(&b, "\n### %s\n", name)
		for _, t := range completed[name] {
			b.WriteString(taskLine(t) + "\n")
		}
	}
	b.WriteString("\n")

	b.WriteString("## Git 活動\n")
	if len(commits) == 0 {
		b.WriteString("- (本週沒有 commits)\n")
	}
	for _, name := range sortedKeys(commits) {
		list := commits[name]
		fmt.Fprintf(&b, "\n### %s (%d commits)\n", name, len(list))
		shown := list
		if len(shown) > commitDisplayLimit {
			shown = shown[:commitDisplayLimit]
		}
		for _, c := range shown {
			fmt.Fprintf(&b, "- %s\n", c)
		}
		if extra := len(list) - len(shown); extra > 0 {
			fmt.Fprintf(&b, "- …還有 %d 筆\n", extra)
		}
	}
	b.WriteString("\n")

	b.WriteString("## 反思問題\n")
	for i, q := range questions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, q)
	}
	b.WriteString("\n")

	b.WriteString("## 筆記\n")
	if n := strings.TrimSpace(notes); n != "" {
		b.WriteString(n + "\n")
	} else {
		b.WriteString("- \n")
	}
	return b.String()
}

func renderMonth(rng Range, data []projectData, completed map[string][]models.Task, notes string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# 月回顧 %s\n\n", rng.Label)

	b.WriteString("## 專案進度\n")
	b.WriteString("| 專案 | 狀態 | 任務 | Commits |\n")
	b.WriteString("|------|------|------|---------|\n")
	for _, d := range data {
		fmt.Fprintf(&b, "| %s | %s %s | %d/%d (%d%%) | %d |\n",
			d.label, d.project.Status.Icon(), d.project.Status,
			d.stats.Completed, d.stats.Total, d.stats.Percent(), len(d.commits))
	}
	b.WriteString("\n")

	b.WriteString("## 本月成就\n")
	if len(completed) == 0 {
		b.WriteString("- (本月沒有完成的任務)\n")
	}
	for _, d := range data {
		list := completed[d.label]
		if len(list) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n### %s\n", d.label)
		for _, t := range list {
			b.WriteString(taskLine(t) + "\n")
		}
	}
	b.WriteString("\n")

	// Filled in by hand; never generated.
	b.WriteString("## 學習筆記\n- \n\n")
	b.WriteString("## 下月目標\n- \n")

	if n := strings.TrimSpace(notes); n != "" {
		fmt.Fprintf(&b, "\n## 筆記\n%s\n", n)
	}
	return b.String()
}

func renderReportSummary(res *Result, rng Range) string {
	title := "週回顧"
	if res.Period == Month {
		title = "月回顧"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## %s已產生: %s\n\n", title, res.Label)
	fmt.Fprintf(&b, "**期間**: %s ~ %s\n", rng.Start.Format(time.DateOnly), rng.End.Format(time.DateOnly))
	fmt.Fprintf(&b, "**完成任務**: %d\n", res.CompletedTasks)
	fmt.Fprintf(&b, "**Commits**: %d\n", res.Commits)
	fmt.Fprintf(&b, "**檔案**: %s", res.Path)
	return b.String()
}

func union(a map[string][]models.Task, b map[string][]string) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}
