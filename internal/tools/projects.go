package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/komorebi/internal/apperr"
	"github.com/starford/komorebi/internal/models"
	"github.com/starford/komorebi/internal/project"
)

func (s *Server) registerProjectTools() {
	s.register(mcp.NewTool("list_projects",
		mcp.WithDescription("列出所有專案，含狀態與任務進度。"),
	), s.listProjects)

	s.register(mcp.NewTool("show_project",
		mcp.WithDescription("顯示專案的 project.md、tasks.md 與資料夾內容。"),
		mcp.WithString("name", mcp.Required(), mcp.Description("專案名稱（資料夾名稱，不分大小寫）")),
	), s.showProject)

	s.register(mcp.NewTool("get_today_tasks",
		mcp.WithDescription("列出所有專案中標記 @today 的任務，以及其他進行中的任務。"),
	), s.getTodayTasks)

	s.register(mcp.NewTool("update_project_status",
		mcp.WithDescription("更新專案狀態。"),
		mcp.WithString("name", mcp.Required(), mcp.Description("專案名稱")),
		mcp.WithString("status", mcp.Required(), mcp.Description("新狀態"), mcp.Enum(statusNames()...)),
	), s.updateProjectStatus)

	s.register(mcp.NewTool("sync_project",
		mcp.WithDescription("分析專案的程式庫，更新 project.md 的目標、技術棧、進度與阻礙。"),
		mcp.WithString("name", mcp.Required(), mcp.Description("專案名稱")),
		mcp.WithBoolean("force", mcp.Description("強制完整初始化分析（預設 false）")),
	), s.syncProject)

	s.register(mcp.NewTool("search_tasks",
		mcp.WithDescription("跨專案搜尋任務文字或標籤（以 # 開頭只搜尋標籤）。"),
		mcp.WithString("query", mcp.Required(), mcp.Description("搜尋字串")),
		mcp.WithNumber("limit", mcp.Description("最多回傳筆數（預設 20）")),
	), s.searchTasks)
}

func statusNames() []string {
	out := make([]string, len(models.Statuses))
	for i, st := range models.Statuses {
		out[i] = string(st)
	}
	return out
}

// projectNotFound names the missing project and lists the valid ones.
func (s *Server) projectNotFound(name string) *mcp.CallToolResult {
	avail := "(無)"
	if names := s.Projects.Names(); len(names) > 0 {
		avail = strings.Join(names, ", ")
	}
	return mcp.NewToolResultError(fmt.Sprintf("找不到專案：%s\n可用的專案：%s", name, avail))
}

type nameInput struct {
	Name string `json:"name"`
}

func (in nameInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required.Error("請提供專案名稱。")),
	)
}

func (s *Server) listProjects(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summaries, err := s.Projects.Summaries()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(summaries) == 0 {
		return mcp.NewToolResultText("目前沒有任何專案。"), nil
	}
	var b strings.Builder
	b.WriteString("## 專案列表\n\n")
	for _, p := range summaries {
		fmt.Fprintf(&b, "- %s **%s** (%s) | %d/%d (%d%%)\n",
			p.Status.Icon(), p.Name, p.Status, p.Stats.Completed, p.Stats.Total, p.DisplayProgress())
	}
	return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
}

func (s *Server) showProject(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in nameInput
	if res := bind(req, &in); res != nil {
		return res, nil
	}
	ref, ok := s.Projects.Resolve(in.Name)
	if !ok {
		return s.projectNotFound(in.Name), nil
	}

	store := s.Projects.Store()
	head, err := store.Read(ref.Path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString(strings.TrimRight(string(head), "\n"))
	if body, err := store.Read(ref.TasksPath()); err == nil {
		fmt.Fprintf(&b, "\n\n---\n\n## %s\n\n%s", project.TasksFile, strings.TrimRight(string(body), "\n"))
	}
	if entries, err := s.Projects.Files(ref); err == nil && len(entries) > 0 {
		b.WriteString("\n\n---\n\n## 資料夾內容\n\n")
		for _, e := range entries {
			if e.IsDir {
				fmt.Fprintf(&b, "- %s/\n", e.Name)
			} else {
				fmt.Fprintf(&b, "- %s\n", e.Name)
			}
		}
	}
	return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
}

func (s *Server) getTodayTasks(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summaries, err := s.Projects.Summaries()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var today, rest strings.Builder
	for _, p := range summaries {
		list, err := s.Projects.Tasks(project.Ref{Dir: p.Dir, Path: p.Path})
		if err != nil {
			s.Logger.Warn("today tasks: read", "project", p.Dir, "error", err)
			continue
		}
		var marked, others []models.Task
		for _, t := range list.InProgress {
			if t.IsToday {
				marked = append(marked, t)
			} else {
				others = append(others, t)
			}
		}
		for _, t := range list.Pending {
			if t.IsToday {
				marked = append(marked, t)
			}
		}
		writeGroup(&today, p.Dir, marked)
		writeGroup(&rest, p.Dir, others)
	}

	var b strings.Builder
	b.WriteString("## 今日任務 (@today)\n\n")
	if today.Len() == 0 {
		b.WriteString("沒有標記 @today 的任務。\n")
	} else {
		b.WriteString(today.String())
	}
	if rest.Len() > 0 {
		b.WriteString("\n## 其他進行中\n\n")
		b.WriteString(rest.String())
	}
	return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
}

func writeGroup(b *strings.Builder, name string, list []models.Task) {
	if len(list) == 0 {
		return
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	fmt.Fprintf(b, "### %s\n", name)
	for _, t := range list {
		b.WriteString(t.Markdown() + "\n")
	}
}

type statusInput struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

func (in statusInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required.Error("請提供專案名稱。")),
		validation.Field(&in.Status, validation.Required.Error("請提供新狀態。")),
	)
}

func (s *Server) updateProjectStatus(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in statusInput
	if res := bind(req, &in); res != nil {
		return res, nil
	}
	change, err := s.Projects.UpdateStatus(in.Name, in.Status)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return s.projectNotFound(in.Name), nil
	case errors.Is(err, apperr.ErrInvalidArgument):
		return mcp.NewToolResultError(fmt.Sprintf("無效的狀態：%s\n有效狀態：%s",
			in.Status, strings.Join(statusNames(), ", "))), nil
	case err != nil:
		return mcp.NewToolResultError("更新失敗：" + err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("已更新 **%s** 狀態：%s → %s", change.Project, change.Old, change.New)), nil
}

type syncInput struct {
	Name  string `json:"name"`
	Force bool   `json:"force"`
}

func (in syncInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required.Error("請提供專案名稱。")),
	)
}

func (s *Server) syncProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in syncInput
	if res := bind(req, &in); res != nil {
		return res, nil
	}
	if _, ok := s.Projects.Resolve(in.Name); !ok {
		return s.projectNotFound(in.Name), nil
	}

	res, err := s.Syncer.Sync(ctx, in.Name, in.Force)
	if err != nil {
		var fe *apperr.FormatError
		switch {
		case errors.As(err, &fe):
			return mcp.NewToolResultError("分析結果無法解析（" + fe.Reason + "），原始輸出如下：\n\n" + fe.Raw), nil
		case errors.Is(err, apperr.ErrAnalysisFailed):
			return mcp.NewToolResultError("程式庫分析失敗：" + err.Error()), nil
		default:
			return mcp.NewToolResultError("同步失敗：" + err.Error()), nil
		}
	}

	updated := "無變更"
	if len(res.Updated) > 0 {
		updated = strings.Join(res.Updated, ", ")
	}
	return mcp.NewToolResultText(fmt.Sprintf("## 已同步 %s（%s 模式）\n\n**Repo**: %s\n**更新區段**: %s",
		res.Project, res.Mode, res.Repo, updated)), nil
}

type searchInput struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (in searchInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Query, validation.Required.Error("請提供搜尋字串。")),
		validation.Field(&in.Limit, validation.Min(0), validation.Max(200)),
	)
}

func (s *Server) searchTasks(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in searchInput
	if res := bind(req, &in); res != nil {
		return res, nil
	}
	if s.Index == nil {
		return mcp.NewToolResultError("任務索引未啟用。"), nil
	}
	if in.Limit == 0 {
		in.Limit = 20
	}
	hits, err := s.Index.Search(in.Query, in.Limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(hits) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("沒有符合「%s」的任務。", in.Query)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## 搜尋結果：%s（%d 筆）\n\n", in.Query, len(hits))
	for _, h := range hits {
		t := models.Task{Text: h.Text, Tags: h.Tags, Completed: h.Bucket == models.BucketCompleted}
		fmt.Fprintf(&b, "- **%s** [%s] %s", h.Project, h.Bucket, strings.TrimPrefix(t.Markdown(), "- "))
		if h.IsToday {
			b.WriteString(" @today")
		}
		if h.CompletedDate != "" {
			fmt.Fprintf(&b, " (%s)", h.CompletedDate)
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
}
