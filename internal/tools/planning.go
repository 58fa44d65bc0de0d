package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/komorebi/internal/apperr"
	"github.com/starford/komorebi/internal/planning"
	"github.com/starford/komorebi/internal/review"
)

func (s *Server) registerPlanningTools() {
	s.register(mcp.NewTool("generate_review",
		mcp.WithDescription("產生回顧：day 更新今日筆記的日終回顧，week/month 產生週報或月報。"),
		mcp.WithString("period", mcp.Description("回顧期間（預設 day）"), mcp.Enum(review.Periods...)),
		mcp.WithString("date", mcp.Description("YYYY-MM-DD、YYYY-Www 或 YYYY-MM（預設今天）")),
		mcp.WithString("notes", mcp.Description("附加筆記")),
	), s.generateReview)

	s.register(mcp.NewTool("plan_today",
		mcp.WithDescription("建立今日的工作計畫（daily note）。"),
		mcp.WithString("highlight", mcp.Required(), mcp.Description("今日最重要的一件事")),
		mcp.WithArray("tasks", mcp.Description("今日計畫的任務"), mcp.Items(map[string]any{"type": "string"})),
	), s.planToday)

	s.register(mcp.NewTool("get_today",
		mcp.WithDescription("讀取今日的工作計畫。"),
	), s.getToday)

	s.register(mcp.NewTool("log_event",
		mcp.WithDescription("在今日筆記的重要事件區段記錄一筆事件。"),
		mcp.WithString("summary", mcp.Required(), mcp.Description("事件摘要")),
		mcp.WithString("type", mcp.Description("事件類型（預設 note）"), mcp.Enum(planning.EventTypes...)),
		mcp.WithString("details", mcp.Description("補充說明")),
	), s.logEvent)
}

type reviewInput struct {
	Period string `json:"period"`
	Date   string `json:"date"`
	Notes  string `json:"notes"`
}

func (in reviewInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Period, validation.By(func(any) error {
			if _, err := review.ParsePeriod(in.Period); err != nil {
				return errors.New("無效的期間：" + in.Period + "（可用：day, week, month）")
			}
			return nil
		})),
	)
}

func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func (s *Server) generateReview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in reviewInput
	if res := bind(req, &in); res != nil {
		return res, nil
	}
	period, _ := review.ParsePeriod(in.Period)
	res, err := s.Reviews.Generate(ctx, review.Request{
		Period: period,
		Date:   in.Date,
		Notes:  in.Notes,
	})
	var missing *review.MissingNoteError
	switch {
	case errors.As(err, &missing) && missing.Today:
		return mcp.NewToolResultError(fmt.Sprintf("今日 (%s) 尚未建立計畫。請先使用 plan_today 建立今日筆記。", missing.Label)), nil
	case errors.As(err, &missing):
		return mcp.NewToolResultError(fmt.Sprintf("%s 沒有每日筆記（%s），無法產生日終回顧。", missing.Label, missing.Path)), nil
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("找不到回顧所需的資料：" + err.Error()), nil
	case errors.Is(err, apperr.ErrInvalidArgument):
		return mcp.NewToolResultError("日期格式錯誤：" + err.Error()), nil
	case err != nil:
		return mcp.NewToolResultError("產生回顧失敗：" + err.Error()), nil
	}
	return mcp.NewToolResultText(res.Summary), nil
}

type planInput struct {
	Highlight string   `json:"highlight"`
	Tasks     []string `json:"tasks"`
}

func (in planInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Highlight, validation.Required.Error("請提供今日的 Highlight（最重要的一件事）。")),
	)
}

func (s *Server) planToday(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in planInput
	if res := bind(req, &in); res != nil {
		return res, nil
	}
	plan, err := s.Planner.PlanToday(in.Highlight, in.Tasks)
	switch {
	case errors.Is(err, apperr.ErrAlreadyExists):
		_, label, _, _ := s.Planner.Today()
		return mcp.NewToolResultError(fmt.Sprintf("今日計畫已存在：%s\n使用 get_today 查看，或手動刪除後重新建立。",
			planning.DailyPath(label))), nil
	case errors.Is(err, apperr.ErrInvalidArgument):
		return mcp.NewToolResultError("請提供今日的 Highlight（最重要的一件事）。"), nil
	case err != nil:
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(`## 今日計畫已建立

**日期**: %s (%s)
**Highlight**: %s
**Active 專案**: %d 個
**檔案**: %s

記得專注於 Highlight，保持 30%% 緩衝時間！`, plan.Date, plan.Weekday, plan.Highlight, plan.ActiveProjects, plan.Path)), nil
}

func (s *Server) getToday(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, label, ok, err := s.Planner.Today()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !ok {
		return mcp.NewToolResultText(fmt.Sprintf("今日 (%s) 尚未建立計畫。使用 plan_today 建立。", label)), nil
	}
	return mcp.NewToolResultText(content), nil
}

type eventInput struct {
	Type    string `json:"type"`
	Summary string `json:"summary"`
	Details string `json:"details"`
}

func (in eventInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Summary, validation.Required.Error("請提供事件摘要。")),
		validation.Field(&in.Type, validation.In(anySlice(planning.EventTypes)...).
			Error("無效的事件類型："+in.Type+"（可用："+strings.Join(planning.EventTypes, ", ")+"）")),
	)
}

func (s *Server) logEvent(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in eventInput
	if res := bind(req, &in); res != nil {
		return res, nil
	}
	path, err := s.Planner.LogEvent(in.Type, in.Summary, in.Details)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("已記錄 %s：%s\n檔案：%s",
		planning.ParseEventType(in.Type).Title(), strings.TrimSpace(in.Summary), path)), nil
}
