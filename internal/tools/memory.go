package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/komorebi/internal/apperr"
	"github.com/starford/komorebi/internal/memory"
)

func (s *Server) registerMemoryTools() {
	s.register(mcp.NewTool("get_memory",
		mcp.WithDescription("讀取長期記憶（使用者偏好或專案事實）。"),
		mcp.WithString("category", mcp.Description("類別（預設 user）"), mcp.Enum(memory.Categories...)),
		mcp.WithString("key", mcp.Description("指定鍵；省略則回傳整個類別")),
	), s.getMemory)

	s.register(mcp.NewTool("remember",
		mcp.WithDescription("記住一筆使用者偏好或專案事實。"),
		mcp.WithString("category", mcp.Required(), mcp.Enum(memory.Categories...)),
		mcp.WithString("key", mcp.Required()),
		mcp.WithString("value", mcp.Required()),
	), s.remember)

	s.register(mcp.NewTool("load_skill",
		mcp.WithDescription("載入技能指引。當需要執行特定任務（如專案管理、任務追蹤）時，先載入對應 skill 獲取詳細指引。"),
		mcp.WithString("name", mcp.Required(), mcp.Description("要載入的技能名稱")),
	), s.loadSkill)
}

var categoryRule = validation.In(anySlice(memory.Categories)...).
	Error("無效的類別（可用：" + strings.Join(memory.Categories, ", ") + "）")

type memoryInput struct {
	Category string `json:"category"`
	Key      string `json:"key"`
}

func (in memoryInput) Validate() error {
	return validation.ValidateStruct(&in, validation.Field(&in.Category, categoryRule))
}

func (s *Server) getMemory(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in memoryInput
	if res := bind(req, &in); res != nil {
		return res, nil
	}
	if in.Category == "" {
		in.Category = memory.CategoryUser
	}
	v, ok, err := s.Memory.Get(in.Category, in.Key)
	switch {
	case err != nil:
		return mcp.NewToolResultError(err.Error()), nil
	case !ok && in.Key != "":
		return mcp.NewToolResultText(fmt.Sprintf("找不到記憶：%s/%s", in.Category, in.Key)), nil
	case !ok:
		return mcp.NewToolResultText(fmt.Sprintf("類別 %s 中沒有記憶。", in.Category)), nil
	}
	title := in.Category
	if in.Key != "" {
		title += "/" + in.Key
	}
	return mcp.NewToolResultText("## " + title + "\n\n```yaml\n" + memory.Format(v) + "```"), nil
}

type rememberInput struct {
	Category string `json:"category"`
	Key      string `json:"key"`
	Value    string `json:"value"`
}

func (in rememberInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Category, validation.Required.Error("請提供類別。"), categoryRule),
		validation.Field(&in.Key, validation.Required.Error("請提供 key 和 value。")),
		validation.Field(&in.Value, validation.Required.Error("請提供 key 和 value。")),
	)
}

func (s *Server) remember(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in rememberInput
	if res := bind(req, &in); res != nil {
		return res, nil
	}
	if err := s.Memory.Remember(in.Category, in.Key, in.Value); err != nil {
		return mcp.NewToolResultError("記憶寫入失敗：" + err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("已記住：[%s] %s = %s", in.Category, in.Key, in.Value)), nil
}

type skillInput struct {
	Name string `json:"name"`
}

func (in skillInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required.Error("請提供技能名稱。")),
	)
}

func (s *Server) loadSkill(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in skillInput
	if res := bind(req, &in); res != nil {
		return res, nil
	}
	if s.Skills == nil {
		return mcp.NewToolResultError("技能系統尚未設定。"), nil
	}
	content, err := s.Skills.Load(in.Name)
	if errors.Is(err, apperr.ErrNotFound) {
		avail := "(無)"
		if names := s.Skills.Names(); len(names) > 0 {
			avail = strings.Join(names, ", ")
		}
		return mcp.NewToolResultError(fmt.Sprintf("找不到技能：%s\n可用的技能：%s", in.Name, avail)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(content), nil
}
