package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestWorkflowError_IsKind(t *testing.T) {
	err := State("title_proposal", "p-1", "Pending", "Approved")
	if !errors.Is(err, ErrInvalidState) {
		t.Fatal("State 错误应能被 errors.Is(ErrInvalidState) 识别")
	}
	if errors.Is(err, ErrNotAuthorized) {
		t.Error("State 错误不应匹配 ErrNotAuthorized")
	}

	wrapped := fmt.Errorf("提交题目: %w", err)
	var we *WorkflowError
	if !errors.As(wrapped, &we) {
		t.Fatal("包装后仍应能取出 *WorkflowError")
	}
	if we.Expected != "Pending" || we.Actual != "Approved" {
		t.Errorf("期望 Pending/Approved，实际: %s/%s", we.Expected, we.Actual)
	}
}

func TestWorkflowError_Message(t *testing.T) {
	err := State("team_request", "r-9", "Pending", "Accepted")
	msg := err.Error()
	for _, part := range []string{"team_request", "r-9", "Pending", "Accepted"} {
		if !strings.Contains(msg, part) {
			t.Errorf("错误信息缺少 %q: %s", part, msg)
		}
	}

	plain := New(ErrNotFound, "", "")
	if plain.Error() != ErrNotFound.Error() {
		t.Errorf("无实体时应返回类别信息，实际: %s", plain.Error())
	}

	v := Validation("标题不能为空")
	if v.Error() != "标题不能为空" || !errors.Is(v, ErrValidation) {
		t.Errorf("Validation 错误不符合预期: %v", v)
	}
}

func TestKind(t *testing.T) {
	if Kind(New(ErrGroupFull, "group", "G1")) != ErrGroupFull {
		t.Error("应识别 WorkflowError 类别")
	}
	if Kind(fmt.Errorf("x: %w", ErrDeadlinePassed)) != ErrDeadlinePassed {
		t.Error("应识别被包装的哨兵错误")
	}
	if Kind(errors.New("db down")) != nil {
		t.Error("非流程错误应返回 nil")
	}
}
