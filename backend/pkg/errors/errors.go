package errors

import (
	"errors"
	"fmt"
)

// ── 流程错误类别 ──
//
// 所有状态迁移失败都归入以下类别之一，调用方使用 errors.Is 判断类别，
// 使用 errors.As 取得 *WorkflowError 中的实体与状态信息。

var (
	ErrNotAuthorized        = errors.New("无权执行该操作")
	ErrInvalidState         = errors.New("当前状态不允许该操作")
	ErrAlreadyGrouped       = errors.New("学生已加入小组")
	ErrRequesterUnavailable = errors.New("发起人已加入其他小组，请求已自动拒绝")
	ErrDuplicatePending     = errors.New("已存在相同的待处理组队请求")
	ErrConstraintViolation  = errors.New("违反数据一致性约束")
	ErrDeadlinePassed       = errors.New("已超过截止时间")
	ErrNotEligible          = errors.New("小组不在该活动的提交范围内")
	ErrFileRequired         = errors.New("该活动要求上传文件")
	ErrFileTypeInvalid      = errors.New("该活动仅接受 PDF 文件")

	ErrNotFound     = errors.New("记录不存在")
	ErrValidation   = errors.New("参数校验失败")
	ErrWindowClosed = errors.New("选题窗口未开放")
	ErrGroupFull    = errors.New("小组人数已达上限")
	ErrTitleLocked  = errors.New("小组题目已最终确定")
)

// ErrOptimisticLock 并发写入冲突且重试次数已用尽
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// WorkflowError 携带上下文的流程错误
type WorkflowError struct {
	Kind     error
	Entity   string
	ID       string
	Expected string
	Actual   string
	Msg      string
}

func (e *WorkflowError) Error() string {
	msg := e.Kind.Error()
	if e.Msg != "" {
		msg = e.Msg
	}
	switch {
	case e.Expected != "" || e.Actual != "":
		return fmt.Sprintf("%s: %s(%s) 期望 %s, 实际 %s", msg, e.Entity, e.ID, e.Expected, e.Actual)
	case e.Entity != "":
		return fmt.Sprintf("%s: %s(%s)", msg, e.Entity, e.ID)
	default:
		return msg
	}
}

func (e *WorkflowError) Unwrap() error { return e.Kind }

// New 创建只带类别与实体的错误
func New(kind error, entity, id string) *WorkflowError {
	return &WorkflowError{Kind: kind, Entity: entity, ID: id}
}

// State 创建状态不符错误
func State(entity, id, expected, actual string) *WorkflowError {
	return &WorkflowError{
		Kind:     ErrInvalidState,
		Entity:   entity,
		ID:       id,
		Expected: expected,
		Actual:   actual,
	}
}

// Validation 创建参数校验错误
func Validation(msg string) *WorkflowError {
	return &WorkflowError{Kind: ErrValidation, Msg: msg}
}

// Kind 返回错误所属的类别；非流程错误返回 nil
func Kind(err error) error {
	var we *WorkflowError
	if errors.As(err, &we) {
		return we.Kind
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

var kinds = []error{
	ErrNotAuthorized,
	ErrInvalidState,
	ErrAlreadyGrouped,
	ErrRequesterUnavailable,
	ErrDuplicatePending,
	ErrConstraintViolation,
	ErrDeadlinePassed,
	ErrNotEligible,
	ErrFileRequired,
	ErrFileTypeInvalid,
	ErrNotFound,
	ErrValidation,
	ErrWindowClosed,
	ErrGroupFull,
	ErrTitleLocked,
	ErrOptimisticLock,
}
