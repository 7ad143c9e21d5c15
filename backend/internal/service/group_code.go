package service

import (
	"context"
	"fmt"
	"time"

	"upms-teamup/backend/internal/repository"
	pkgerrors "upms-teamup/backend/pkg/errors"
)

// GroupCodeGenerator 小组编号生成器
type GroupCodeGenerator interface {
	Next(ctx context.Context, groups repository.GroupRepository, at time.Time) (string, error)
}

// maxCodeAttempts 单次生成最多尝试的序号数
const maxCodeAttempts = 50

type dailySequenceGenerator struct {
	prefix string
}

// NewGroupCodeGenerator 前缀 + yymmdd + 当日四位序号，例如 G2610180001
func NewGroupCodeGenerator(prefix string) GroupCodeGenerator {
	return &dailySequenceGenerator{prefix: prefix}
}

// Next 从当日计数器取号；计数器之前已存在的编号直接跳过
func (g *dailySequenceGenerator) Next(ctx context.Context, groups repository.GroupRepository, at time.Time) (string, error) {
	day := at.UTC().Truncate(24 * time.Hour)

	for i := 0; i < maxCodeAttempts; i++ {
		seq, err := groups.NextDailySequence(ctx, day)
		if err != nil {
			return "", err
		}
		code := fmt.Sprintf("%s%s%04d", g.prefix, day.Format("060102"), seq)
		exists, err := groups.Exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", &pkgerrors.WorkflowError{
		Kind:   pkgerrors.ErrConstraintViolation,
		Entity: "group",
		Msg:    "小组编号生成失败，请重试",
	}
}
