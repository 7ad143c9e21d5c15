package service

import (
	"context"
	"errors"
	"strconv"

	"gorm.io/gorm"

	"upms-teamup/backend/internal/model"
	"upms-teamup/backend/internal/repository"
	pkgerrors "upms-teamup/backend/pkg/errors"
)

// Actor 当前操作主体，由认证中间件注入
type Actor struct {
	ID   string
	Role model.Role
}

// requireRole 角色白名单校验
// 未知角色一律拒绝
func requireRole(actor Actor, allowed ...model.Role) error {
	switch actor.Role {
	case model.RoleAdmin, model.RoleSupervisor, model.RoleStudent:
		for _, r := range allowed {
			if r == actor.Role {
				return nil
			}
		}
		return pkgerrors.New(pkgerrors.ErrNotAuthorized, string(actor.Role), actor.ID)
	default:
		return pkgerrors.New(pkgerrors.ErrNotAuthorized, "principal", actor.ID)
	}
}

// studentAccountOf 读取学生主体对应的账号
func studentAccountOf(ctx context.Context, repo *repository.Repository, actor Actor) (*model.StudentAccount, error) {
	if err := requireRole(actor, model.RoleStudent); err != nil {
		return nil, err
	}
	account, err := repo.Student.GetAccountByPrincipal(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.ErrNotFound, "student_account", actor.ID)
		}
		return nil, err
	}
	return account, nil
}

// groupOf 学生所在小组编号，未组队返回 InvalidState
func groupOf(account *model.StudentAccount) (string, error) {
	if !account.Grouped() {
		return "", pkgerrors.State("student_account", account.StudentID, "grouped", "ungrouped")
	}
	return *account.GroupCode, nil
}

// notFound 将 gorm.ErrRecordNotFound 转换为 NotFound
func notFound(err error, entity, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.ErrNotFound, entity, id)
	}
	return err
}

// constraint 将存储层唯一 / 外键冲突转换为 ConstraintViolation
func constraint(err error, entity, id string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, gorm.ErrForeignKeyViolated) {
		return &pkgerrors.WorkflowError{Kind: pkgerrors.ErrConstraintViolation, Entity: entity, ID: id, Msg: err.Error()}
	}
	return err
}

// isWorkflow 是否为已归类的流程错误
func isWorkflow(err error) bool {
	return pkgerrors.Kind(err) != nil
}

func isRecordNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
