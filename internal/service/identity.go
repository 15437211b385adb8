package service

import (
	"context"
	"fmt"

	"KikenQR/internal/model"
	"KikenQR/internal/repository"
	pkgerrors "KikenQR/pkg/errors"
)

// IdentityResolver 按唯一字段取值查找已登记的打卡人，纯查询
type IdentityResolver struct {
	data repository.DataManager
}

func NewIdentityResolver(data repository.DataManager) *IdentityResolver {
	return &IdentityResolver{data: data}
}

// FindByIdentifier 精确匹配，未找到返回 (nil, nil)
func (r *IdentityResolver) FindByIdentifier(ctx context.Context, operationToken, identifier string) (*model.ClockInEmployee, error) {
	subject, err := r.data.FindSubjectByIdentifier(ctx, operationToken, identifier)
	if err != nil {
		return nil, asNetworkError("find subject", err)
	}
	return subject, nil
}

// asNetworkError 已带业务码的错误原样保留，其余归为 NetworkError
func asNetworkError(op string, err error) error {
	if _, ok := pkgerrors.As(err); ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, pkgerrors.NetworkError, err)
}
