package repository

import (
	"context"

	"KikenQR/internal/model"
)

// DataManager 打卡流程依赖的数据访问接口，所有方法以运营活动 token 定位租户数据
type DataManager interface {
	GetOperation(ctx context.Context, operationToken string) (*model.Operation, error)
	GetFieldSchema(ctx context.Context, operationToken string) ([]model.FieldDefinition, error)
	GetOperationAddress(ctx context.Context, operationToken string) (*model.Address, error)

	// FindSubjectByIdentifier 未找到时返回 (nil, nil)
	FindSubjectByIdentifier(ctx context.Context, operationToken, identifier string) (*model.ClockInEmployee, error)

	CreateFieldValue(ctx context.Context, operationToken string, entry model.FieldEntry) (model.FieldValueRef, error)
	CreateSubject(ctx context.Context, operationToken, identifier string, refs []model.FieldValueRef) (*model.ClockInEmployee, error)
	CreateCheckInEvent(ctx context.Context, operationToken string, subjectID int64, refs []model.FieldValueRef) (*model.ClockIn, error)
}
