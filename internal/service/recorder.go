package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"KikenQR/internal/model"
	"KikenQR/internal/repository"
	pkgerrors "KikenQR/pkg/errors"
	"KikenQR/pkg/logger"
)

// SubmissionRecorder 写入打卡人与打卡记录。
// 字段取值逐个写入，中途失败不回滚，已写入的取值成为孤儿数据。
type SubmissionRecorder struct {
	data     repository.DataManager
	resolver *IdentityResolver
}

func NewSubmissionRecorder(data repository.DataManager, resolver *IdentityResolver) *SubmissionRecorder {
	return &SubmissionRecorder{data: data, resolver: resolver}
}

// CreateSubject 先乐观检查再创建；并发下由唯一索引兜底，两种情况都返回 DuplicateIdentifier
func (r *SubmissionRecorder) CreateSubject(ctx context.Context, operationToken, identifier string, entries []model.FieldEntry) (*model.ClockInEmployee, error) {
	existing, err := r.resolver.FindByIdentifier(ctx, operationToken, identifier)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("subject %d already registered: %w", existing.ID, pkgerrors.DuplicateIdentifier)
	}

	refs, err := r.writeValues(ctx, operationToken, entries)
	if err != nil {
		return nil, err
	}

	subject, err := r.data.CreateSubject(ctx, operationToken, identifier, refs)
	if err != nil {
		return nil, asNetworkError("create subject", err)
	}

	logger.ForOperation(operationToken).Info("Subject registered",
		zap.Int64("subject_id", subject.ID),
	)
	return subject, nil
}

// RecordEvent 每次调用都追加一条打卡记录
func (r *SubmissionRecorder) RecordEvent(ctx context.Context, operationToken, identifier string, entries []model.FieldEntry) (*model.ClockIn, error) {
	subject, err := r.resolver.FindByIdentifier(ctx, operationToken, identifier)
	if err != nil {
		return nil, err
	}
	if subject == nil {
		return nil, fmt.Errorf("identifier not registered: %w", pkgerrors.SubjectNotFound)
	}

	refs, err := r.writeValues(ctx, operationToken, entries)
	if err != nil {
		return nil, err
	}

	event, err := r.data.CreateCheckInEvent(ctx, operationToken, subject.ID, refs)
	if err != nil {
		return nil, asNetworkError("create clock-in", err)
	}
	return event, nil
}

// writeValues 按顺序写入，任一失败立即中止；ctx 取消时放弃剩余写入
func (r *SubmissionRecorder) writeValues(ctx context.Context, operationToken string, entries []model.FieldEntry) ([]model.FieldValueRef, error) {
	refs := make([]model.FieldValueRef, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("field %d: %w: %w", entry.FieldID, pkgerrors.FieldValueWriteError, err)
		}

		ref, err := r.data.CreateFieldValue(ctx, operationToken, entry)
		if err != nil {
			if len(refs) > 0 {
				logger.ForOperation(operationToken).Warn("Field value write failed, earlier values are orphaned",
					zap.Int("orphaned", len(refs)),
					zap.Error(err),
				)
			}
			return nil, fmt.Errorf("field %d: %w: %w", entry.FieldID, pkgerrors.FieldValueWriteError, err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

