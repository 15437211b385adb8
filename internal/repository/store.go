package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"

	"KikenQR/internal/model"
	pkgerrors "KikenQR/pkg/errors"
	"KikenQR/pkg/logger"
)

// SQLite 扩展错误码：SQLITE_CONSTRAINT_UNIQUE / SQLITE_CONSTRAINT_PRIMARYKEY
const (
	sqliteConstraintUnique     = 2067
	sqliteConstraintPrimaryKey = 1555
)

// Store 基于 gorm 的 DataManager 实现
type Store struct {
	db *gorm.DB
}

var _ DataManager = (*Store)(nil)

func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, pkgerrors.ErrDatabaseConnectionNil
	}
	return &Store{db: db}, nil
}

func (s *Store) GetOperation(ctx context.Context, operationToken string) (*model.Operation, error) {
	var op model.Operation
	err := s.db.WithContext(ctx).
		Where("token = ?", operationToken).
		First(&op).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("operation %q: %w", operationToken, pkgerrors.OperationNotFound)
		}
		return nil, fmt.Errorf("failed to load operation: %w", err)
	}
	return &op, nil
}

func (s *Store) GetFieldSchema(ctx context.Context, operationToken string) ([]model.FieldDefinition, error) {
	op, err := s.GetOperation(ctx, operationToken)
	if err != nil {
		return nil, err
	}

	var fields []model.FieldDefinition
	if err := s.db.WithContext(ctx).
		Where("operation_id = ?", op.ID).
		Order("position ASC").
		Order("id ASC").
		Find(&fields).Error; err != nil {
		return nil, fmt.Errorf("failed to load fields: %w", err)
	}
	return fields, nil
}

func (s *Store) GetOperationAddress(ctx context.Context, operationToken string) (*model.Address, error) {
	op, err := s.GetOperation(ctx, operationToken)
	if err != nil {
		return nil, err
	}
	return op.Address(), nil
}

func (s *Store) FindSubjectByIdentifier(ctx context.Context, operationToken, identifier string) (*model.ClockInEmployee, error) {
	op, err := s.GetOperation(ctx, operationToken)
	if err != nil {
		return nil, err
	}

	// 读主库：刚创建的打卡人必须立即可见
	var subject model.ClockInEmployee
	err = s.db.WithContext(ctx).
		Clauses(dbresolver.Write).
		Where("operation_id = ? AND identifier = ?", op.ID, identifier).
		First(&subject).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find subject: %w", err)
	}
	return &subject, nil
}

func (s *Store) CreateFieldValue(ctx context.Context, operationToken string, entry model.FieldEntry) (model.FieldValueRef, error) {
	op, err := s.GetOperation(ctx, operationToken)
	if err != nil {
		return model.FieldValueRef{}, err
	}

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&model.FieldDefinition{}).
		Where("id = ? AND operation_id = ?", entry.FieldID, op.ID).
		Count(&count).Error; err != nil {
		return model.FieldValueRef{}, fmt.Errorf("failed to check field: %w", err)
	}
	if count == 0 {
		return model.FieldValueRef{}, fmt.Errorf("field %d does not belong to operation %q", entry.FieldID, operationToken)
	}

	value := model.FieldValue{FieldID: entry.FieldID, Value: entry.Value}
	if err := s.db.WithContext(ctx).Create(&value).Error; err != nil {
		return model.FieldValueRef{}, fmt.Errorf("failed to create field value: %w", err)
	}

	return model.FieldValueRef{ID: value.ID, FieldID: value.FieldID}, nil
}

func (s *Store) CreateSubject(ctx context.Context, operationToken, identifier string, refs []model.FieldValueRef) (*model.ClockInEmployee, error) {
	op, err := s.GetOperation(ctx, operationToken)
	if err != nil {
		return nil, err
	}

	subject := &model.ClockInEmployee{OperationID: op.ID, Identifier: identifier}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(subject).Error; err != nil {
			return err
		}
		return attachValues(tx, refs, "clock_in_employee_id", subject.ID)
	})
	if err != nil {
		if isDuplicateKey(err) {
			return nil, fmt.Errorf("subject %q: %w", identifier, pkgerrors.DuplicateIdentifier)
		}
		return nil, fmt.Errorf("failed to create subject: %w", err)
	}

	logger.ForOperation(operationToken).Info("Clock-in subject created",
		zap.Int64("subject_id", subject.ID),
		zap.Int("field_values", len(refs)),
	)
	return subject, nil
}

func (s *Store) CreateCheckInEvent(ctx context.Context, operationToken string, subjectID int64, refs []model.FieldValueRef) (*model.ClockIn, error) {
	op, err := s.GetOperation(ctx, operationToken)
	if err != nil {
		return nil, err
	}

	event := &model.ClockIn{
		OperationID:       op.ID,
		ClockInEmployeeID: subjectID,
		Start:             time.Now().UTC(),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.ClockInEmployee{}).
			Where("id = ? AND operation_id = ?", subjectID, op.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("subject %d: %w", subjectID, pkgerrors.SubjectNotFound)
		}

		if err := tx.Create(event).Error; err != nil {
			return err
		}
		return attachValues(tx, refs, "clock_in_id", event.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create clock-in: %w", err)
	}
	return event, nil
}

// attachValues 把已写入的字段取值挂到所属记录上
// PurgeOrphanFieldValues 删除 before 之前写入、但没有挂到打卡人或打卡记录上的字段取值
func (s *Store) PurgeOrphanFieldValues(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Clauses(dbresolver.Write).
		Where("clock_in_employee_id IS NULL AND clock_in_id IS NULL AND created_at < ?", before).
		Delete(&model.FieldValue{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge orphan field values: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func attachValues(tx *gorm.DB, refs []model.FieldValueRef, column string, ownerID int64) error {
	if len(refs) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.ID)
	}

	return tx.Model(&model.FieldValue{}).
		Where("id IN ?", ids).
		Update(column, ownerID).Error
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	// modernc sqlite 的错误不经过 gorm 翻译
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		switch coded.Code() {
		case sqliteConstraintUnique, sqliteConstraintPrimaryKey:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
