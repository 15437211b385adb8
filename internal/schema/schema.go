package schema

import (
	"context"
	"fmt"
	"sort"

	"KikenQR/internal/model"
	pkgerrors "KikenQR/pkg/errors"
)

// Values 按字段 ID 记录用户输入的原始值
type Values map[int64]string

// Source 字段定义的数据来源
type Source interface {
	GetFieldSchema(ctx context.Context, operationToken string) ([]model.FieldDefinition, error)
}

// Schema 一个运营活动的字段快照，会话期间不变
type Schema struct {
	Fields []model.FieldDefinition
}

// New 复制字段并稳定排序，唯一字段排在最前
func New(fields []model.FieldDefinition) *Schema {
	sorted := make([]model.FieldDefinition, len(fields))
	copy(sorted, fields)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].IsUnique && !sorted[j].IsUnique
	})
	return &Schema{Fields: sorted}
}

// Load 拉取字段定义，任何失败都归为 SchemaUnavailable
func Load(ctx context.Context, src Source, operationToken string) (*Schema, error) {
	fields, err := src.GetFieldSchema(ctx, operationToken)
	if err != nil {
		return nil, fmt.Errorf("failed to load field schema: %w: %w", pkgerrors.SchemaUnavailable, err)
	}

	for _, f := range fields {
		if !f.Type.Valid() {
			return nil, fmt.Errorf("field %d has unsupported type %q: %w", f.ID, f.Type, pkgerrors.SchemaUnavailable)
		}
	}

	return New(fields), nil
}

// Integrity 唯一字段必须恰好一个
func (s *Schema) Integrity() error {
	count := 0
	for _, f := range s.Fields {
		if f.IsUnique {
			count++
		}
	}
	if count != 1 {
		return fmt.Errorf("found %d unique fields: %w", count, pkgerrors.SchemaIntegrityError)
	}
	return nil
}

// UniqueField 返回第一个唯一字段
func (s *Schema) UniqueField() (model.FieldDefinition, bool) {
	for _, f := range s.Fields {
		if f.IsUnique {
			return f, true
		}
	}
	return model.FieldDefinition{}, false
}

// AlwaysFill 第一步字段：唯一字段 + allwaysFill
func (s *Schema) AlwaysFill() []model.FieldDefinition {
	out := make([]model.FieldDefinition, 0, len(s.Fields))
	for _, f := range s.Fields {
		if f.Step1() {
			out = append(out, f)
		}
	}
	return out
}

// OneTime 第二步字段：仅在首次登记时填写
func (s *Schema) OneTime() []model.FieldDefinition {
	out := make([]model.FieldDefinition, 0, len(s.Fields))
	for _, f := range s.Fields {
		if !f.Step1() {
			out = append(out, f)
		}
	}
	return out
}

func (s *Schema) HasOneTimeFields() bool {
	for _, f := range s.Fields {
		if !f.Step1() {
			return true
		}
	}
	return false
}

// Contains 字段集合中是否包含该 ID
func Contains(fields []model.FieldDefinition, id int64) bool {
	for _, f := range fields {
		if f.ID == id {
			return true
		}
	}
	return false
}
