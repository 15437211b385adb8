// Package repotest 提供内存版 DataManager，供 service 与 workflow 的测试使用
package repotest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"KikenQR/internal/model"
	pkgerrors "KikenQR/pkg/errors"
)

type MemoryStore struct {
	mu sync.Mutex

	operations map[string]*model.Operation
	fields     map[string][]model.FieldDefinition

	Subjects []model.ClockInEmployee
	Values   []model.FieldValue
	Events   []model.ClockIn

	// 故障注入
	SchemaErr       error
	FindErr         error
	FieldValueErr   error
	FailOnFieldID   int64 // 非 0 时仅该字段写入失败
	SubjectErr      error
	EventErr        error
	BeforeSubject   func(identifier string) // 模拟其他会话抢先登记
	FindCalls       int
	AddressCalls    int
	SubjectCalls    int
	FieldValueCalls int

	nextID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		operations: map[string]*model.Operation{},
		fields:     map[string][]model.FieldDefinition{},
	}
}

// AddOperation 注册运营活动及其字段，自动分配 ID
func (m *MemoryStore) AddOperation(op model.Operation, fields ...model.FieldDefinition) *model.Operation {
	m.mu.Lock()
	defer m.mu.Unlock()

	if op.ID == 0 {
		op.ID = m.id()
	}
	for i := range fields {
		fields[i].OperationID = op.ID
		if fields[i].ID == 0 {
			fields[i].ID = m.id()
		}
	}
	m.operations[op.Token] = &op
	m.fields[op.Token] = fields
	return &op
}

// SeedSubject 直接写入一个已登记的打卡人
func (m *MemoryStore) SeedSubject(operationToken, identifier string) model.ClockInEmployee {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertSubject(m.operations[operationToken].ID, identifier)
}

// ValuesOwnedBySubject 返回挂在打卡人上的取值
func (m *MemoryStore) ValuesOwnedBySubject(subjectID int64) []model.FieldValue {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.FieldValue
	for _, v := range m.Values {
		if v.ClockInEmployeeID != nil && *v.ClockInEmployeeID == subjectID {
			out = append(out, v)
		}
	}
	return out
}

// ValuesOwnedByEvent 返回挂在打卡记录上的取值
func (m *MemoryStore) ValuesOwnedByEvent(eventID int64) []model.FieldValue {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.FieldValue
	for _, v := range m.Values {
		if v.ClockInID != nil && *v.ClockInID == eventID {
			out = append(out, v)
		}
	}
	return out
}

// Writes 已发生的写入总数
func (m *MemoryStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Values) + len(m.Subjects) + len(m.Events)
}

func (m *MemoryStore) GetOperation(ctx context.Context, operationToken string) (*model.Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	op, ok := m.operations[operationToken]
	if !ok {
		return nil, fmt.Errorf("operation %q: %w", operationToken, pkgerrors.OperationNotFound)
	}
	cp := *op
	return &cp, nil
}

func (m *MemoryStore) GetFieldSchema(ctx context.Context, operationToken string) ([]model.FieldDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SchemaErr != nil {
		return nil, m.SchemaErr
	}
	fields, ok := m.fields[operationToken]
	if !ok {
		return nil, fmt.Errorf("operation %q: %w", operationToken, pkgerrors.OperationNotFound)
	}
	out := make([]model.FieldDefinition, len(fields))
	copy(out, fields)
	return out, nil
}

func (m *MemoryStore) GetOperationAddress(ctx context.Context, operationToken string) (*model.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AddressCalls++
	op, ok := m.operations[operationToken]
	if !ok {
		return nil, fmt.Errorf("operation %q: %w", operationToken, pkgerrors.OperationNotFound)
	}
	return op.Address(), nil
}

func (m *MemoryStore) FindSubjectByIdentifier(ctx context.Context, operationToken, identifier string) (*model.ClockInEmployee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FindCalls++
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	op, ok := m.operations[operationToken]
	if !ok {
		return nil, fmt.Errorf("operation %q: %w", operationToken, pkgerrors.OperationNotFound)
	}
	for _, s := range m.Subjects {
		if s.OperationID == op.ID && s.Identifier == identifier {
			cp := s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) CreateFieldValue(ctx context.Context, operationToken string, entry model.FieldEntry) (model.FieldValueRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FieldValueCalls++
	if m.FieldValueErr != nil && (m.FailOnFieldID == 0 || m.FailOnFieldID == entry.FieldID) {
		return model.FieldValueRef{}, m.FieldValueErr
	}

	v := model.FieldValue{FieldID: entry.FieldID, Value: entry.Value}
	v.ID = m.id()
	m.Values = append(m.Values, v)
	return model.FieldValueRef{ID: v.ID, FieldID: v.FieldID}, nil
}

func (m *MemoryStore) CreateSubject(ctx context.Context, operationToken, identifier string, refs []model.FieldValueRef) (*model.ClockInEmployee, error) {
	if m.BeforeSubject != nil {
		m.BeforeSubject(identifier)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.SubjectCalls++
	if m.SubjectErr != nil {
		return nil, m.SubjectErr
	}
	op, ok := m.operations[operationToken]
	if !ok {
		return nil, fmt.Errorf("operation %q: %w", operationToken, pkgerrors.OperationNotFound)
	}
	for _, s := range m.Subjects {
		if s.OperationID == op.ID && s.Identifier == identifier {
			return nil, fmt.Errorf("subject %q: %w", identifier, pkgerrors.DuplicateIdentifier)
		}
	}

	s := m.insertSubject(op.ID, identifier)
	m.attach(refs, func(v *model.FieldValue) { v.ClockInEmployeeID = &s.ID })
	return &s, nil
}

func (m *MemoryStore) CreateCheckInEvent(ctx context.Context, operationToken string, subjectID int64, refs []model.FieldValueRef) (*model.ClockIn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.EventErr != nil {
		return nil, m.EventErr
	}
	op, ok := m.operations[operationToken]
	if !ok {
		return nil, fmt.Errorf("operation %q: %w", operationToken, pkgerrors.OperationNotFound)
	}

	e := model.ClockIn{OperationID: op.ID, ClockInEmployeeID: subjectID, Start: time.Now().UTC()}
	e.ID = m.id()
	m.Events = append(m.Events, e)
	m.attach(refs, func(v *model.FieldValue) { v.ClockInID = &e.ID })
	return &e, nil
}

func (m *MemoryStore) insertSubject(operationID int64, identifier string) model.ClockInEmployee {
	s := model.ClockInEmployee{OperationID: operationID, Identifier: identifier}
	s.ID = m.id()
	m.Subjects = append(m.Subjects, s)
	return s
}

func (m *MemoryStore) attach(refs []model.FieldValueRef, link func(v *model.FieldValue)) {
	for _, ref := range refs {
		for i := range m.Values {
			if m.Values[i].ID == ref.ID {
				link(&m.Values[i])
			}
		}
	}
}

func (m *MemoryStore) id() int64 {
	m.nextID++
	return m.nextID
}
