package workflow

import (
	stderrors "errors"

	"KikenQR/internal/model"
	"KikenQR/internal/schema"
	pkgerrors "KikenQR/pkg/errors"
)

// Snapshot 会话的可序列化状态，保存在 Redis 中
type Snapshot struct {
	OperationToken string                  `json:"operation_token"`
	Operation      *model.Operation        `json:"operation,omitempty"`
	Fields         []model.FieldDefinition `json:"fields,omitempty"`
	State          State                   `json:"state"`
	Step1          map[int64]string        `json:"step1,omitempty"`
	Step2          map[int64]string        `json:"step2,omitempty"`
	Identifier     string                  `json:"identifier,omitempty"`
	Step1Entries   []model.FieldEntry      `json:"step1_entries,omitempty"`
	LastError      *StoredError            `json:"last_error,omitempty"`
	Event          *Event                  `json:"event,omitempty"`
}

// StoredError 错误的可序列化形式
type StoredError struct {
	Code    string           `json:"code,omitempty"`
	Message string           `json:"message"`
	Fields  map[int64]string `json:"fields,omitempty"`
}

type restoredError struct {
	msg string
	def pkgerrors.Definition
}

func (e *restoredError) Error() string { return e.msg }
func (e *restoredError) Unwrap() error { return e.def }

func (w *Workflow) Snapshot() Snapshot {
	snap := Snapshot{
		OperationToken: w.token,
		Operation:      w.operation,
		State:          w.state,
		Step1:          copyValues(w.step1),
		Step2:          copyValues(w.step2),
		Identifier:     w.identifier,
		Step1Entries:   w.step1Entries,
		LastError:      storeError(w.lastErr),
		Event:          w.event,
	}
	if w.schema != nil {
		snap.Fields = w.schema.Fields
	}
	return snap
}

// Restore 从快照恢复，字段快照不会重新拉取
func Restore(deps Deps, snap Snapshot) *Workflow {
	w := New(deps)
	w.token = snap.OperationToken
	w.operation = snap.Operation
	if snap.Operation != nil {
		w.schema = schema.New(snap.Fields)
	}
	if snap.State != "" {
		w.state = snap.State
	}
	w.step1 = copyValues(snap.Step1)
	w.step2 = copyValues(snap.Step2)
	w.identifier = snap.Identifier
	w.step1Entries = snap.Step1Entries
	w.lastErr = restoreError(snap.LastError)
	w.event = snap.Event
	return w
}

func storeError(err error) *StoredError {
	if err == nil {
		return nil
	}

	stored := &StoredError{Message: err.Error()}
	if def, ok := pkgerrors.As(err); ok {
		stored.Code = def.Code
	}
	var fieldErrs pkgerrors.FieldErrors
	if stderrors.As(err, &fieldErrs) {
		stored.Fields = map[int64]string(fieldErrs)
	}
	return stored
}

func restoreError(stored *StoredError) error {
	if stored == nil {
		return nil
	}
	if len(stored.Fields) > 0 {
		return pkgerrors.FieldErrors(stored.Fields)
	}
	if stored.Code == "" {
		return stderrors.New(stored.Message)
	}
	return &restoredError{msg: stored.Message, def: pkgerrors.Get(stored.Code)}
}

func copyValues(in map[int64]string) schema.Values {
	out := make(schema.Values, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
