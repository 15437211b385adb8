// Package workflow 实现二维码打卡的三步流程：
// 第一步填写每次必填字段，未登记的人进入第二步补充一次性字段，第三步为确认。
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"KikenQR/internal/geofence"
	"KikenQR/internal/model"
	"KikenQR/internal/repository"
	"KikenQR/internal/schema"
	pkgerrors "KikenQR/pkg/errors"
	"KikenQR/pkg/logger"
	"KikenQR/pkg/metrics"
)

type State string

const (
	StateAlwaysFill   State = "step1_always_fill"
	StateRegistration State = "step2_registration"
	StateConfirmed    State = "step3_confirmed"
)

type Resolver interface {
	FindByIdentifier(ctx context.Context, operationToken, identifier string) (*model.ClockInEmployee, error)
}

type Recorder interface {
	CreateSubject(ctx context.Context, operationToken, identifier string, entries []model.FieldEntry) (*model.ClockInEmployee, error)
	RecordEvent(ctx context.Context, operationToken, identifier string, entries []model.FieldEntry) (*model.ClockIn, error)
}

type Geofence interface {
	ResolveAddress(ctx context.Context, addr *model.Address) (geofence.Coordinates, error)
	CheckProximity(ctx context.Context, provider geofence.PositionProvider, origin geofence.Coordinates, radiusMeters float64) (bool, error)
}

type Deps struct {
	Data     repository.DataManager
	Resolver Resolver
	Recorder Recorder
	Geofence Geofence
	Locale   string
}

// Event 确认时记录的打卡结果
type Event struct {
	ClockInID  int64     `json:"clock_in_id"`
	SubjectID  int64     `json:"subject_id"`
	NewSubject bool      `json:"new_subject"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Workflow 单个会话的状态机，非并发安全，由调用方保证串行
type Workflow struct {
	deps Deps

	token     string
	operation *model.Operation
	schema    *schema.Schema

	state        State
	step1        schema.Values
	step2        schema.Values
	identifier   string
	step1Entries []model.FieldEntry

	lastErr error
	event   *Event
}

func New(deps Deps) *Workflow {
	w := &Workflow{deps: deps}
	w.reset()
	return w
}

func (w *Workflow) reset() {
	w.operation = nil
	w.schema = nil
	w.state = StateAlwaysFill
	w.step1 = schema.Values{}
	w.step2 = schema.Values{}
	w.identifier = ""
	w.step1Entries = nil
	w.lastErr = nil
	w.event = nil
}

// Start 加载运营活动与字段快照。唯一字段数量不对时仍然进入第一步，
// 错误记在 LastError 中，提交第一步时才返回。
// 加载失败时保持原状态不变，只记录错误。
func (w *Workflow) Start(ctx context.Context, operationToken string) error {
	op, err := w.deps.Data.GetOperation(ctx, operationToken)
	if err != nil {
		if _, ok := pkgerrors.As(err); !ok {
			err = fmt.Errorf("load operation: %w: %w", pkgerrors.SchemaUnavailable, err)
		}
		return w.fail(err)
	}

	sch, err := schema.Load(ctx, w.deps.Data, operationToken)
	if err != nil {
		return w.fail(err)
	}

	w.reset()
	w.token = operationToken
	w.operation = op
	w.schema = sch

	if err := sch.Integrity(); err != nil {
		logger.ForOperation(operationToken).Warn("Operation schema is not usable for clock-in",
			zap.Error(err),
		)
		w.lastErr = err
	}
	return nil
}

// Restart 完全重置：重新加载字段与运营活动，清空草稿
func (w *Workflow) Restart(ctx context.Context) error {
	return w.Start(ctx, w.token)
}

// SubmitStep1 position 仅在开启地理围栏时读取
func (w *Workflow) SubmitStep1(ctx context.Context, values schema.Values, position geofence.PositionProvider) (err error) {
	defer func() { metrics.RecordSubmission(ctx, "step1", outcome(err)) }()

	if w.state != StateAlwaysFill {
		return w.fail(fmt.Errorf("submit step 1 in %s: %w", w.state, pkgerrors.InvalidStep))
	}
	if w.schema == nil {
		return w.fail(fmt.Errorf("no schema loaded: %w", pkgerrors.SchemaUnavailable))
	}

	fields := w.schema.AlwaysFill()
	merge(w.step1, values, fields)

	if err := w.schema.Integrity(); err != nil {
		return w.fail(err)
	}
	if err := schema.Validate(fields, w.step1); err != nil {
		return w.fail(err)
	}
	entries := schema.Normalize(fields, w.step1, w.deps.Locale)

	if w.operation.GeofenceEnabled() {
		if err := w.checkGeofence(ctx, position); err != nil {
			return w.fail(err)
		}
	}

	unique, _ := w.schema.UniqueField()
	identifier, ok := schema.ValueOf(entries, unique.ID)
	if !ok || identifier == "" {
		return w.fail(fmt.Errorf("identifier field %d has no value: %w", unique.ID, pkgerrors.SchemaIntegrityError))
	}

	subject, err := w.deps.Resolver.FindByIdentifier(ctx, w.token, identifier)
	if err != nil {
		return w.fail(err)
	}
	if subject != nil {
		return w.recordEvent(ctx, identifier, entries, false)
	}
	if !w.schema.HasOneTimeFields() {
		return w.createAndConfirm(ctx, identifier, entries, entries)
	}

	w.identifier = identifier
	w.step1Entries = entries
	w.state = StateRegistration
	w.lastErr = nil
	return nil
}

// SubmitStep2 打卡人登记全部字段，打卡记录只带第一步的取值
func (w *Workflow) SubmitStep2(ctx context.Context, values schema.Values) (err error) {
	defer func() { metrics.RecordSubmission(ctx, "step2", outcome(err)) }()

	if w.state != StateRegistration {
		return w.fail(fmt.Errorf("submit step 2 in %s: %w", w.state, pkgerrors.InvalidStep))
	}

	fields := w.schema.OneTime()
	merge(w.step2, values, fields)

	if err := schema.Validate(fields, w.step2); err != nil {
		return w.fail(err)
	}

	all := make(schema.Values, len(w.step1)+len(w.step2))
	for id, v := range w.step1 {
		all[id] = v
	}
	for id, v := range w.step2 {
		all[id] = v
	}
	merged := schema.Normalize(w.schema.Fields, all, w.deps.Locale)

	return w.createAndConfirm(ctx, w.identifier, merged, w.step1Entries)
}

// GoBackToStep1 丢弃第二步草稿，保留第一步的取值
func (w *Workflow) GoBackToStep1() error {
	if w.state != StateRegistration {
		return w.fail(fmt.Errorf("go back in %s: %w", w.state, pkgerrors.InvalidStep))
	}

	w.step2 = schema.Values{}
	w.identifier = ""
	w.step1Entries = nil
	w.state = StateAlwaysFill
	w.lastErr = nil
	return nil
}

func (w *Workflow) checkGeofence(ctx context.Context, position geofence.PositionProvider) error {
	addr, err := w.deps.Data.GetOperationAddress(ctx, w.token)
	if err != nil {
		if _, ok := pkgerrors.As(err); ok {
			return err
		}
		return fmt.Errorf("load operation address: %w: %w", pkgerrors.NetworkError, err)
	}
	origin, err := w.deps.Geofence.ResolveAddress(ctx, addr)
	if err != nil {
		return err
	}

	inside, err := w.deps.Geofence.CheckProximity(ctx, position, origin, w.operation.RadiusMeters())
	if err != nil {
		return err
	}
	if !inside {
		metrics.RecordProximityRejected(ctx, w.token)
		return fmt.Errorf("outside %.0f m radius: %w", w.operation.RadiusMeters(), pkgerrors.ProximityError)
	}
	return nil
}

// createAndConfirm 另一会话抢先登记同一标识时，重新解析后直接记录打卡
func (w *Workflow) createAndConfirm(ctx context.Context, identifier string, subjectEntries, eventEntries []model.FieldEntry) error {
	newSubject := true

	if _, err := w.deps.Recorder.CreateSubject(ctx, w.token, identifier, subjectEntries); err != nil {
		if !errors.Is(err, pkgerrors.DuplicateIdentifier) {
			return w.fail(err)
		}

		existing, findErr := w.deps.Resolver.FindByIdentifier(ctx, w.token, identifier)
		if findErr != nil {
			return w.fail(findErr)
		}
		if existing == nil {
			return w.fail(err)
		}

		logger.ForOperation(w.token).Info("Identifier registered concurrently, recording clock-in for existing subject",
			zap.Int64("subject_id", existing.ID),
		)
		metrics.RecordDuplicateRecovered(ctx)
		newSubject = false
	} else {
		metrics.RecordSubjectCreated(ctx)
	}

	return w.recordEvent(ctx, identifier, eventEntries, newSubject)
}

func (w *Workflow) recordEvent(ctx context.Context, identifier string, entries []model.FieldEntry, newSubject bool) error {
	ev, err := w.deps.Recorder.RecordEvent(ctx, w.token, identifier, entries)
	if err != nil {
		return w.fail(err)
	}

	w.identifier = identifier
	w.event = &Event{
		ClockInID:  ev.ID,
		SubjectID:  ev.ClockInEmployeeID,
		NewSubject: newSubject,
		RecordedAt: ev.Start,
	}
	w.state = StateConfirmed
	w.lastErr = nil

	metrics.RecordEventRecorded(ctx, newSubject)
	logger.ForOperation(w.token).Info("Clock-in recorded",
		zap.Int64("clock_in_id", ev.ID),
		zap.Bool("new_subject", newSubject),
	)
	return nil
}

// fail 记录错误，状态不变
func (w *Workflow) fail(err error) error {
	w.lastErr = err
	return err
}

func (w *Workflow) CurrentState() State {
	return w.state
}

func (w *Workflow) LastError() error {
	return w.lastErr
}

func (w *Workflow) LastEvent() *Event {
	return w.event
}

func (w *Workflow) OperationToken() string {
	return w.token
}

func (w *Workflow) Operation() *model.Operation {
	return w.operation
}

// Fields 当前步骤需要渲染的字段
func (w *Workflow) Fields() []schema.FieldView {
	if w.schema == nil {
		return nil
	}
	switch w.state {
	case StateAlwaysFill:
		return schema.Render(w.schema.AlwaysFill())
	case StateRegistration:
		return schema.Render(w.schema.OneTime())
	default:
		return nil
	}
}

// Draft 已输入的取值，供重新渲染表单；密码字段不回显
func (w *Workflow) Draft() schema.Values {
	hidden := make(map[int64]bool)
	if w.schema != nil {
		for _, f := range w.schema.Fields {
			if f.Type == model.FieldTypePassword {
				hidden[f.ID] = true
			}
		}
	}

	out := make(schema.Values, len(w.step1)+len(w.step2))
	for _, step := range []schema.Values{w.step1, w.step2} {
		for id, v := range step {
			if !hidden[id] {
				out[id] = v
			}
		}
	}
	return out
}

// merge 只接受属于当前步骤的字段
func merge(dst, src schema.Values, fields []model.FieldDefinition) {
	for id, v := range src {
		if schema.Contains(fields, id) {
			dst[id] = v
		}
	}
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if def, ok := pkgerrors.As(err); ok {
		return def.Code
	}
	return "error"
}
