package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"KikenQR/internal/geofence"
	"KikenQR/internal/model"
	"KikenQR/internal/model/dto"
	"KikenQR/internal/schema"
	"KikenQR/internal/workflow"
	pkgerrors "KikenQR/pkg/errors"
	"KikenQR/pkg/logger"
)

// SessionStore 保存会话快照
type SessionStore interface {
	Save(ctx context.Context, sessionID string, snapshot []byte, ttl time.Duration) error
	Load(ctx context.Context, sessionID string) ([]byte, error)
}

type SessionLocker interface {
	Lock(ctx context.Context, sessionID string) (func(), error)
}

// EventPublisher 打卡确认后发布领域事件
type EventPublisher interface {
	PublishClockInRecorded(ctx context.Context, msg model.ClockInRecordedMessage) error
}

type TokenIssuer func(sessionID string) (string, time.Time, error)

type ClockInDeps struct {
	Workflow   workflow.Deps
	Sessions   SessionStore
	Locker     SessionLocker
	Publisher  EventPublisher
	IssueToken TokenIssuer
	SessionTTL time.Duration
}

// ClockInService 把打卡流程包装成以会话为单位的 HTTP 友好接口。
// 同一会话的请求通过分布式锁串行执行，每次操作后都会保存快照。
type ClockInService struct {
	deps ClockInDeps
}

func NewClockInService(deps ClockInDeps) *ClockInService {
	if deps.SessionTTL <= 0 {
		deps.SessionTTL = 30 * time.Minute
	}
	return &ClockInService{deps: deps}
}

// StartSession 扫码进入，运营活动不存在时不创建会话
func (s *ClockInService) StartSession(ctx context.Context, operationToken string) (*dto.StartSessionResponse, error) {
	wf := workflow.New(s.deps.Workflow)
	if err := wf.Start(ctx, operationToken); err != nil {
		return nil, err
	}

	sessionID := uuid.NewString()
	if err := s.save(ctx, sessionID, wf); err != nil {
		return nil, err
	}

	token, expiresAt, err := s.deps.IssueToken(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	logger.ForSession(sessionID, operationToken).Info("Clock-in session started")

	return &dto.StartSessionResponse{
		SessionToken: token,
		ExpiresAt:    expiresAt,
		Session:      SessionView(sessionID, wf),
	}, nil
}

func (s *ClockInService) GetSession(ctx context.Context, sessionID string) (*dto.ClockInSessionData, error) {
	wf, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	view := SessionView(sessionID, wf)
	return &view, nil
}

func (s *ClockInService) SubmitStep1(ctx context.Context, sessionID string, values schema.Values, position geofence.PositionProvider) (*dto.ClockInSessionData, error) {
	return s.withSession(ctx, sessionID, func(wf *workflow.Workflow) error {
		return wf.SubmitStep1(ctx, values, position)
	})
}

func (s *ClockInService) SubmitStep2(ctx context.Context, sessionID string, values schema.Values) (*dto.ClockInSessionData, error) {
	return s.withSession(ctx, sessionID, func(wf *workflow.Workflow) error {
		return wf.SubmitStep2(ctx, values)
	})
}

func (s *ClockInService) GoBack(ctx context.Context, sessionID string) (*dto.ClockInSessionData, error) {
	return s.withSession(ctx, sessionID, func(wf *workflow.Workflow) error {
		return wf.GoBackToStep1()
	})
}

func (s *ClockInService) Restart(ctx context.Context, sessionID string) (*dto.ClockInSessionData, error) {
	return s.withSession(ctx, sessionID, func(wf *workflow.Workflow) error {
		return wf.Restart(ctx)
	})
}

// withSession 加锁、恢复、执行、保存。出错时也返回当前视图，便于前端重新渲染表单。
func (s *ClockInService) withSession(ctx context.Context, sessionID string, fn func(wf *workflow.Workflow) error) (*dto.ClockInSessionData, error) {
	unlock, err := s.deps.Locker.Lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	wf, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	wasConfirmed := wf.CurrentState() == workflow.StateConfirmed
	opErr := fn(wf)

	if err := s.save(ctx, sessionID, wf); err != nil {
		logger.ForSession(sessionID, wf.OperationToken()).Error("Failed to save clock-in session",
			zap.Error(err),
		)
		if opErr == nil {
			opErr = err
		}
	}

	if !wasConfirmed && wf.CurrentState() == workflow.StateConfirmed {
		s.publishRecorded(ctx, wf)
	}

	view := SessionView(sessionID, wf)
	return &view, opErr
}

// publishRecorded 发布失败只记日志，打卡记录已经写入
func (s *ClockInService) publishRecorded(ctx context.Context, wf *workflow.Workflow) {
	ev := wf.LastEvent()
	if s.deps.Publisher == nil || ev == nil {
		return
	}

	msg := model.ClockInRecordedMessage{
		OperationToken: wf.OperationToken(),
		ClockInID:      ev.ClockInID,
		SubjectID:      ev.SubjectID,
		NewSubject:     ev.NewSubject,
		OccurredAt:     ev.RecordedAt.UTC().Format(time.RFC3339),
	}
	if op := wf.Operation(); op != nil {
		msg.OperationID = op.ID
	}

	if err := s.deps.Publisher.PublishClockInRecorded(ctx, msg); err != nil {
		logger.L().Warn("Failed to publish clock-in recorded event",
			zap.Int64("clock_in_id", ev.ClockInID),
			zap.Error(err),
		)
	}
}

func (s *ClockInService) load(ctx context.Context, sessionID string) (*workflow.Workflow, error) {
	data, err := s.deps.Sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var snap workflow.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// 快照损坏等同于会话丢失，让用户重新扫码
		return nil, fmt.Errorf("corrupted session %s: %w: %w", sessionID, pkgerrors.SessionNotFound, err)
	}
	return workflow.Restore(s.deps.Workflow, snap), nil
}

func (s *ClockInService) save(ctx context.Context, sessionID string, wf *workflow.Workflow) error {
	data, err := json.Marshal(wf.Snapshot())
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return s.deps.Sessions.Save(ctx, sessionID, data, s.deps.SessionTTL)
}

// SessionView 会话的对外视图
func SessionView(sessionID string, wf *workflow.Workflow) dto.ClockInSessionData {
	view := dto.ClockInSessionData{
		SessionID: sessionID,
		State:     string(wf.CurrentState()),
		Fields:    wf.Fields(),
		LastError: ErrorView(wf.LastError()),
	}
	if view.Fields == nil {
		view.Fields = []schema.FieldView{}
	}

	if op := wf.Operation(); op != nil {
		view.Operation = &dto.OperationView{
			Token:                 op.Token,
			Name:                  op.Name,
			UseClockInGeolocation: op.GeofenceEnabled(),
			DistanceKm:            op.Distance,
		}
	}

	if draft := wf.Draft(); len(draft) > 0 {
		view.Draft = make(map[string]string, len(draft))
		for id, v := range draft {
			view.Draft[strconv.FormatInt(id, 10)] = v
		}
	}

	if ev := wf.LastEvent(); ev != nil {
		view.Event = &dto.ClockInEventView{
			ClockInID:  strconv.FormatInt(ev.ClockInID, 10),
			SubjectID:  strconv.FormatInt(ev.SubjectID, 10),
			NewSubject: ev.NewSubject,
			RecordedAt: ev.RecordedAt,
		}
	}
	return view
}

// ErrorView 只暴露错误码与默认信息，内部细节留在日志里
func ErrorView(err error) *dto.ClockInErrorView {
	if err == nil {
		return nil
	}

	view := &dto.ClockInErrorView{Code: "INTERNAL_ERROR", Message: "Unexpected error"}
	if def, ok := pkgerrors.As(err); ok {
		view.Code = def.Code
		view.Message = def.Message
	}

	var fieldErrs pkgerrors.FieldErrors
	if stderrors.As(err, &fieldErrs) {
		view.Fields = make(map[string]string, len(fieldErrs))
		for id, msg := range fieldErrs {
			view.Fields[strconv.FormatInt(id, 10)] = msg
		}
	}
	return view
}
