package service

import (
	"context"
	stderrors "errors"
	"testing"

	"KikenQR/internal/model"
	"KikenQR/internal/repository/repotest"
	pkgerrors "KikenQR/pkg/errors"
)

const (
	emailID int64 = 11
	nameID  int64 = 12
)

func newStore() *repotest.MemoryStore {
	store := repotest.NewMemoryStore()
	email := model.FieldDefinition{Label: "Email", Type: model.FieldTypeEmail, IsUnique: true}
	email.ID = emailID
	name := model.FieldDefinition{Label: "Nom", Type: model.FieldTypeText, IsRequired: true}
	name.ID = nameID
	store.AddOperation(model.Operation{Token: "op", Name: "Chantier"}, email, name)
	return store
}

func newRecorder(store *repotest.MemoryStore) *SubmissionRecorder {
	return NewSubmissionRecorder(store, NewIdentityResolver(store))
}

func TestRecordEventAppendsEveryTime(t *testing.T) {
	store := newStore()
	store.SeedSubject("op", "a@x.fr")
	r := newRecorder(store)
	ctx := context.Background()
	entries := []model.FieldEntry{{FieldID: emailID, Value: "a@x.fr"}}

	for i := 0; i < 2; i++ {
		if _, err := r.RecordEvent(ctx, "op", "a@x.fr", entries); err != nil {
			t.Fatalf("RecordEvent #%d: %v", i, err)
		}
	}
	if len(store.Events) != 2 {
		t.Fatalf("events = %d, want 2", len(store.Events))
	}
	if store.Events[0].ID == store.Events[1].ID {
		t.Fatal("events must be distinct")
	}
}

func TestRecordEventUnknownSubject(t *testing.T) {
	store := newStore()
	r := newRecorder(store)

	_, err := r.RecordEvent(context.Background(), "op", "ghost@x.fr", nil)
	if !stderrors.Is(err, pkgerrors.SubjectNotFound) {
		t.Fatalf("expected SubjectNotFound, got %v", err)
	}
	if store.Writes() != 0 {
		t.Fatalf("writes = %d, want 0", store.Writes())
	}
}

func TestCreateSubjectRejectsDuplicate(t *testing.T) {
	store := newStore()
	r := newRecorder(store)
	ctx := context.Background()
	entries := []model.FieldEntry{{FieldID: emailID, Value: "dup@x.fr"}, {FieldID: nameID, Value: "Dup"}}

	if _, err := r.CreateSubject(ctx, "op", "dup@x.fr", entries); err != nil {
		t.Fatalf("first CreateSubject: %v", err)
	}
	valuesAfterFirst := len(store.Values)

	_, err := r.CreateSubject(ctx, "op", "dup@x.fr", entries)
	if !stderrors.Is(err, pkgerrors.DuplicateIdentifier) {
		t.Fatalf("expected DuplicateIdentifier, got %v", err)
	}
	if len(store.Subjects) != 1 || len(store.Values) != valuesAfterFirst {
		t.Fatalf("duplicate wrote data: subjects=%d values=%d", len(store.Subjects), len(store.Values))
	}
}

func TestCreateSubjectStopsOnFieldValueFailure(t *testing.T) {
	store := newStore()
	store.FieldValueErr = stderrors.New("write timeout")
	store.FailOnFieldID = nameID
	r := newRecorder(store)

	_, err := r.CreateSubject(context.Background(), "op", "w@x.fr", []model.FieldEntry{
		{FieldID: emailID, Value: "w@x.fr"},
		{FieldID: nameID, Value: "W"},
	})
	if !stderrors.Is(err, pkgerrors.FieldValueWriteError) {
		t.Fatalf("expected FieldValueWriteError, got %v", err)
	}
	if len(store.Subjects) != 0 || store.SubjectCalls != 0 {
		t.Fatal("subject must not be created")
	}
	// 第一个取值已写入，不回滚
	if len(store.Values) != 1 {
		t.Fatalf("values = %d, want 1 orphan", len(store.Values))
	}
}

func TestLookupFailureIsNetworkError(t *testing.T) {
	store := newStore()
	store.FindErr = stderrors.New("dial tcp: connection refused")
	resolver := NewIdentityResolver(store)

	_, err := resolver.FindByIdentifier(context.Background(), "op", "a@x.fr")
	if !stderrors.Is(err, pkgerrors.NetworkError) {
		t.Fatalf("expected NetworkError, got %v", err)
	}

	store.FindErr = nil
	subject, err := resolver.FindByIdentifier(context.Background(), "op", "A@x.fr")
	if err != nil || subject != nil {
		t.Fatalf("lookup must be exact: subject=%v err=%v", subject, err)
	}
}
