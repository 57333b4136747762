package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/practicalwork/library-server/internal/store"
)

func TestCreateAndGetReader(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	reader := makeTestReader("reader-1", "Ivan Petrov", "+15550100")
	if err := s.Readers().Create(ctx, reader); err != nil {
		t.Fatalf("create reader: %v", err)
	}

	byID, err := s.Readers().GetByID(ctx, "reader-1")
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if byID.FullName != "Ivan Petrov" || byID.PhoneNumber != "+15550100" || !byID.IsActive {
		t.Errorf("unexpected reader: %+v", byID)
	}
	if !byID.ExpiryDate.Equal(reader.ExpiryDate) {
		t.Errorf("expiry: got %v, want %v", byID.ExpiryDate, reader.ExpiryDate)
	}

	byPhone, err := s.Readers().GetByPhone(ctx, "+15550100")
	if err != nil {
		t.Fatalf("get by phone: %v", err)
	}
	if byPhone.ID != "reader-1" {
		t.Errorf("get by phone: got %s", byPhone.ID)
	}

	if _, err := s.Readers().GetByPhone(ctx, "000"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateReader_DuplicatePhone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Readers().Create(ctx, makeTestReader("reader-1", "Ivan Petrov", "555")); err != nil {
		t.Fatalf("create reader: %v", err)
	}
	err := s.Readers().Create(ctx, makeTestReader("reader-2", "Anna Petrova", "555"))
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestGetReaderByName_FirstMatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := makeTestReader("reader-b", "Ivan Petrov", "555")
	second := makeTestReader("reader-a", "Ivan Petrov", "556")
	second.CreatedAt = testNow.Add(time.Hour)

	if err := s.Readers().Create(ctx, second); err != nil {
		t.Fatalf("create reader: %v", err)
	}
	if err := s.Readers().Create(ctx, first); err != nil {
		t.Fatalf("create reader: %v", err)
	}

	got, err := s.Readers().GetByName(ctx, "Ivan Petrov")
	if err != nil {
		t.Fatalf("get by name: %v", err)
	}
	if got.ID != "reader-b" {
		t.Errorf("expected earliest created reader, got %s", got.ID)
	}

	if _, err := s.Readers().GetByName(ctx, "ivan petrov"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected exact match only, got %v", err)
	}
}

func TestUpdateReader(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	reader := makeTestReader("reader-1", "Ivan Petrov", "555")
	if err := s.Readers().Create(ctx, reader); err != nil {
		t.Fatalf("create reader: %v", err)
	}

	later := testNow.Add(time.Hour)
	if err := reader.Extend(reader.ExpiryDate.Add(24*time.Hour), later); err != nil {
		t.Fatalf("extend: %v", err)
	}
	if err := reader.Close(later); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Readers().Update(ctx, reader); err != nil {
		t.Fatalf("update reader: %v", err)
	}

	got, err := s.Readers().GetByID(ctx, "reader-1")
	if err != nil {
		t.Fatalf("get reader: %v", err)
	}
	if got.IsActive || !got.ExpiryDate.Equal(reader.ExpiryDate) || !got.UpdatedAt.Equal(later) {
		t.Errorf("unexpected reader after update: %+v", got)
	}

	ghost := makeTestReader("reader-2", "Nobody", "000")
	if err := s.Readers().Update(ctx, ghost); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
