package submission

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/kanux/internal/model"
	"github.com/hitoshi/kanux/internal/repository"
)

// --- モック定義 ---

type memorySubmissionRepo struct {
	mu      sync.Mutex
	records map[string]*repository.SubmissionRecord
	findErr error
}

func newMemorySubmissionRepo() *memorySubmissionRepo {
	return &memorySubmissionRepo{records: make(map[string]*repository.SubmissionRecord)}
}

func (m *memorySubmissionRepo) Save(ctx context.Context, r *repository.SubmissionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.records[r.UserID] = &cp
	return nil
}

func (m *memorySubmissionRepo) FindByUserID(ctx context.Context, userID string) (*repository.SubmissionRecord, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[userID]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *memorySubmissionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, userID)
	return nil
}

func (m *memorySubmissionRepo) DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, r := range m.records {
		if r.ExpiresAt.Before(before) {
			delete(m.records, id)
			n++
		}
	}
	return n, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- テスト ---

func TestStore_SetThenRemainingSecondsIsAboutAnHour(t *testing.T) {
	store := NewStore(newMemorySubmissionRepo(), testLogger())
	ctx := context.Background()

	start := time.Now()
	entry := &model.SubmissionEntry{
		SubmissionID: "s1",
		ChallengeID:  "X",
		Status:       model.SubmissionStarted,
		StartedAt:    start,
		ExpiresAt:    start.Add(3600 * time.Second),
	}
	if err := store.Set(ctx, "talent-1", entry); err != nil {
		t.Fatalf("Set がエラーを返した: %v", err)
	}

	got, err := store.Get(ctx, "talent-1")
	if err != nil || got == nil {
		t.Fatalf("Get = (%v, %v)", got, err)
	}

	remaining := RemainingSeconds(got, time.Now())
	if remaining < 3595 || remaining > 3600 {
		t.Errorf("残り秒数 = %d, want ≈3600", remaining)
	}
}

func TestRemainingSeconds_NeverNegative(t *testing.T) {
	now := time.Now()
	for _, past := range []time.Duration{0, time.Millisecond, time.Second, time.Hour, 24 * 365 * time.Hour} {
		entry := &model.SubmissionEntry{ExpiresAt: now.Add(-past)}
		if got := RemainingSeconds(entry, now); got != 0 {
			t.Errorf("期限から%v後の残り秒数 = %d, want 0", past, got)
		}
		if !IsExpired(entry, now) {
			t.Errorf("期限から%v後は期限切れであるべき", past)
		}
	}
}

func TestRemainingSeconds_Floors(t *testing.T) {
	now := time.Now()
	entry := &model.SubmissionEntry{ExpiresAt: now.Add(1500 * time.Millisecond)}
	if got := RemainingSeconds(entry, now); got != 1 {
		t.Errorf("残り秒数 = %d, want 1", got)
	}

	// 1秒未満は期限切れ扱い
	entry = &model.SubmissionEntry{ExpiresAt: now.Add(999 * time.Millisecond)}
	if !IsExpired(entry, now) {
		t.Error("残り1秒未満は期限切れであるべき")
	}
}

func TestRemainingSeconds_NilEntry(t *testing.T) {
	if RemainingSeconds(nil, time.Now()) != 0 {
		t.Error("nilエントリの残り秒数は0であるべき")
	}
}

func TestStore_SetOverwrites(t *testing.T) {
	store := NewStore(newMemorySubmissionRepo(), testLogger())
	ctx := context.Background()
	now := time.Now()

	store.Set(ctx, "u", model.NewSubmissionEntry("s1", "A", now, 30))
	store.Set(ctx, "u", model.NewSubmissionEntry("s2", "B", now, 30))

	got, _ := store.Get(ctx, "u")
	if got == nil || got.SubmissionID != "s2" {
		t.Errorf("上書き後のエントリ = %+v", got)
	}
}

func TestStore_EnvelopeFormat(t *testing.T) {
	repo := newMemorySubmissionRepo()
	store := NewStore(repo, testLogger())

	store.Set(context.Background(), "u", model.NewSubmissionEntry("s1", "A", time.Now(), 30))

	data := string(repo.records["u"].Data)
	for _, want := range []string{`"version":1`, `"state":{"submission":{`, `"submission_id":"s1"`} {
		if !strings.Contains(data, want) {
			t.Errorf("保存形式に %s が含まれていない: %s", want, data)
		}
	}
	if repo.records["u"].Version != 1 {
		t.Errorf("Version = %d, want 1", repo.records["u"].Version)
	}
}

func TestStore_GetCorruptIsAbsent(t *testing.T) {
	repo := newMemorySubmissionRepo()
	repo.records["u"] = &repository.SubmissionRecord{UserID: "u", Data: []byte("garbage")}
	store := NewStore(repo, testLogger())

	got, err := store.Get(context.Background(), "u")
	if err != nil || got != nil {
		t.Errorf("壊れたデータは存在しないものとして扱うべき: (%v, %v)", got, err)
	}
}

func TestStore_GetWrongVersionIsAbsent(t *testing.T) {
	repo := newMemorySubmissionRepo()
	repo.records["u"] = &repository.SubmissionRecord{
		UserID: "u",
		Data:   []byte(`{"version":2,"state":{"submission":{"submission_id":"s1"}}}`),
	}
	store := NewStore(repo, testLogger())

	got, err := store.Get(context.Background(), "u")
	if err != nil || got != nil {
		t.Errorf("バージョン違いのデータは存在しないものとして扱うべき: (%v, %v)", got, err)
	}
}

func TestStore_GetStorageError(t *testing.T) {
	repo := newMemorySubmissionRepo()
	repo.findErr = errors.New("db down")
	store := NewStore(repo, testLogger())

	if _, err := store.Get(context.Background(), "u"); err == nil {
		t.Error("ストレージエラーは返されるべき")
	}
}

func TestStore_Clear(t *testing.T) {
	store := NewStore(newMemorySubmissionRepo(), testLogger())
	ctx := context.Background()

	store.Set(ctx, "u", model.NewSubmissionEntry("s1", "A", time.Now(), 30))
	if err := store.Clear(ctx, "u"); err != nil {
		t.Fatalf("Clear がエラーを返した: %v", err)
	}
	if got, _ := store.Get(ctx, "u"); got != nil {
		t.Error("Clear後はエントリが残っていてはならない")
	}
}
