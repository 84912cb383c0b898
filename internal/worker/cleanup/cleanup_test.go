package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// --- モック定義 ---

type mockSessionPurger struct {
	deleted int64
	err     error
	calls   int
}

func (m *mockSessionPurger) DeleteExpired(ctx context.Context) (int64, error) {
	m.calls++
	return m.deleted, m.err
}

type mockSubmissionPurger struct {
	deleted int64
	err     error
	before  time.Time
	calls   int
}

func (m *mockSubmissionPurger) DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error) {
	m.calls++
	m.before = before
	return m.deleted, m.err
}

type mockRecorder struct {
	counts map[string]int64
}

func (m *mockRecorder) RecordCleanup(kind string, deleted int64) {
	if m.counts == nil {
		m.counts = make(map[string]int64)
	}
	m.counts[kind] += deleted
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// --- テスト ---

func TestNewCleanupJob_DefaultRetention(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockSessionPurger{}, &mockSubmissionPurger{}, newTestLogger(&buf), nil)

	if job.Retention != 24*time.Hour {
		t.Errorf("Retention = %v, want 24h", job.Retention)
	}
}

func TestCleanupJob_Run_DeletesBoth(t *testing.T) {
	var buf bytes.Buffer
	sessions := &mockSessionPurger{deleted: 3}
	subs := &mockSubmissionPurger{deleted: 2}
	rec := &mockRecorder{}

	job := NewCleanupJob(sessions, subs, newTestLogger(&buf), rec)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }
	job.Retention = 6 * time.Hour

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if sessions.calls != 1 || subs.calls != 1 {
		t.Errorf("calls = (%d, %d), want (1, 1)", sessions.calls, subs.calls)
	}
	if want := now.Add(-6 * time.Hour); !subs.before.Equal(want) {
		t.Errorf("before = %v, want %v", subs.before, want)
	}
	if rec.counts["sessions"] != 3 || rec.counts["submissions"] != 2 {
		t.Errorf("recorded = %v", rec.counts)
	}
}

func TestCleanupJob_Run_LogsDeletedCounts(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockSessionPurger{deleted: 7}, &mockSubmissionPurger{deleted: 4}, newTestLogger(&buf), nil)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("ログ出力がJSONとしてパースできない: %v\nlog: %s", err, buf.String())
	}
	if entry["deleted_sessions"] != float64(7) {
		t.Errorf("deleted_sessions = %v, want 7", entry["deleted_sessions"])
	}
	if entry["deleted_submissions"] != float64(4) {
		t.Errorf("deleted_submissions = %v, want 4", entry["deleted_submissions"])
	}
}

func TestCleanupJob_Run_Idempotent(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockSessionPurger{}, &mockSubmissionPurger{}, newTestLogger(&buf), nil)

	for i := 0; i < 2; i++ {
		if err := job.Run(context.Background()); err != nil {
			t.Fatalf("run %d: 削除対象がなくてもエラーにならないこと: %v", i, err)
		}
	}
}

func TestCleanupJob_Run_SessionFailureStillPurgesSubmissions(t *testing.T) {
	var buf bytes.Buffer
	sessions := &mockSessionPurger{err: errors.New("connection refused")}
	subs := &mockSubmissionPurger{deleted: 1}

	job := NewCleanupJob(sessions, subs, newTestLogger(&buf), nil)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("エラーが返されること")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("error = %v, should wrap the cause", err)
	}
	if subs.calls != 1 {
		t.Errorf("submission purge calls = %d, want 1", subs.calls)
	}
	if !strings.Contains(buf.String(), `"level":"ERROR"`) {
		t.Errorf("エラーログが出力されること: %s", buf.String())
	}
}

func TestCleanupJob_Start_StopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	sessions := &mockSessionPurger{}
	job := NewCleanupJob(sessions, &mockSubmissionPurger{}, newTestLogger(&buf), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, time.Hour)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start should return after cancel")
	}
	if sessions.calls < 1 {
		t.Error("Start should run once immediately")
	}
}
