package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sqlang/sqtest/internal/harness"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_IsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()
}

func sampleSuite() *harness.SuiteResult {
	suite := &harness.SuiteResult{Total: 2}
	suite.Cases = []harness.CaseResult{
		{Name: "sum.sq", Verdict: harness.VerdictPass, Stage: harness.StageComparing},
		{
			Name:       "fail/bad.sq",
			Verdict:    harness.VerdictFail,
			Stage:      harness.StageCompiling,
			Kind:       harness.KindUnexpectedAcceptance,
			Diagnostic: "compiler accepted a program from the negative corpus",
		},
	}
	suite.Passed = 1
	suite.Failed = 1
	return suite
}

func TestRecordSuite_Roundtrip(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	startedAt := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	runID, err := s.RecordSuite(ctx, startedAt, "continue", sampleSuite())
	if err != nil {
		t.Fatalf("RecordSuite() failed: %v", err)
	}
	if runID == "" {
		t.Fatal("RecordSuite() returned empty run ID")
	}

	runs, err := s.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("ListRuns() returned %d runs, want 1", len(runs))
	}

	run := runs[0]
	if run.ID != runID {
		t.Errorf("run ID = %q, want %q", run.ID, runID)
	}
	if !run.StartedAt.Equal(startedAt) {
		t.Errorf("StartedAt = %v, want %v", run.StartedAt, startedAt)
	}
	if run.Passed != 1 || run.Failed != 1 || run.Total != 2 {
		t.Errorf("counts = %d/%d/%d, want 1/1/2", run.Passed, run.Failed, run.Total)
	}
	if run.Pass {
		t.Error("run.Pass = true, want false")
	}

	rows, err := s.CaseResults(ctx, runID)
	if err != nil {
		t.Fatalf("CaseResults() failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("CaseResults() returned %d rows, want 2", len(rows))
	}
	if rows[0].Name != "sum.sq" || rows[1].Name != "fail/bad.sq" {
		t.Errorf("rows out of corpus order: %q, %q", rows[0].Name, rows[1].Name)
	}
	if rows[1].Kind != string(harness.KindUnexpectedAcceptance) {
		t.Errorf("rows[1].Kind = %q", rows[1].Kind)
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	if _, err := s.RecordSuite(ctx, older, "continue", sampleSuite()); err != nil {
		t.Fatalf("RecordSuite() failed: %v", err)
	}
	newID, err := s.RecordSuite(ctx, newer, "fail-fast", sampleSuite())
	if err != nil {
		t.Fatalf("RecordSuite() failed: %v", err)
	}

	runs, err := s.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("ListRuns() returned %d runs, want 2", len(runs))
	}
	if runs[0].ID != newID {
		t.Errorf("runs[0].ID = %q, want newest %q", runs[0].ID, newID)
	}

	limited, err := s.ListRuns(ctx, 1)
	if err != nil {
		t.Fatalf("ListRuns(limit=1) failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("ListRuns(limit=1) returned %d runs", len(limited))
	}
}
