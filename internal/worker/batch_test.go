package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/readmecheck/internal/model"
)

// mockChecker implements Checker
type mockChecker struct {
	failRoot string
}

func (m *mockChecker) Check(ctx context.Context, root string) (*model.Report, error) {
	time.Sleep(10 * time.Millisecond) // Simulate work
	if root == m.failRoot {
		return nil, errors.New("check error")
	}
	return &model.Report{Project: root}, nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "roots.txt")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestBatchProcessor_ProcessRoots(t *testing.T) {
	processor := NewBatchProcessor(&mockChecker{}, 2)

	roots := []string{"/src/a", "/src/b", "/src/c", "/src/d", "/src/e"}
	results := processor.ProcessRoots(context.Background(), roots)

	if len(results) != len(roots) {
		t.Fatalf("expected %d results, got %d", len(roots), len(results))
	}
	for i, res := range results {
		if res.Root != roots[i] {
			t.Errorf("expected input order, got %s at %d", res.Root, i)
		}
		if res.Error != nil {
			t.Errorf("unexpected error for %s: %v", res.Root, res.Error)
		}
		if res.Report == nil || res.Report.Project != roots[i] {
			t.Errorf("expected report for %s", res.Root)
		}
	}
}

func TestBatchProcessor_ProcessRoots_Error(t *testing.T) {
	processor := NewBatchProcessor(&mockChecker{failRoot: "/src/bad"}, 2)

	results := processor.ProcessRoots(context.Background(), []string{"/src/ok", "/src/bad"})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Error != nil {
		t.Errorf("expected success for first root, got %v", results[0].Error)
	}
	if results[1].Error == nil {
		t.Error("expected error, got nil")
	}
	if results[1].Report != nil {
		t.Error("expected nil report on error")
	}
}

func TestBatchProcessor_ProcessRoots_Cancelled(t *testing.T) {
	processor := NewBatchProcessor(&mockChecker{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := processor.ProcessRoots(ctx, []string{"/src/a", "/src/b"})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, res := range results {
		if res.Report == nil && !errors.Is(res.Error, context.Canceled) {
			t.Errorf("expected cancellation error for %s, got %v", res.Root, res.Error)
		}
	}
}

func TestBatchProcessor_ProcessRoots_Empty(t *testing.T) {
	processor := NewBatchProcessor(&mockChecker{}, 2)

	results := processor.ProcessRoots(context.Background(), []string{})
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestReadRootsFromFile(t *testing.T) {
	p := writeFile(t, "services/api\n# comment\n/abs/project\n   \nservices/api/../web   \nservices/api\n")

	roots, err := ReadRootsFromFile(p)
	if err != nil {
		t.Fatalf("ReadRootsFromFile failed: %v", err)
	}

	base := filepath.Dir(p)
	expected := []string{
		filepath.Join(base, "services", "api"),
		filepath.Clean("/abs/project"),
		filepath.Join(base, "services", "web"),
	}
	if len(roots) != len(expected) {
		t.Fatalf("expected %d roots, got %d: %v", len(expected), len(roots), roots)
	}
	for i, root := range roots {
		if root != expected[i] {
			t.Errorf("expected root %s at index %d, got %s", expected[i], i, root)
		}
	}
}

func TestReadRootsFromFile_NonExistent(t *testing.T) {
	_, err := ReadRootsFromFile("non_existent_file.txt")
	if err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestCheckResult_GetError(t *testing.T) {
	r1 := &CheckResult{Root: "/src/a"}
	if r1.GetError() != nil {
		t.Errorf("expected nil error, got %v", r1.GetError())
	}

	expected := errors.New("check failed")
	r2 := &CheckResult{Root: "/src/a", Error: expected}
	if r2.GetError() != expected {
		t.Errorf("expected %v, got %v", expected, r2.GetError())
	}
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	p := writeFile(t, "a\nb\n# comment\n\nc\n")

	processor := NewBatchProcessor(&mockChecker{}, 2)
	results, err := processor.ProcessFile(context.Background(), p)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("expected 3 results, got %d", len(results))
	}
}

func TestBatchProcessor_ProcessFile_NonExistent(t *testing.T) {
	processor := NewBatchProcessor(&mockChecker{}, 2)

	_, err := processor.ProcessFile(context.Background(), "no_such_file.txt")
	if err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}
