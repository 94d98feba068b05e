package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/concordia/internal/model"
)

// MockResolver implements Resolver interface
type MockResolver struct {
	ShouldError bool
}

func (m *MockResolver) ResolveFile(ctx context.Context, path string) (*model.Resolution, error) {
	time.Sleep(10 * time.Millisecond) // Simulate work
	if m.ShouldError {
		return nil, errors.New("resolve error")
	}
	return &model.Resolution{
		Records: []model.Record{{"canonical_name": "Jan", "cluster_id": 1}},
		Report: &model.Report{
			Subject: filepath.Base(path),
			Source:  path,
		},
	}, nil
}

func TestBatchProcessor_ProcessPaths(t *testing.T) {
	processor := NewBatchProcessor(&MockResolver{}, 2)

	paths := []string{"a.csv", "b.csv", "c.jsonl"}
	results := processor.ProcessPaths(context.Background(), paths)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	for i, res := range results {
		if res.Error != nil {
			t.Errorf("unexpected error for %s: %v", res.Path, res.Error)
			continue
		}
		if res.Path != paths[i] {
			t.Errorf("result %d: expected path %s, got %s", i, paths[i], res.Path)
		}
		if res.Resolution == nil || res.Resolution.Report.Source != paths[i] {
			t.Errorf("result %d: expected resolution for %s", i, paths[i])
		}
	}
}

func TestBatchProcessor_ProcessPaths_Error(t *testing.T) {
	processor := NewBatchProcessor(&MockResolver{ShouldError: true}, 2)

	results := processor.ProcessPaths(context.Background(), []string{"a.csv"})

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Error == nil {
		t.Error("expected error, got nil")
	}
	if results[0].Resolution != nil {
		t.Error("expected nil resolution on error")
	}
}

func TestBatchProcessor_ProcessPaths_Empty(t *testing.T) {
	processor := NewBatchProcessor(&MockResolver{}, 2)

	results := processor.ProcessPaths(context.Background(), []string{})
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestBatchProcessor_ProcessPaths_Cancelled(t *testing.T) {
	processor := NewBatchProcessor(&MockResolver{}, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := processor.ProcessPaths(ctx, []string{"a.csv", "b.csv"})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, res := range results {
		if res.Error == nil {
			t.Errorf("expected cancellation error for %s", res.Path)
		}
	}
}

func TestReadPathsFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `people.csv
# comment
/data/other.jsonl
   
people.csv
nested/more.json   `

	listPath := filepath.Join(dir, "inputs.txt")
	if err := os.WriteFile(listPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	paths, err := ReadPathsFromFile(listPath)
	if err != nil {
		t.Fatalf("ReadPathsFromFile failed: %v", err)
	}

	expected := []string{
		filepath.Join(dir, "people.csv"),
		"/data/other.jsonl",
		filepath.Join(dir, "nested", "more.json"),
	}
	if len(paths) != len(expected) {
		t.Fatalf("expected %d paths, got %d: %v", len(expected), len(paths), paths)
	}
	for i, path := range paths {
		if path != expected[i] {
			t.Errorf("expected path %s at index %d, got %s", expected[i], i, path)
		}
	}
}

func TestReadPathsFromFile_NonExistent(t *testing.T) {
	_, err := ReadPathsFromFile("non_existent_file.txt")
	if err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestReadPathsFromDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.csv", "a.JSONL", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.csv"), 0o755); err != nil {
		t.Fatal(err)
	}

	paths, err := ReadPathsFromDir(dir, []string{".csv", ".jsonl"})
	if err != nil {
		t.Fatalf("ReadPathsFromDir failed: %v", err)
	}

	expected := []string{filepath.Join(dir, "a.JSONL"), filepath.Join(dir, "b.csv")}
	if len(paths) != len(expected) {
		t.Fatalf("expected %d paths, got %d: %v", len(expected), len(paths), paths)
	}
	for i := range expected {
		if paths[i] != expected[i] {
			t.Errorf("expected %s at index %d, got %s", expected[i], i, paths[i])
		}
	}
}

func TestFileResult_GetError(t *testing.T) {
	r1 := &FileResult{Path: "a.csv"}
	if r1.GetError() != nil {
		t.Errorf("expected nil error, got %v", r1.GetError())
	}

	expected := errors.New("resolve failed")
	r2 := &FileResult{Path: "a.csv", Error: expected}
	if r2.GetError() != expected {
		t.Errorf("expected %v, got %v", expected, r2.GetError())
	}
}
