package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"poolConsole/internal/model"
	"poolConsole/internal/pipeline"
)

func TestJsonlStorageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal", "transitions.jsonl")
	s := NewJsonlStorage(path)

	first := model.NewStatusTransition(1, pipeline.StatusPending, pipeline.StatusDeployingPool, model.SourcePoll, "")
	second := model.NewStatusTransition(1, pipeline.StatusDeployingPool, pipeline.StatusPoolCreated, model.SourcePush, "0xabc")

	if err := s.PutTransitions(context.Background(), []model.StatusTransition{first}); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if err := s.PutTransitions(context.Background(), []model.StatusTransition{second}); err != nil {
		t.Fatalf("second put: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer file.Close()

	var lines []model.StatusTransition
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var tr model.StatusTransition
		if err := json.Unmarshal(scanner.Bytes(), &tr); err != nil {
			t.Fatalf("unmarshal line: %v", err)
		}
		lines = append(lines, tr)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 journal lines, got %d", len(lines))
	}
	if lines[0].Source != model.SourcePoll || lines[1].Source != model.SourcePush {
		t.Fatalf("sources mismatch: %+v", lines)
	}
	if lines[1].TxHash != "0xabc" {
		t.Fatalf("tx hash mismatch: %+v", lines[1])
	}
}

func TestJsonlStorageEmptyBatchNoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transitions.jsonl")
	s := NewJsonlStorage(path)

	if err := s.PutTransitions(context.Background(), nil); err != nil {
		t.Fatalf("empty put: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("empty batch must not create the file")
	}
}

func TestMultiFansOut(t *testing.T) {
	dir := t.TempDir()
	a := NewJsonlStorage(filepath.Join(dir, "a.jsonl"))
	b := NewJsonlStorage(filepath.Join(dir, "b.jsonl"))

	m := Multi{a, nil, b}
	tr := model.NewStatusTransition(2, pipeline.StatusFailed, pipeline.StatusDeployingLoans, model.SourcePoll, "")
	if err := m.PutTransitions(context.Background(), []model.StatusTransition{tr}); err != nil {
		t.Fatalf("multi put: %v", err)
	}

	for _, p := range []string{filepath.Join(dir, "a.jsonl"), filepath.Join(dir, "b.jsonl")} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("sink %s not written: %v", p, err)
		}
	}
}
