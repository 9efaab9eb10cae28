package app

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

type recordingLogger struct {
	lines []string
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.add("DEBUG", msg, args) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.add("INFO", msg, args) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.add("WARN", msg, args) }
func (l *recordingLogger) Error(msg string, args ...any) { l.add("ERROR", msg, args) }

func (l *recordingLogger) add(level, msg string, args []any) {
	l.lines = append(l.lines, fmt.Sprintf("%s %s %v", level, msg, args))
}

func TestOperation(t *testing.T) {
	start := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	t.Run("id is derived from start time", func(t *testing.T) {
		op := NewOperation("publish", start)
		if op.ID != "20240615T143045Z" {
			t.Errorf("ID = %q", op.ID)
		}
		if op.Status != "success" {
			t.Errorf("Status = %q, want success", op.Status)
		}
	})

	t.Run("fail with nil keeps success", func(t *testing.T) {
		op := NewOperation("publish", start)
		op.Fail(nil)
		if op.Status != "success" {
			t.Errorf("Status = %q, want success", op.Status)
		}
	})

	t.Run("fail marks error", func(t *testing.T) {
		op := NewOperation("publish", start)
		op.Fail(errors.New("boom"))
		if op.Status != "error" {
			t.Errorf("Status = %q, want error", op.Status)
		}
	})

	t.Run("finish logs duration", func(t *testing.T) {
		op := NewOperation("serve", start)
		logger := &recordingLogger{}
		op.Finish(logger, start.Add(1500*time.Millisecond))

		if len(logger.lines) != 1 {
			t.Fatalf("logged %d lines, want 1", len(logger.lines))
		}
		want := "INFO operation finished [operation serve status success duration 1.5s]"
		if logger.lines[0] != want {
			t.Errorf("line = %q, want %q", logger.lines[0], want)
		}
	})
}
