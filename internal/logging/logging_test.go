package logging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPreInitLoggerUsesConfiguredHandler(t *testing.T) {
	logger := L("router")

	var buf bytes.Buffer
	Init("text", "info", &buf)

	logger.Info("routing started", "device", "CABLE Input")

	out := buf.String()
	if !strings.Contains(out, `msg="routing started"`) {
		t.Fatalf("expected message, got: %s", out)
	}
	if !strings.Contains(out, "component=router") {
		t.Fatalf("expected component field, got: %s", out)
	}
	if !strings.Contains(out, `device="CABLE Input"`) {
		t.Fatalf("expected device field, got: %s", out)
	}
}

func TestPreInitLoggerRespectsConfiguredLevel(t *testing.T) {
	logger := L("router")

	var buf bytes.Buffer
	Init("text", "warn", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info log should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn log should be emitted: %s", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Init("JSON", "debug", &buf)

	WithRun(L("pipeline"), "run-1").Debug("stage", KeyOp, "negotiate")

	out := buf.String()
	for _, want := range []string{`"component":"pipeline"`, `"runId":"run-1"`, `"op":"negotiate"`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %s", want, out)
		}
	}
}

func TestCountsTracksWarningsAndErrors(t *testing.T) {
	var buf bytes.Buffer
	Init("text", "info", &buf)

	w0, e0 := Counts()
	logger := L("router")
	logger.Info("not counted")
	logger.Warn("one")
	logger.Warn("two")
	logger.Error("three")

	w1, e1 := Counts()
	if w1-w0 != 2 {
		t.Errorf("warnings = %d, want 2", w1-w0)
	}
	if e1-e0 != 1 {
		t.Errorf("errors = %d, want 1", e1-e0)
	}
}

type hexErr uint32

func (h hexErr) Error() string { return "platform failure" }
func (h hexErr) Hex() string   { return fmt.Sprintf("0x%08X", uint32(h)) }

func TestErrInlinesStatus(t *testing.T) {
	var buf bytes.Buffer
	Init("text", "info", &buf)

	wrapped := fmt.Errorf("get buffer: %w", hexErr(0x88890004))
	L("router").Warn("drain failed", Err(wrapped))
	L("router").Warn("plain failure", Err(errors.New("boom")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "status=0x88890004") {
		t.Errorf("expected inlined status, got: %s", lines[0])
	}
	if !strings.Contains(lines[0], `error="get buffer: platform failure"`) {
		t.Errorf("expected error text, got: %s", lines[0])
	}
	if strings.Contains(lines[1], "status=") {
		t.Errorf("plain error should carry no status: %s", lines[1])
	}
}

func TestRotatingWriterRotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "cable-router.log")
	rw, err := NewRotatingWriter(path, 1, 2)
	if err != nil {
		t.Fatalf("NewRotatingWriter: %v", err)
	}
	t.Cleanup(func() { rw.Close() })

	chunk := bytes.Repeat([]byte("x"), 700*1024)
	for i := 0; i < 4; i++ {
		if _, err := rw.Write(chunk); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}

	for _, name := range []string{path, path + ".1", path + ".2"} {
		if _, err := os.Stat(name); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Errorf("backup beyond maxBackups should not exist, err = %v", err)
	}
}

func TestOutputWithoutFile(t *testing.T) {
	w, c, err := Output("", 0, 0)
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	if w != os.Stdout {
		t.Fatalf("expected stdout writer")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestCtxKeepsRunAttributes(t *testing.T) {
	var buf bytes.Buffer
	Init("text", "info", &buf)

	ctx := NewContext(context.Background(), WithRun(FromContext(context.Background()), "run-7"))
	Ctx(ctx, "session").Info("streams initialized")
	Ctx(context.Background(), "session").Info("no run")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "runId=run-7") || !strings.Contains(lines[0], "component=session") {
		t.Errorf("context logger lost attributes: %s", lines[0])
	}
	if strings.Contains(lines[1], "runId=") || !strings.Contains(lines[1], "component=session") {
		t.Errorf("default logger should carry only the component: %s", lines[1])
	}
}
