package logutil

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLoggerTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelTrace)

	logger.Log(t.Context(), LevelTrace, "tensor", "shape", []int{1, 3})
	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Errorf("erwartet level=TRACE, erhalten %q", buf.String())
	}
	if !strings.Contains(buf.String(), "source=logutil_test.go") {
		t.Errorf("erwartet kurze Quelle, erhalten %q", buf.String())
	}
}

func TestNewLoggerInfoHidesDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)

	logger.Debug("versteckt")
	logger.Info("sichtbar")

	if strings.Contains(buf.String(), "versteckt") {
		t.Errorf("Debug-Meldung sollte fehlen: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "sichtbar") || strings.Contains(buf.String(), "source=") {
		t.Errorf("unerwartete Ausgabe %q", buf.String())
	}
}

func TestTraceUsesDefault(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	slog.SetDefault(NewLogger(&buf, LevelTrace))
	Trace("hallo", "k", 1)
	if !strings.Contains(buf.String(), "msg=hallo") || !strings.Contains(buf.String(), "k=1") {
		t.Errorf("unerwartete Ausgabe %q", buf.String())
	}

	buf.Reset()
	slog.SetDefault(NewLogger(&buf, slog.LevelDebug))
	Trace("still")
	if buf.Len() != 0 {
		t.Errorf("Trace unter Debug sollte nichts ausgeben: %q", buf.String())
	}
}
