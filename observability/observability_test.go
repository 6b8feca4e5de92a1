package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestNopTracer(t *testing.T) {
	tracer := NopTracer()
	ctx := context.Background()
	ctx2, span := tracer.StartSpan(ctx, SpanParse)
	if ctx2 != ctx {
		t.Fatalf("nop tracer should return same context")
	}
	span.SetTag("key", "value")
	span.SetError(nil)
	span.Finish()
}

func TestSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	log := NewSlogLogger(slog.New(h)).With(String("doc", "abc"))

	log.Debug("hidden")
	log.Info("loaded", Int("pages", 2), Error("err", errors.New("boom")))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug message should be filtered: %s", out)
	}
	for _, want := range []string{"msg=loaded", "doc=abc", "pages=2", "err=boom"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %s", want, out)
		}
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != slog.LevelDebug || ParseLevel("WARN") != slog.LevelWarn {
		t.Fatalf("unexpected levels")
	}
	if ParseLevel("nonsense") != slog.LevelInfo {
		t.Fatalf("fallback should be info")
	}
	if OrNop(nil) == nil {
		t.Fatalf("OrNop(nil) returned nil")
	}
}

func TestNewHandlerLogger(t *testing.T) {
	var buf bytes.Buffer
	NewHandlerLogger(&buf, "warn", "json").Info("quiet")
	NewHandlerLogger(&buf, "warn", "json").Warn("loud")
	if out := buf.String(); strings.Contains(out, "quiet") || !strings.Contains(out, `"msg":"loud"`) {
		t.Fatalf("unexpected json output %s", out)
	}
	buf.Reset()
	NewHandlerLogger(&buf, "info", "TEXT").Info("plain")
	if !strings.Contains(buf.String(), "msg=plain") {
		t.Fatalf("unexpected text output %s", buf.String())
	}
}
