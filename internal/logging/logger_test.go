package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestGet_UsesInstalledLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	Get(CategoryRetrieval).Warnf("backend unreachable: %s", "chat_history")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("logged %d entries, want 1", len(entries))
	}
	if got, want := entries[0].LoggerName, string(CategoryRetrieval); got != want {
		t.Fatalf("logger name = %q, want %q", got, want)
	}
	if got, want := entries[0].Message, "backend unreachable: chat_history"; got != want {
		t.Fatalf("message = %q, want %q", got, want)
	}
}

func TestSetLogger_NilFallsBackToNop(t *testing.T) {
	SetLogger(nil)
	// Must not panic.
	Get(CategoryBoot).Info("noop")
}
