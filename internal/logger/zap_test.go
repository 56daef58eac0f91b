package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestToZapLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		InfoLevel:  zapcore.InfoLevel,
		WarnLevel:  zapcore.WarnLevel,
		ErrorLevel: zapcore.ErrorLevel,
		DebugLevel: zapcore.DebugLevel,
		"bogus":    defaultZapLevel,
	}
	for in, want := range cases {
		if got := toZapLevel(in); got != want {
			t.Fatalf("toZapLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetLevel_SharedWithNamedChildren(t *testing.T) {
	l := newZapLogger(InfoLevel)
	child := l.Named("document")

	l.SetLevel(ErrorLevel)
	if child.Level() != "error" {
		t.Fatalf("child level = %s, want error", child.Level())
	}
	if child.Desugar().Core().Enabled(zapcore.WarnLevel) {
		t.Fatalf("warn should be disabled after SetLevel(error)")
	}
}

func TestWith_KeepsWrapperAndLevel(t *testing.T) {
	l := newZapLogger(InfoLevel)
	var child *Logger = l.Named("document").With("path", "/cheesecave/state")

	l.SetLevel(WarnLevel)
	if child.Level() != "warn" {
		t.Fatalf("child level = %s, want warn", child.Level())
	}
	if child.Desugar().Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("info should be disabled after SetLevel(warn)")
	}
}
