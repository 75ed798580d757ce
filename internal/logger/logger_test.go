package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warning", zapcore.WarnLevel},
		{" error ", zapcore.ErrorLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew(t *testing.T) {
	for _, env := range []string{"development", "production"} {
		log, err := New("warn", env)
		if err != nil {
			t.Fatalf("New(%s): %v", env, err)
		}
		if log.Core().Enabled(zapcore.InfoLevel) {
			t.Errorf("%s: info enabled at warn level", env)
		}
		if !log.Core().Enabled(zapcore.ErrorLevel) {
			t.Errorf("%s: error disabled at warn level", env)
		}
	}
}
