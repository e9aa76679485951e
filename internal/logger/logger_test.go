package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		level       string
		wantLevel   zapcore.Level
		wantErr     bool
	}{
		{"development defaults to debug", "development", "", zapcore.DebugLevel, false},
		{"production defaults to info", "production", "", zapcore.InfoLevel, false},
		{"explicit level wins", "production", "warn", zapcore.WarnLevel, false},
		{"invalid level", "development", "loud", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.environment, tt.level)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !l.Core().Enabled(tt.wantLevel) {
				t.Errorf("level %v not enabled", tt.wantLevel)
			}
			if tt.wantLevel > zapcore.DebugLevel && l.Core().Enabled(tt.wantLevel-1) {
				t.Errorf("level %v unexpectedly enabled", tt.wantLevel-1)
			}
		})
	}
}
