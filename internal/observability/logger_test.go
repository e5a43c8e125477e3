package observability

import "testing"

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name  string
		level string
	}{
		{"debug level", "debug"},
		{"info level", "info"},
		{"warn level", "warn"},
		{"error level", "error"},
		{"unknown level falls back to info", "verbose"},
		{"empty level falls back to info", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.level)
			if err != nil {
				t.Fatalf("NewLogger(%q) returned error: %v", tt.level, err)
			}
			if logger == nil {
				t.Fatalf("NewLogger(%q) returned nil logger", tt.level)
			}
			_ = logger.Sync()
		})
	}
}
