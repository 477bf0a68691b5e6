package logger

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name          string
		level         Level
		logFunc       func(Logger, string)
		expectedInLog bool
	}{
		{
			name:          "debug message when level is debug",
			level:         LevelDebug,
			logFunc:       func(l Logger, msg string) { l.Debug(msg) },
			expectedInLog: true,
		},
		{
			name:          "info message when level is warn",
			level:         LevelWarn,
			logFunc:       func(l Logger, msg string) { l.Info(msg) },
			expectedInLog: false,
		},
		{
			name:          "warn message when level is warn",
			level:         LevelWarn,
			logFunc:       func(l Logger, msg string) { l.Warn(msg) },
			expectedInLog: true,
		},
		{
			name:          "error message when level is silent",
			level:         LevelSilent,
			logFunc:       func(l Logger, msg string) { l.Error(msg) },
			expectedInLog: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := NewLogger(tt.level, buf)

			tt.logFunc(logger, "unreadable file")

			contains := strings.Contains(buf.String(), "unreadable file")
			if contains != tt.expectedInLog {
				t.Errorf("expected message in log: %v, got: %v (output: %s)",
					tt.expectedInLog, contains, buf.String())
			}
		})
	}
}

func TestLogger_FieldsAndTag(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(LevelInfo, buf)

	logger.Info("file skipped", F("path", "src/a.c"), F("line", 3))

	output := buf.String()
	for _, want := range []string{"[INFO]", "file skipped |", "path=src/a.c", "line=3"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
	if strings.Contains(output, "\x1b[") {
		t.Errorf("expected no color codes for a non-terminal writer, got: %q", output)
	}
}

func TestLogger_WithFieldsSharesLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	base := NewLogger(LevelError, buf)
	child := base.WithFields(F("root", "/src"))

	child.Info("hidden")
	if buf.Len() > 0 {
		t.Fatalf("expected no output, got: %s", buf.String())
	}

	base.SetLevel(LevelInfo)
	child.Info("walking", F("depth", 2))

	output := buf.String()
	if !strings.Contains(output, "root=/src depth=2") {
		t.Errorf("expected persistent then message fields, got: %s", output)
	}
}

func TestLogger_ConcurrentWrites(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(LevelInfo, buf)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			logger.WithFields(F("worker", n)).Info("parsed")
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 8 {
		t.Errorf("expected 8 lines, got %d", len(lines))
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"warning", LevelWarn, false},
		{" error ", LevelError, false},
		{"silent", LevelSilent, false},
		{"loud", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelWarn, "WARN"},
		{LevelSilent, "SILENT"},
		{Level(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("Level.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func BenchmarkLogger_Warn(b *testing.B) {
	logger := NewLogger(LevelInfo, bytes.NewBuffer(make([]byte, 0, 1024*1024)))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Warn("cannot read file", F("iteration", i))
	}
}
