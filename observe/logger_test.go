package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

// TestLogger_IncludesNodeFields verifies node fields are present in log output.
func TestLogger_IncludesNodeFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	meta := NodeMeta{ID: "fetch_price", Kind: "http_poll", Category: "source"}

	nodeLogger := logger.WithNode(meta)
	nodeLogger.Info(context.Background(), "test message")

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v\nOutput: %s", err, buf.String())
	}

	if v, ok := logEntry["node.id"].(string); !ok || v != "fetch_price" {
		t.Errorf("expected node.id='fetch_price', got %v", logEntry["node.id"])
	}
	if v, ok := logEntry["node.kind"].(string); !ok || v != "http_poll" {
		t.Errorf("expected node.kind='http_poll', got %v", logEntry["node.kind"])
	}
	if v, ok := logEntry["node.category"].(string); !ok || v != "source" {
		t.Errorf("expected node.category='source', got %v", logEntry["node.category"])
	}
}

// TestLogger_IncludesCorrelationID verifies run_id is pulled from the context.
func TestLogger_IncludesCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	ctx := WithCorrelationID(context.Background(), "exec_g1_ab12")
	logger.Info(ctx, "run started")

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v", err)
	}

	if v, ok := logEntry["run_id"].(string); !ok || v != "exec_g1_ab12" {
		t.Errorf("expected run_id='exec_g1_ab12', got %v", logEntry["run_id"])
	}
}

// TestLogger_IncludesDuration verifies duration_ms field is present.
func TestLogger_IncludesDuration(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	nodeLogger := logger.WithNode(NodeMeta{ID: "n1"})
	nodeLogger.Info(context.Background(), "test message",
		Field{Key: "duration_ms", Value: 50.5},
	)

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v", err)
	}

	if v, ok := logEntry["duration_ms"].(float64); !ok || v != 50.5 {
		t.Errorf("expected duration_ms=50.5, got %v", logEntry["duration_ms"])
	}
}

// TestLogger_ErrorLevel verifies error log level and error field.
func TestLogger_ErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	nodeLogger := logger.WithNode(NodeMeta{ID: "n_error"})
	nodeLogger.Error(context.Background(), "execution failed",
		Field{Key: "error", Value: "connection timeout"},
	)

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v", err)
	}

	if v, ok := logEntry["level"].(string); !ok || v != "error" {
		t.Errorf("expected level='error', got %v", logEntry["level"])
	}
	if v, ok := logEntry["error"].(string); !ok || v != "connection timeout" {
		t.Errorf("expected error='connection timeout', got %v", logEntry["error"])
	}
}

// TestLogger_InfoLevel verifies info log level.
func TestLogger_InfoLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)
	logger.WithNode(NodeMeta{ID: "n_info"}).Info(context.Background(), "operation complete")

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v", err)
	}

	if v, ok := logEntry["level"].(string); !ok || v != "info" {
		t.Errorf("expected level='info', got %v", logEntry["level"])
	}
}

// TestLogger_InputsRedactedByDefault verifies inputs are not logged.
func TestLogger_InputsRedactedByDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.WithNode(NodeMeta{ID: "n_sensitive"}).Info(context.Background(), "node executed",
		Field{Key: "input", Value: "secret_password_123"},
	)

	output := buf.String()
	if strings.Contains(output, "secret_password_123") {
		t.Error("raw input should be redacted, but found in output")
	}
	if !strings.Contains(output, "[REDACTED]") {
		t.Error("expected [REDACTED] marker in output")
	}
}

// TestLogger_LevelFiltering verifies log level filtering.
func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("warn", &buf)
	nodeLogger := logger.WithNode(NodeMeta{ID: "n_filtered"})

	nodeLogger.Info(context.Background(), "info message")
	if strings.Contains(buf.String(), "info message") {
		t.Error("info message should be filtered when level is warn")
	}

	nodeLogger.Warn(context.Background(), "warn message")
	if !strings.Contains(buf.String(), "warn message") {
		t.Error("warn message should pass through when level is warn")
	}
}

// TestLogger_DebugLevel verifies debug level filtering.
func TestLogger_DebugLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("debug", &buf)
	logger.WithNode(NodeMeta{ID: "n_debug"}).Debug(context.Background(), "debug message")

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v", err)
	}

	if v, ok := logEntry["level"].(string); !ok || v != "debug" {
		t.Errorf("expected level='debug', got %v", logEntry["level"])
	}
}

// TestLogger_WarnLevel verifies warn level.
func TestLogger_WarnLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)
	logger.WithNode(NodeMeta{ID: "n_warn"}).Warn(context.Background(), "warning message")

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v", err)
	}

	if v, ok := logEntry["level"].(string); !ok || v != "warn" {
		t.Errorf("expected level='warn', got %v", logEntry["level"])
	}
}

// TestLogger_With_AttachesArbitraryFields verifies With() composes fields
// independent of any node identity.
func TestLogger_With_AttachesArbitraryFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)
	scoped := logger.With(Field{Key: "graph_id", Value: "g_trading_v1"})
	scoped.Info(context.Background(), "graph loaded")

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v", err)
	}

	if v, ok := logEntry["graph_id"].(string); !ok || v != "g_trading_v1" {
		t.Errorf("expected graph_id='g_trading_v1', got %v", logEntry["graph_id"])
	}
}
