package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestContextWithRequestID(t *testing.T) {
	tests := []struct {
		name      string
		ctx       context.Context
		requestID string
		want      string
	}{
		{
			name:      "nil context",
			ctx:       nil,
			requestID: "test-id-123",
			want:      "test-id-123",
		},
		{
			name:      "background context",
			ctx:       context.Background(),
			requestID: "req-456",
			want:      "req-456",
		},
		{
			name:      "empty request ID",
			ctx:       context.Background(),
			requestID: "",
			want:      "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := ContextWithRequestID(tt.ctx, tt.requestID)
			got := RequestIDFromContext(ctx)
			if got != tt.want {
				t.Errorf("RequestIDFromContext() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContextWithJobID(t *testing.T) {
	ctx := ContextWithJobID(context.Background(), "job-1")
	if got := JobIDFromContext(ctx); got != "job-1" {
		t.Errorf("JobIDFromContext() = %v, want job-1", got)
	}
	if got := JobIDFromContext(context.Background()); got != "" {
		t.Errorf("JobIDFromContext() on empty ctx = %v, want empty", got)
	}
	if got := JobIDFromContext(nil); got != "" { //nolint:staticcheck // nil context is part of the contract
		t.Errorf("JobIDFromContext(nil) = %v, want empty", got)
	}
}

func TestWithContextFields(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithJobID(ctx, "job-9")

	logger := WithContext(ctx, base)
	logger.Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if entry["request_id"] != "req-1" {
		t.Errorf("request_id = %v, want req-1", entry["request_id"])
	}
	if entry["job_id"] != "job-9" {
		t.Errorf("job_id = %v, want job-9", entry["job_id"])
	}
}

func TestWithContextNoFields(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	logger := WithContext(context.Background(), base)
	logger.Info().Msg("plain")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if _, ok := entry["request_id"]; ok {
		t.Error("request_id should be absent on a bare context")
	}
}
