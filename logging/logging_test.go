package logging_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/mtconnect-go/agentcore/logging"
)

func TestWriterDefaultsToStdoutWhenUnset(t *testing.T) {
	if logging.Writer(context.Background()) == nil {
		t.Fatal("expected a non-nil default writer")
	}
}

func TestWithWriterIsRetrievedByWriter(t *testing.T) {
	var buf bytes.Buffer
	ctx := logging.WithWriter(context.Background(), &buf)
	if logging.Writer(ctx) != &buf {
		t.Fatal("expected Writer to return the buffer stashed by WithWriter")
	}
}

func TestFromContextLogsToStashedWriter(t *testing.T) {
	var buf bytes.Buffer
	ctx := logging.WithWriter(context.Background(), &buf)
	logging.FromContext(ctx).Info("buffer rolled over", "sequence", 42)

	out := buf.String()
	if !strings.Contains(out, "buffer rolled over") || !strings.Contains(out, "sequence=42") {
		t.Fatalf("expected log line to mention message and attr, got: %s", out)
	}
}
