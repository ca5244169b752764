package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestRun_RecordsOneSpanPerRecord(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	_, err := Run(context.Background(), makeBatch(3), failAt(1), Options{ContinueOnFail: true, Stage: "summarize"})
	require.NoError(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 3)
	failed := 0
	for _, s := range spans {
		assert.Equal(t, "pipeline.record", s.Name())
		assert.Contains(t, s.Attributes(), attribute.String("stage", "summarize"))
		if s.Status().Code == codes.Error {
			failed++
			assert.Contains(t, s.Attributes(), attribute.Bool("success", false))
		}
	}
	assert.Equal(t, 1, failed)
}
