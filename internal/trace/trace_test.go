package trace

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestDisabledIsNoop(t *testing.T) {
	require.NoError(t, Init(false, "", nil))
	assert.False(t, Enabled())

	ctx, span := StartSpan(context.Background(), "noop")
	assert.NotNil(t, ctx)
	assert.False(t, span.SpanContext().IsValid())
	End(span, nil)
}

func TestEnabledExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init(true, "simtrader-test", &buf))
	assert.True(t, Enabled())

	_, span := StartSpan(context.Background(), "worker.cycle", attribute.String("simulation_id", "sim-1"))
	assert.True(t, span.SpanContext().IsValid())
	End(span, errors.New("advisor timeout"))

	require.NoError(t, Shutdown(context.Background()))
	assert.False(t, Enabled())
	assert.Contains(t, buf.String(), "worker.cycle")
	assert.Contains(t, buf.String(), "advisor timeout")
}
