package logger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestContextFieldsAreAttached(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := FromZap(zap.New(core))

	ctx := WithTraceID(context.Background(), "trace-1")
	ctx = WithTransactionID(ctx, "TX1")
	ctx = WithOperator(ctx, "alice")

	log.Info(ctx, "approved", "amount", 10000, "error", errors.New("boom"))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "trace-1", fields["trace_id"])
	assert.Equal(t, "TX1", fields["transaction_id"])
	assert.Equal(t, "alice", fields["operator"])
	assert.EqualValues(t, 10000, fields["amount"])
	assert.Equal(t, "boom", fields["error"])
}

func TestOddFieldsAreIgnored(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := FromZap(zap.New(core))

	log.Warn(context.Background(), "odd", "dangling", 42, "key-only")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Len(t, fields, 1)
}

func TestGettersOnEmptyContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, GetTransactionID(ctx))
	assert.Empty(t, GetOperator(ctx))
}
