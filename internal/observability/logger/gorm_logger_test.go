package logger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func observedContext(t *testing.T) (context.Context, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)
	return context.Background(), logs
}

func TestTraceSkipsRecordNotFound(t *testing.T) {
	ctx, logs := observedContext(t)
	l := NewQueryLogger(DefaultQueryLoggerConfig())

	l.Trace(ctx, time.Now(), func() (string, int64) {
		return "SELECT * FROM payment_records WHERE reference = ?", 0
	}, gormlogger.ErrRecordNotFound)

	assert.Zero(t, logs.Len())
}

func TestTraceLogsErrorsAndSlowQueries(t *testing.T) {
	ctx, logs := observedContext(t)
	l := NewQueryLogger(DefaultQueryLoggerConfig())

	l.Trace(ctx, time.Now(), func() (string, int64) {
		return "UPDATE payment_records SET status = ?", -1
	}, assert.AnError)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zap.ErrorLevel, logs.All()[0].Level)

	l.Trace(ctx, time.Now().Add(-time.Second), func() (string, int64) {
		return "SELECT 1", 1
	}, nil)
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, zap.WarnLevel, logs.All()[1].Level)
}

func TestSQLVerb(t *testing.T) {
	assert.Equal(t, "UPDATE", sqlVerb("UPDATE payment_records SET status = 'verified'"))
	assert.Equal(t, "SELECT", sqlVerb("WITH open AS (SELECT 1) SELECT * FROM open"))
	assert.Equal(t, "OTHER", sqlVerb("PRAGMA busy_timeout = 5000"))
}

func TestParamsFilterDropsBinds(t *testing.T) {
	l := NewQueryLogger(DefaultQueryLoggerConfig())
	sql, params := l.ParamsFilter(context.Background(), "SELECT ?", "ada@example.edu")
	assert.Equal(t, "SELECT ?", sql)
	assert.Nil(t, params)
}
