package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// QueryLoggerConfig tunes SQL logging for the payment store.
type QueryLoggerConfig struct {
	Level        gormlogger.LogLevel
	SlowQuery    time.Duration
	SkipNotFound bool
}

// DefaultQueryLoggerConfig keeps SQL quiet unless a query is slow or failing.
// Record-not-found is skipped: reference and member lookups miss routinely and
// the handlers already map those to 404s.
func DefaultQueryLoggerConfig() QueryLoggerConfig {
	return QueryLoggerConfig{
		Level:        gormlogger.Warn,
		SlowQuery:    200 * time.Millisecond,
		SkipNotFound: true,
	}
}

// QueryLogger adapts gorm's logger interface onto the request-scoped zap
// logger so SQL lines carry the same correlation fields as the HTTP line.
type QueryLogger struct {
	cfg QueryLoggerConfig
}

func NewQueryLogger(cfg QueryLoggerConfig) *QueryLogger {
	return &QueryLogger{cfg: cfg}
}

func (l *QueryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *l
	next.cfg.Level = level
	return &next
}

func (l *QueryLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Info, msg, data)
}

func (l *QueryLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Warn, msg, data)
}

func (l *QueryLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Error, msg, data)
}

func (l *QueryLogger) message(ctx context.Context, level gormlogger.LogLevel, msg string, data []interface{}) {
	if l.cfg.Level < level {
		return
	}
	fields := []zap.Field{zap.String("component", "gorm")}
	if len(data) > 0 {
		fields = append(fields, zap.Any("data", data))
	}
	log := FromContext(ctx)
	switch level {
	case gormlogger.Error:
		log.Error(msg, fields...)
	case gormlogger.Warn:
		log.Warn(msg, fields...)
	default:
		log.Info(msg, fields...)
	}
}

// Trace reports each statement at a level derived from its outcome: errors at
// error, slow queries at warn, everything else only when Info is enabled.
func (l *QueryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.cfg.Level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	notFound := errors.Is(err, gormlogger.ErrRecordNotFound)

	switch {
	case err != nil && !(notFound && l.cfg.SkipNotFound) && l.cfg.Level >= gormlogger.Error:
		l.statement(ctx, fc, elapsed, err, zap.ErrorLevel)
	case l.cfg.SlowQuery > 0 && elapsed > l.cfg.SlowQuery && l.cfg.Level >= gormlogger.Warn:
		l.statement(ctx, fc, elapsed, nil, zap.WarnLevel)
	case l.cfg.Level >= gormlogger.Info:
		l.statement(ctx, fc, elapsed, nil, zap.DebugLevel)
	}
}

// ParamsFilter drops bound values from logged SQL. Binds carry member emails
// and payment references; the statement shape is enough for diagnosis.
func (l *QueryLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

func (l *QueryLogger) statement(ctx context.Context, fc func() (string, int64), elapsed time.Duration, err error, level zapcore.Level) {
	sql, rows := fc()
	fields := []zap.Field{
		zap.String("component", "gorm"),
		zap.String("sql", strings.TrimSpace(sql)),
		zap.String("verb", sqlVerb(sql)),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows", rows))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}

	log := FromContext(ctx)
	switch level {
	case zap.ErrorLevel:
		log.Error("sql", fields...)
	case zap.WarnLevel:
		log.Warn("sql", fields...)
	default:
		log.Debug("sql", fields...)
	}
}

// sqlVerb extracts the leading statement keyword, skipping CTE prefixes.
func sqlVerb(sql string) string {
	for _, token := range strings.Fields(strings.ToUpper(sql)) {
		switch strings.Trim(token, "();") {
		case "SELECT", "INSERT", "UPDATE", "DELETE":
			return strings.Trim(token, "();")
		}
	}
	return "OTHER"
}

var _ gormlogger.Interface = (*QueryLogger)(nil)
