package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

const defaultSlowQueryThreshold = 200 * time.Millisecond

// zapGORMLogger routes GORM's internal messages (SQL traces, slow query
// warnings, errors) through the application zap logger.
type zapGORMLogger struct {
	log           *zap.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

// newZapGORMLogger returns a gormlogger.Interface backed by log. A zero level
// defaults to gormlogger.Warn. gorm.ErrRecordNotFound is never logged as an
// error: repositories translate it into ErrNotFound.
func newZapGORMLogger(log *zap.Logger, level gormlogger.LogLevel, slow time.Duration) gormlogger.Interface {
	if level == 0 {
		level = gormlogger.Warn
	}
	switch {
	case slow == 0:
		slow = defaultSlowQueryThreshold
	case slow < 0:
		slow = 0
	}
	return &zapGORMLogger{
		log:           log.WithOptions(zap.AddCallerSkip(3)),
		level:         level,
		slowThreshold: slow,
	}
}

// LogMode returns a copy of the logger at the given level. GORM calls it for
// per-statement overrides such as db.Debug().
func (l *zapGORMLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *zapGORMLogger) Info(_ context.Context, msg string, args ...any) {
	l.printf(gormlogger.Info, zap.InfoLevel, msg, args)
}

func (l *zapGORMLogger) Warn(_ context.Context, msg string, args ...any) {
	l.printf(gormlogger.Warn, zap.WarnLevel, msg, args)
}

func (l *zapGORMLogger) Error(_ context.Context, msg string, args ...any) {
	l.printf(gormlogger.Error, zap.ErrorLevel, msg, args)
}

func (l *zapGORMLogger) printf(min gormlogger.LogLevel, lvl zapcore.Level, msg string, args []any) {
	if l.level < min {
		return
	}
	if ce := l.log.Check(lvl, fmt.Sprintf(msg, args...)); ce != nil {
		ce.Write()
	}
}

// Trace logs one SQL statement with its latency and affected rows.
func (l *zapGORMLogger) Trace(_ context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []zap.Field{
		zap.String("sql", sql),
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("caller", utils.FileWithLineNum()),
	}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error:
		l.log.Error("query failed", append(fields, zap.Error(err))...)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		l.log.Warn("slow query", fields...)
	case l.level >= gormlogger.Info:
		l.log.Debug("query", fields...)
	}
}
