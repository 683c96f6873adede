package logger

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

var base = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Ctx 返回一个附带当前链路 trace_id 的 logger。
// 没有活跃 Span 时退化为全局 logger。
func Ctx(ctx context.Context) *zerolog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return &base
	}
	l := base.With().
		Str("trace_id", sc.TraceID().String()).
		Str("span_id", sc.SpanID().String()).
		Logger()
	return &l
}

// SetLevel 调整全局日志级别（测试中用于静音）。
func SetLevel(level zerolog.Level) {
	base = base.Level(level)
}
