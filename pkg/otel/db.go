package otel

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DBSpan 为一条 SQL 创建 client span，operation 取语句的第一个关键字
func DBSpan(ctx context.Context, query string) (context.Context, trace.Span) {
	operation := "query"
	if fields := strings.Fields(query); len(fields) > 0 {
		operation = strings.ToLower(fields[0])
	}
	return Tracer().Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", operation),
			attribute.String("db.statement", query),
		),
	)
}

// EndSpan 根据错误设置 span 状态并结束，ErrNoRows 不算错误
func EndSpan(span trace.Span, err error) {
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case errors.Is(err, pgx.ErrNoRows):
		span.SetStatus(codes.Ok, "no rows")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// UnitOfWorkSpan 为一次事务尝试创建 span
func UnitOfWorkSpan(ctx context.Context, op string, attempt int) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "uow."+op,
		trace.WithAttributes(
			attribute.String("uow.op", op),
			attribute.Int("uow.attempt", attempt),
		),
	)
}
