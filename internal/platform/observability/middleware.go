package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/shipperhq/productpage-api/internal/platform/requestctx"
)

var tracer = otel.Tracer("github.com/shipperhq/productpage-api/internal/platform/observability")

// TraceMiddleware starts a server span per request and stores trace metadata
// plus a request-scoped logger on the context.
func TraceMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			spanName := fmt.Sprintf("%s %s", SanitizeMethod(r.Method), SanitizeRoute(r.URL.Path))
			ctx, span := tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()

			span.SetAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
			)

			spanCtx := span.SpanContext()
			info := requestctx.TraceInfo{
				TraceID: spanCtx.TraceID().String(),
				SpanID:  spanCtx.SpanID().String(),
				Sampled: spanCtx.IsSampled(),
			}
			ctx = requestctx.WithTrace(ctx, info)

			reqLogger := logger.With(
				zap.String("request_id", middleware.GetReqID(ctx)),
				zap.String("trace_id", info.TraceID),
			)
			ctx = requestctx.WithLogger(ctx, reqLogger)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogger emits one structured access log line per request.
func RequestLogger() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			requestctx.Logger(r.Context()).Info("http request",
				zap.String("method", SanitizeMethod(r.Method)),
				zap.String("route", SanitizeRoute(r.URL.Path)),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
