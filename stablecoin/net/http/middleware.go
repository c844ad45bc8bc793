package http

import (
	"time"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/opentelemetry"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// WithHTTPLogging assigns a request id, stores a request-scoped logger in the
// user context and logs one line per request.
func WithHTTPLogging(logger log.Logger) fiber.Handler {
	logger = log.OrNop(logger)

	return func(c *fiber.Ctx) error {
		if c.Path() == "/health" {
			return c.Next()
		}

		requestID := c.Get(constant.HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set(constant.HeaderRequestID, requestID)

		reqLogger := logger.With(log.String("request_id", requestID))

		ctx := stablecoin.ContextWithRequestID(c.UserContext(), requestID)
		ctx = stablecoin.ContextWithLogger(ctx, reqLogger)
		c.SetUserContext(ctx)

		start := time.Now()
		err := c.Next()

		reqLogger.Log(ctx, log.LevelInfo, "http request",
			log.String("method", c.Method()),
			log.String("path", c.Path()),
			log.Int("status", c.Response().StatusCode()),
			log.Duration("duration", time.Since(start)))

		return err
	}
}

// WithTelemetry continues the caller's trace and wraps each request in a
// server span.
func WithTelemetry(tracer trace.Tracer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if tracer == nil {
			return c.Next()
		}

		ctx := opentelemetry.ExtractHTTPContext(c)
		ctx = stablecoin.ContextWithTracer(ctx, tracer)

		ctx, span := tracer.Start(ctx, c.Method()+" "+c.Path(), trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		c.SetUserContext(ctx)

		err := c.Next()

		span.SetAttributes(
			attribute.String("http.request.method", c.Method()),
			attribute.Int("http.response.status_code", c.Response().StatusCode()),
		)

		if err != nil {
			opentelemetry.HandleSpanError(&span, "handler error", err)
		}

		return err
	}
}
