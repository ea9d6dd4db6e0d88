package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"dealerhub/internal/workflow"
)

var tracer = otel.Tracer("dealerhub/internal/server")

func NewRouter(ctrls *workflow.Controllers, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", ctrls.Orders.Submit)
		r.Route("/{orderId}", func(r chi.Router) {
			r.Get("/", ctrls.Orders.Get)
			r.Put("/status", ctrls.Orders.UpdateStatus)
			r.Post("/cancel", ctrls.Orders.Cancel)
			r.Post("/deposit", ctrls.Orders.PayDeposit)
			r.Post("/final-payment", ctrls.Orders.PayFinal)
			r.Post("/contracts", ctrls.Contracts.Create)
		})
	})

	r.Route("/contracts/{contractId}", func(r chi.Router) {
		r.Get("/", ctrls.Contracts.Get)
		r.Put("/", ctrls.Contracts.Edit)
		r.Post("/submit", ctrls.Contracts.Submit)
		r.Post("/sign", ctrls.Contracts.Sign)
		r.Post("/cancel", ctrls.Contracts.Cancel)
	})

	r.Route("/payments", func(r chi.Router) {
		r.Post("/callback", ctrls.Payments.Callback)
		r.Get("/vnpay/return", ctrls.Payments.VNPayReturn)
	})

	r.Route("/distributions", func(r chi.Router) {
		r.Post("/", ctrls.Distributions.Create)
		r.Route("/{distributionId}", func(r chi.Router) {
			r.Get("/", ctrls.Distributions.Get)
			r.Put("/status", ctrls.Distributions.UpdateStatus)
			r.Put("/complete", ctrls.Distributions.Complete)
		})
	})

	return r
}

// requestLogger opens a server span per request and logs its outcome.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.request.method", r.Method),
					attribute.String("url.path", r.URL.Path),
				),
			)
			defer span.End()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			span.SetAttributes(attribute.Int("http.response.status_code", status))
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}

			logger.Info("http request",
				zap.String("requestId", middleware.GetReqID(ctx)),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("latency", time.Since(start)),
			)
		})
	}
}
