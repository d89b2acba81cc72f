package server

import (
	"context"
	"strconv"

	"InferGate/internal/conf"
	"InferGate/internal/server/middleware"
	"InferGate/internal/service"
	pkglog "InferGate/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// NewHTTPServer new an HTTP server.
func NewHTTPServer(c *conf.Server, analysisService *service.AnalysisService, logger log.Logger) *http.Server {
	logHelper := pkglog.NewLogHelper(logger)

	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			middleware.Auth(logHelper),
			middleware.Logging(logHelper),
		),
	}
	if c.Http.Network != "" {
		opts = append(opts, http.Network(c.Http.Network))
	}
	if c.Http.Addr != "" {
		opts = append(opts, http.Address(c.Http.Addr))
	}
	if c.Http.Timeout != nil {
		opts = append(opts, http.Timeout(c.Http.Timeout.AsDuration()))
	}
	srv := http.NewServer(opts...)

	registerRoutes(srv, analysisService)

	return srv
}

// registerRoutes wires the engine's HTTP surface.
func registerRoutes(srv *http.Server, svc *service.AnalysisService) {
	r := srv.Route("/")

	r.POST("/v1/analyze", handleAnalyze(svc))
	r.GET("/v1/health", handleHealth(svc))
	r.GET("/v1/alerts", handleAlerts(svc))
	r.GET("/v1/providers", handleProviders(svc))
}

func handleAnalyze(svc *service.AnalysisService) http.HandlerFunc {
	return func(ctx http.Context) error {
		var req service.AnalyzeRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}

		http.SetOperation(ctx, "/v1/analyze")
		reply, err := ctx.Middleware(func(c context.Context, in interface{}) (interface{}, error) {
			return svc.Analyze(c, in.(*service.AnalyzeRequest))
		})(ctx, &req)
		if err != nil {
			return err
		}

		return ctx.Result(200, reply)
	}
}

func handleHealth(svc *service.AnalysisService) http.HandlerFunc {
	return func(ctx http.Context) error {
		http.SetOperation(ctx, "/v1/health")
		reply, err := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return svc.Health(c)
		})(ctx, nil)
		if err != nil {
			return err
		}

		return ctx.Result(200, reply)
	}
}

func handleAlerts(svc *service.AnalysisService) http.HandlerFunc {
	return func(ctx http.Context) error {
		limit := 0
		if raw := ctx.Query().Get("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil {
				limit = parsed
			}
		}

		http.SetOperation(ctx, "/v1/alerts")
		reply, err := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return svc.Alerts(c, limit)
		})(ctx, nil)
		if err != nil {
			return err
		}

		return ctx.Result(200, reply)
	}
}

func handleProviders(svc *service.AnalysisService) http.HandlerFunc {
	return func(ctx http.Context) error {
		http.SetOperation(ctx, "/v1/providers")
		reply, err := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return svc.Providers(c)
		})(ctx, nil)
		if err != nil {
			return err
		}

		return ctx.Result(200, reply)
	}
}
