package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Domenick1991/tourbooking/api"
	"github.com/Domenick1991/tourbooking/config"
	"github.com/Domenick1991/tourbooking/internal/service/reservation"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Check is a readiness probe of one dependency.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

type Dependencies struct {
	Reservations reservation.UseCase
	Location     *time.Location
	Gatherer     prometheus.Gatherer
	Checks       []Check
	Logger       zerolog.Logger
}

type Servers struct {
	grpcServer *grpc.Server
	health     *health.Server
	httpServer *http.Server
	logger     zerolog.Logger
}

// Run starts the gRPC health server and the HTTP API and blocks until ctx is
// canceled or a server fails.
func Run(ctx context.Context, cfg *config.Config, deps Dependencies) error {
	s := newServers(cfg, deps)

	errCh := make(chan error, 2)

	lis, err := net.Listen("tcp", cfg.GRPC.Address)
	if err != nil {
		return fmt.Errorf("listen gRPC %s: %w", cfg.GRPC.Address, err)
	}
	go func() { errCh <- s.grpcServer.Serve(lis) }()

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.logger.Info().Str("http", cfg.HTTP.Address).Str("grpc", cfg.GRPC.Address).Msg("servers started")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.health.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSeconds)*time.Second)
		defer cancel()
		s.grpcServer.GracefulStop()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		s.logger.Info().Msg("servers stopped")
		return nil
	}
}

func newServers(cfg *config.Config, deps Dependencies) *Servers {
	grpcSrv := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	return &Servers{
		grpcServer: grpcSrv,
		health:     healthSrv,
		httpServer: &http.Server{
			Addr:              cfg.HTTP.Address,
			Handler:           NewRouter(deps),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: deps.Logger,
	}
}

// NewRouter mounts the reservation API together with the operational endpoints.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(deps.Logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/readyz", readiness(deps.Checks))
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")
	api.NewReservationHandler(deps.Reservations, deps.Location).Register(v1.Group("/reservations"))
	api.NewAvailabilityHandler(deps.Reservations, deps.Location).Register(v1.Group("/availability"))
	return router
}

func readiness(checks []Check) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := gin.H{}
		for _, check := range checks {
			if err := check.Probe(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[check.Name] = err.Error()
				continue
			}
			results[check.Name] = "ok"
		}
		c.JSON(status, results)
	}
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		event := logger.Debug()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = logger.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(started)).
			Msg("http request")
	}
}
