package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/common"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/core"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/core/async"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/export"
	repo "github.com/yashgoyal264-hub/airline-invoice-extractor/internal/repository"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/server"
)

func main() {
	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := server.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		os.Exit(1)
	}
	defer db.Close()
	sessionsRepo := repo.NewSessionRepository(db, logger)
	invoicesRepo := repo.NewInvoiceRepository(db, logger)

	proc, err := core.NewFromConfig(cfg, logger, core.WithStore(sessionsRepo, invoicesRepo))
	if err != nil {
		logger.Error("failed to configure processor", "error", err)
		os.Exit(1)
	}
	queue := async.NewBatchQueue(proc, logger,
		async.WithQueueSize(cfg.Server.QueueSize),
		async.WithBatchTimeout(cfg.Server.BatchTimeout),
		async.WithRetention(cfg.Server.StatusRetention),
	)
	sessions := server.NewSessions(sessionsRepo, queue)

	var grpcServer *grpc.Server
	if cfg.Server.GRPCAddr != "" {
		grpcServer = grpc.NewServer()
		hs := health.NewServer()
		healthpb.RegisterHealthServer(grpcServer, hs)
		hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		reflection.Register(grpcServer)
		server.RegisterInvoiceServiceServer(grpcServer, server.NewInvoiceService(proc.Extractor(), sessions, logger))

		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			logger.Error("failed to listen", "addr", cfg.Server.GRPCAddr, "error", err)
			os.Exit(1)
		}
		go func() {
			logger.Info("gRPC serving", "addr", cfg.Server.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("grpc serve failed", "error", err)
				stop()
			}
		}()
	}

	var httpServer *http.Server
	if cfg.Server.HTTPAddr != "" {
		maxSize, _ := cfg.Extraction.MaxFileSizeBytes()
		httpServer = &http.Server{
			Addr: cfg.Server.HTTPAddr,
			Handler: server.NewHTTPHandler(server.HTTPDeps{
				Processor:      proc,
				Queue:          queue,
				Sessions:       sessions,
				Exporter:       export.NewService(logger, export.WithBOM()),
				DB:             db,
				Logger:         logger,
				MaxUploadBytes: maxSize*int64(cfg.Extraction.MaxFiles) + 1<<20,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP serving", "addr", cfg.Server.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http serve failed", "error", err)
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	queue.Shutdown(shutdownCtx)
	logger.Info("stopped")
}
