package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tickbook/api/grpcserver"
	"tickbook/api/httpserver"
	"tickbook/config"
	"tickbook/domain/manager"
	"tickbook/infra/kafka"
	"tickbook/infra/logging"
	"tickbook/infra/metrics"
	"tickbook/infra/outbox"
	"tickbook/jobs/broadcaster"
	"tickbook/service"
)

const configFlagName = "config"

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String(configFlagName, "", "Path to the YAML config file")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gRPC order gateway and the HTTP query API",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := cmd.Flags().GetString(configFlagName)
		if err != nil {
			return err
		}
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func serve(ctx context.Context, cfg *config.Config) error {
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer log.Sync()

	// ---------------- Domain ----------------

	bookCfgs, err := cfg.ManagerConfigs()
	if err != nil {
		return err
	}
	books, err := manager.New(bookCfgs)
	if err != nil {
		return err
	}
	for _, bc := range bookCfgs {
		log.Info("book ready",
			zap.Stringer("symbol", bc.Symbol),
			zap.Int64("min_tick", int64(bc.MinTick)),
			zap.Int64("max_tick", int64(bc.MaxTick)),
		)
	}

	// ---------------- Outbox ----------------

	ser, err := outbox.NewSerializer(cfg.Outbox.Encoding)
	if err != nil {
		return err
	}
	ob, err := outbox.Open(outbox.Config{Dir: cfg.Outbox.Dir, Serializer: ser})
	if err != nil {
		return err
	}
	defer ob.Close()

	// ---------------- Service ----------------

	m := metrics.New()
	svc := service.NewOrderService(books, ob, m, log)

	// ---------------- Background Jobs ----------------

	// Deferred after ob.Close so they run first: the broadcaster stops
	// and releases its publisher before the outbox closes.
	ctx, cancel := context.WithCancel(ctx)
	var jobs sync.WaitGroup
	defer jobs.Wait()
	defer cancel()

	errs := make(chan error, 3)

	if cfg.Broadcast.Enabled {
		pub, err := newPublisher(cfg.Broadcast)
		if err != nil {
			return err
		}
		bc := broadcaster.New(ob, pub, broadcaster.Config{
			Interval: cfg.Broadcast.Interval,
			Batch:    cfg.Broadcast.Batch,
		}, log, m)
		jobs.Add(1)
		go func() {
			defer jobs.Done()
			defer bc.Close()
			if err := bc.Run(ctx); err != nil {
				errs <- err
			}
		}()
	}

	// ---------------- gRPC ----------------

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen %s", cfg.GRPC.Addr)
	}
	grpcSrv := grpcserver.NewGRPCServer(svc, log)
	go func() {
		log.Info("gRPC listening", zap.String("addr", cfg.GRPC.Addr))
		errs <- grpcSrv.Serve(lis)
	}()

	// ---------------- HTTP ----------------

	var httpSrv *http.Server
	if cfg.HTTP.Addr != "" {
		httpSrv = &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           httpserver.New(svc, cfg.TickSizes(), m.Handler(), log).Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("HTTP listening", zap.String("addr", cfg.HTTP.Addr))
			if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errs <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err = <-errs:
		log.Error("component exited", zap.Error(err))
	}

	cancel()
	grpcSrv.GracefulStop()
	if httpSrv != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		_ = httpSrv.Shutdown(shutdownCtx)
	}
	return err
}

func newPublisher(cfg config.BroadcastConfig) (broadcaster.Publisher, error) {
	switch cfg.Driver {
	case "kafka-go":
		return kafka.NewProducer(cfg.Brokers, cfg.Topic), nil
	default:
		return broadcaster.NewSaramaPublisher(cfg.Brokers, cfg.Topic)
	}
}
