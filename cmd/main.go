package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/PulpFictionApps/veterinaria/internal/clock"
	"github.com/PulpFictionApps/veterinaria/internal/config"
	"github.com/PulpFictionApps/veterinaria/internal/db"
	"github.com/PulpFictionApps/veterinaria/internal/lock"
	"github.com/PulpFictionApps/veterinaria/internal/logger"
	"github.com/PulpFictionApps/veterinaria/internal/model"
	"github.com/PulpFictionApps/veterinaria/internal/repository"
	"github.com/PulpFictionApps/veterinaria/internal/scheduling"
	"github.com/PulpFictionApps/veterinaria/internal/service"
	"github.com/PulpFictionApps/veterinaria/internal/sweeper"
)

func main() {
	// 1. Конфиг из config.yaml и env.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// 2. Логгер.
	lg, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	// 3. БД через GORM и миграции.
	gormDB, err := db.Open(&cfg.DB)
	if err != nil {
		lg.Fatal("init db", zap.Error(err))
	}
	if err := model.AutoMigrate(gormDB); err != nil {
		lg.Fatal("auto migrate", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		lg.Fatal("sql DB", zap.Error(err))
	}
	defer sqlDB.Close()

	// 4. Часы расписания и ядро.
	clk, err := clock.New(cfg.Scheduling.TimeZone, cfg.ExpiryTolerance())
	if err != nil {
		lg.Fatal("init clock", zap.Error(err))
	}
	store := repository.NewStore(gormDB)
	engine := scheduling.NewEngine(store, clk, lg, scheduling.Options{
		DefaultDurationMin:   cfg.Scheduling.DefaultDurationMin,
		MaxDurationMin:       cfg.Scheduling.MaxDurationMin,
		ReleaseFullFootprint: cfg.Scheduling.ReleaseFullFootprint,
	})

	// 5. Аренда в Redis, если он настроен: чистку выполняет одна реплика.
	var locker sweeper.Locker
	if cfg.Redis.Addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rdb, err := lock.NewClient(ctx, &cfg.Redis)
		cancel()
		if err != nil {
			lg.Fatal("init redis", zap.Error(err))
		}
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb)
	}

	// 6. Планировщик чистки.
	sw := sweeper.New(store, clk, lg, sweeper.Options{
		Schedule:  cfg.Sweep.Schedule,
		Retention: cfg.Retention(),
		Timeout:   cfg.SweepTimeout(),
		LockTTL:   cfg.SweepLockTTL(),
		OnStart:   cfg.Sweep.OnStart,
	}, locker)
	if err := sw.Start(); err != nil {
		lg.Fatal("start sweeper", zap.Error(err))
	}

	// 7. gRPC-сервер.
	limiter := service.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		service.LoggingInterceptor(lg.Named("rpc")),
		limiter.Interceptor(),
	))
	service.RegisterSchedulingServiceServer(grpcServer, service.NewSchedulingService(engine, sw, lg))

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(service.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		lg.Fatal("listen", zap.String("addr", cfg.GRPCAddr), zap.Error(err))
	}

	lg.Info("scheduling gRPC server listening",
		zap.String("addr", cfg.GRPCAddr),
		zap.String("zone", clk.Location().String()),
		zap.Time("next_slot_boundary", clk.NextQuarterBoundary(clk.Now())),
		zap.String("db_driver", cfg.DB.Driver),
	)

	// 8. Запускаем сервер в горутине.
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			lg.Fatal("grpc serve", zap.Error(err))
		}
	}()

	// 9. Грейсфул-шатдаун по сигналу.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	lg.Info("shutting down")
	healthSrv.Shutdown()
	grpcServer.GracefulStop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.SweepTimeout())
	defer cancel()
	sw.Stop(ctx)
}
