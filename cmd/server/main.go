package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/arunvijo/SmartOPDAgent/config"
	"github.com/arunvijo/SmartOPDAgent/internal/api/handler"
	"github.com/arunvijo/SmartOPDAgent/internal/api/router"
	"github.com/arunvijo/SmartOPDAgent/internal/client/agent"
	"github.com/arunvijo/SmartOPDAgent/internal/client/otp"
	"github.com/arunvijo/SmartOPDAgent/internal/dto"
	"github.com/arunvijo/SmartOPDAgent/internal/identity"
	"github.com/arunvijo/SmartOPDAgent/internal/repository"
	"github.com/arunvijo/SmartOPDAgent/internal/service"
	"github.com/arunvijo/SmartOPDAgent/pkg/database"
	"github.com/arunvijo/SmartOPDAgent/pkg/events"
	"github.com/arunvijo/SmartOPDAgent/pkg/jwt"
	applogger "github.com/arunvijo/SmartOPDAgent/pkg/logger"
	"github.com/arunvijo/SmartOPDAgent/pkg/metrics"
	"github.com/arunvijo/SmartOPDAgent/pkg/ratelimit"
	"github.com/arunvijo/SmartOPDAgent/pkg/redis"
	"github.com/arunvijo/SmartOPDAgent/pkg/tracer"
)

func main() {
	if err := newRootCmd(runServer).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// newRootCmd 构建命令树；serve 为启动 HTTP 服务的入口
func newRootCmd(serve func(configPath string) error) *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "smartopd",
		Short:         "Smart OPD 门诊预约后端",
		SilenceUsage:  true,
		SilenceErrors: true,
		// 不带子命令时等同于 serve
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径（默认查找 ./config/config.yaml）")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	})
	rootCmd.AddCommand(migrateCmd(&configPath))

	return rootCmd
}

func migrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "数据库迁移",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "执行全部未应用的迁移",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(*configPath, database.RunMigrations)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "回滚一个版本",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(*configPath, database.RollbackMigration)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "查看当前迁移版本",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(*configPath, func(db *sql.DB, logger *zap.Logger) error {
				version, dirty, err := database.MigrationVersion(db)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", version, dirty)
				return nil
			})
		},
	})

	return cmd
}

// bootstrap 加载配置并初始化日志
func bootstrap(configPath string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("加载配置失败: %w", err)
	}
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return cfg, logger, nil
}

func withDB(configPath string, fn func(db *sql.DB, logger *zap.Logger) error) error {
	cfg, logger, err := bootstrap(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		return fmt.Errorf("数据库连接失败: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	defer sqlDB.Close()

	return fn(sqlDB, logger)
}

func runServer(configPath string) error {
	// 1. 加载配置 + 初始化日志
	cfg, logger, err := bootstrap(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
	)

	// 2. 链路追踪
	tp, err := tracer.Init(context.Background(), &cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("关闭 TracerProvider 失败", zap.Error(err))
		}
	}()

	// 3. 连接数据库并执行迁移
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		return fmt.Errorf("数据库连接失败: %w", err)
	}
	defer closeDB(db, logger)
	logger.Info("数据库连接成功")

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}

	// 4. 连接 Redis（可选：连接失败时降级运行，不中断启动）
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，令牌黑名单与档案缓存不可用，限流与通知广播改用进程内实现", zap.Error(err))
		rdb = nil
	} else {
		defer rdb.Close()
	}

	// 5. 指标、事件
	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(cfg.Metrics.Namespace, nil)
	}
	publisher := events.NewPublisher(&cfg.Events, logger)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("关闭事件发布器失败", zap.Error(err))
		}
	}()

	// 6. 依赖注入: Repository → Identity Gate → Service → Handler
	jwtMgr := jwt.NewManager(&cfg.Auth)
	repo := repository.NewRepository(db)

	infra := service.Infra{
		Agent:   agent.New(&cfg.Agent, logger),
		OTP:     otp.New(&cfg.OTP, logger),
		Metrics: collector,
		Events:  publisher,
	}
	var gateOpts []identity.Option
	var authLimiter ratelimit.Limiter
	onLimitErr := func(err error) { logger.Warn("Redis 限流失败，改用进程内限流", zap.Error(err)) }

	// rdb 为 nil 时不能赋给接口字段，否则得到非 nil 接口
	if rdb != nil {
		gateOpts = append(gateOpts,
			identity.WithBlacklist(rdb),
			identity.WithProfileCache(rdb, cfg.Identity.ProfileCacheTTL),
		)
		infra.Blacklist = rdb
		infra.Broker = service.NewRedisBroker(rdb)
		infra.OTPLimiter = ratelimit.New(rdb, cfg.OTP.SendLimit, cfg.OTP.SendWindow, onLimitErr)
		authLimiter = ratelimit.New(rdb, cfg.Server.AuthRateLimit, cfg.Server.AuthRateWindow, onLimitErr)
	} else {
		infra.OTPLimiter = ratelimit.New(nil, cfg.OTP.SendLimit, cfg.OTP.SendWindow, nil)
		authLimiter = ratelimit.New(nil, cfg.Server.AuthRateLimit, cfg.Server.AuthRateWindow, nil)
	}

	gate := identity.NewGate(jwtMgr, repo.User, cfg.Identity.ProfileFetchTimeout, logger, gateOpts...)
	infra.Profiles = gate

	svc := service.NewService(cfg, repo, jwtMgr, infra, logger)
	h := handler.NewHandler(svc)

	// 7. 初始化路由
	if err := dto.RegisterValidators(); err != nil {
		return fmt.Errorf("注册参数校验规则失败: %w", err)
	}
	engine := router.Setup(cfg, h, router.Deps{
		Identity: gate,
		Limiter:  authLimiter,
		Metrics:  collector,
	}, logger)

	// 8. 启动 HTTP 服务器（优雅关闭）
	// 关闭时先取消 baseCtx，结束仍在推送的 SSE 连接
	baseCtx, stopStreams := context.WithCancel(context.Background())
	defer stopStreams()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 9. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))
	case err := <-errCh:
		return fmt.Errorf("HTTP 服务器异常: %w", err)
	}

	stopStreams()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	logger.Info("服务器已关闭")
	return nil
}

func closeDB(db *gorm.DB, logger *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Warn("关闭数据库连接失败", zap.Error(err))
	}
}
