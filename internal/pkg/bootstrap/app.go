// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"associate-ledger/internal/pkg/logger"
	"associate-ledger/internal/pkg/nacos"
	"associate-ledger/internal/pkg/tracing"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// AppCtx 是注册路由和组装依赖时可用的上下文
type AppCtx struct {
	Ctx    context.Context
	Mux    *http.ServeMux
	Config *Config
}

// AppInfo 包含了启动一个服务所需的特定信息
type AppInfo struct {
	ServiceName string
	// RegisterHandlers 组装依赖并注册路由，返回的 cleanup 在关停时执行
	RegisterHandlers func(appCtx AppCtx) (cleanup func(context.Context), err error)
}

// Init 加载配置文件 (CONFIG_FILE) 并初始化日志。
// 配置了 nacos.config_data_id 时，从 Nacos 拉取远程 YAML 覆盖本地配置。
func Init() error {
	cfg, err := LoadConfig(getEnv("CONFIG_FILE", "config/ledger-service.yaml"))
	if err != nil {
		return err
	}
	logger.Init(cfg.App.Name, cfg.Log.Level, cfg.Log.Format)

	if cfg.Nacos.ServerAddrs != "" && cfg.Nacos.ConfigDataID != "" {
		client, err := nacos.NewClient(cfg.Nacos.ServerAddrs, cfg.Nacos.Namespace, cfg.Nacos.Group)
		if err != nil {
			return err
		}
		defer client.Close()
		content, err := client.GetConfig(cfg.Nacos.ConfigDataID)
		if err != nil {
			return err
		}
		if err := overlay(cfg, []byte(content)); err != nil {
			return errors.WithMessagef(err, "nacos config %s", cfg.Nacos.ConfigDataID)
		}
		applyEnv(cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger.L().Info().Str("data_id", cfg.Nacos.ConfigDataID).Msg("✅ Remote config loaded from Nacos.")
	}

	setCurrentConfig(cfg)
	return nil
}

// StartService 封装了服务的通用启动和优雅关停逻辑，阻塞直到收到退出信号
func StartService(info AppInfo) error {
	cfg := GetCurrentConfig()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Tracer
	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint, cfg.Infra.Jaeger.SampleRatio)
	if err != nil {
		return errors.WithMessage(err, "initialize tracer provider")
	}

	// 2. 组装依赖并注册路由
	mux := http.NewServeMux()
	cleanup := func(context.Context) {}
	if info.RegisterHandlers != nil {
		if cleanup, err = info.RegisterHandlers(AppCtx{Ctx: ctx, Mux: mux, Config: cfg}); err != nil {
			return err
		}
	}

	// 3. 服务注册
	var naming *nacos.Client
	var ip string
	if cfg.Nacos.ServerAddrs != "" {
		if ip, err = getOutboundIP(); err != nil {
			return err
		}
		if naming, err = nacos.NewClient(cfg.Nacos.ServerAddrs, cfg.Nacos.Namespace, cfg.Nacos.Group); err != nil {
			return err
		}
		if err := naming.RegisterServiceInstance(info.ServiceName, ip, cfg.App.Port); err != nil {
			return err
		}
	}

	// 4. 启动 HTTP Server，收到信号后关停
	server := &http.Server{Addr: ":" + strconv.Itoa(cfg.App.Port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.L().Info().Msgf("✅ %s listening on :%d", info.ServiceName, cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrapf(err, "listen on %s", server.Addr)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.L().Info().Msgf("🛑 Shutting down service %s...", info.ServiceName)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	serveErr := g.Wait()

	// 5. 按注册的逆序清理
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if naming != nil {
		if err := naming.DeregisterServiceInstance(info.ServiceName, ip, cfg.App.Port); err != nil {
			logger.L().Error().Err(err).Msg("Error deregistering from Nacos")
		}
		naming.Close()
	}
	cleanup(shutdownCtx)
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.L().Error().Err(err).Msg("Error shutting down tracer provider")
	}

	logger.L().Info().Msgf("Service %s gracefully shut down.", info.ServiceName)
	return serveErr
}

// getOutboundIP 返回本机用于出站连接的地址，用于服务注册
func getOutboundIP() (string, error) {
	if ip := os.Getenv("POD_IP"); ip != "" {
		return ip, nil
	}
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", errors.Wrap(err, "detect outbound ip")
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
