package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"dex_gateway/internal/client"
	"dex_gateway/internal/config"
	"dex_gateway/internal/engine"
	"dex_gateway/internal/ledger"
	"dex_gateway/internal/orchestrator"
	"dex_gateway/internal/pkg/utils"
	"dex_gateway/internal/registry"
	"dex_gateway/internal/restapi"
	"dex_gateway/internal/service"
	"dex_gateway/internal/settings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
)

func main() {
	// .env carries the signing key locally; absence is fine in production
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(logrus.InfoLevel)

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize zap logger: %v", err)
	}
	defer zapLogger.Sync()

	slogHandler := zapslog.NewHandler(zapLogger.Core(), &zapslog.HandlerOptions{})
	slog.SetDefault(slog.New(slogHandler))

	cfgPath := utils.GetEnv("CONFIG_PATH", "config/config.yaml")
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		log.Warnf("Invalid log level in config: %s. Defaulting to Info.", cfg.Logging.Level)
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	zapLogger.Info("Configuration loaded", zap.String("path", cfgPath))

	reg, err := registry.New(cfg.Chains)
	if err != nil {
		zapLogger.Fatal("Invalid chain configuration", zap.Error(err))
	}
	zapLogger.Info("Chain registry built", zap.Int("chains", len(reg.Chains())))

	encryptor := ledger.NewBiteEncryptor(
		time.Duration(cfg.Encryption.RequestTimeoutMillis)*time.Millisecond, zapLogger)

	ledgerClient, err := ledger.NewClient(reg, cfg.RpcClient, cfg.Wallet, encryptor, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to initialize ledger client", zap.Error(err))
	}
	defer ledgerClient.Close()

	quoteEngine := engine.NewEngine(ledgerClient, zapLogger)

	pythClient := client.NewPythClient(
		cfg.Pyth.BaseURL,
		time.Duration(cfg.Pyth.RequestTimeoutMillis)*time.Millisecond,
		zapLogger)
	priceService := service.NewPriceService(zapLogger, cfg, pythClient)
	zapLogger.Info("PriceService initialized")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	feedSymbols := make([]string, 0, len(cfg.Pyth.FeedIDs))
	for symbol := range cfg.Pyth.FeedIDs {
		feedSymbols = append(feedSymbols, symbol)
	}
	if len(feedSymbols) > 0 {
		go service.StartPolling(rootCtx, priceService, zapLogger, feedSymbols,
			time.Duration(cfg.PriceSvc.PollIntervalSeconds)*time.Second)
	}

	swapSettings, err := settings.NewStore(cfg.Settings.Dir, "swap", zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to initialize swap settings store", zap.Error(err))
	}
	poolSettings, err := settings.NewStore(cfg.Settings.Dir, "pool", zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to initialize pool settings store", zap.Error(err))
	}
	prefs, err := settings.NewPreferences(cfg.Settings.Dir, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to initialize preferences store", zap.Error(err))
	}

	swaps := make(map[int64]*orchestrator.SwapOrchestrator)
	pools := make(map[int64]*orchestrator.PoolOrchestrator)
	for _, def := range reg.Chains() {
		swaps[def.ChainID] = orchestrator.NewSwapOrchestrator(reg, ledgerClient, quoteEngine, swapSettings, def.ChainID, zapLogger)
		pools[def.ChainID] = orchestrator.NewPoolOrchestrator(reg, ledgerClient, quoteEngine, poolSettings, def.ChainID, zapLogger)
	}
	zapLogger.Info("Flow orchestrators initialized", zap.Int("chains", len(swaps)))

	router := gin.New()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true // Adjust for production
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))

	router.Use(utils.ZapLoggerMiddleware(zapLogger))
	router.Use(gin.Recovery())

	handler := restapi.NewGatewayHandler(reg, priceService, swaps, pools, swapSettings, poolSettings, prefs)
	restapi.RegisterRoutes(router, handler)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	zapLogger.Info("Prometheus metrics endpoint enabled", zap.String("path", "/metrics"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		zapLogger.Info(fmt.Sprintf("Server starting on port %s", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	zapLogger.Info("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		zapLogger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exiting")
}
