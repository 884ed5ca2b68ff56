package main

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"tornado_miniapp/internal/ads"
	"tornado_miniapp/internal/api"
	"tornado_miniapp/internal/cache"
	"tornado_miniapp/internal/middleware"
	"tornado_miniapp/internal/money"
	"tornado_miniapp/internal/ratelimit"
	"tornado_miniapp/internal/repository"
	"tornado_miniapp/internal/service"
	"tornado_miniapp/internal/telegram"
	"tornado_miniapp/pkg/auth"
	"tornado_miniapp/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	err = logger.Initialize(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zapLogger := logger.Logger()

	repo, err := repository.New(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to initialize repository", zap.Error(err))
	}
	defer repo.Close()

	tgClient, err := telegram.NewClient(cfg.TelegramAuth.TelegramBotToken, cfg.TelegramAuth.BotUsername)
	if err != nil {
		zapLogger.Fatal("Failed to initialize telegram client", zap.Error(err))
	}

	var adProvider ads.Provider = ads.NopProvider{}
	if cfg.Ads.VerifyURL != "" {
		adProvider = ads.NewHTTPProvider(cfg.Ads.VerifyURL)
	} else {
		zapLogger.Warn("No ad verification url configured, every ad claim will be approved")
	}

	rewards := service.Rewards{
		WatchAd:            money.FromTON(cfg.Rewards.WatchAdTON),
		Welcome:            money.FromTON(cfg.Rewards.WelcomeTON),
		ReferralSignup:     money.FromTON(cfg.Rewards.ReferralSignupTON),
		ReferralPercentage: cfg.Rewards.ReferralPercentage,
		MinimumWithdraw:    money.FromTON(cfg.Rewards.MinimumWithdrawTON),
		WithdrawalCooldown: cfg.Rewards.WithdrawalCooldown,
		TaskPrices:         service.DefaultTaskPrices(),
	}
	if len(cfg.Rewards.TaskPricesTON) > 0 {
		prices := make(map[int]money.Amount, len(cfg.Rewards.TaskPricesTON))
		for tier, ton := range cfg.Rewards.TaskPricesTON {
			n, err := strconv.Atoi(tier)
			if err != nil {
				zapLogger.Fatal("Invalid task price tier", zap.String("tier", tier))
			}
			prices[n] = money.FromTON(ton)
		}
		rewards.TaskPrices = prices
	}

	gate := service.NewClaimGate(ratelimit.New(nil, nil), adProvider)
	sharedCache := cache.New(nil)
	hub := api.NewNotificationHub()

	userService := service.NewUserService(repo, repo, sharedCache, tgClient, hub, rewards,
		cfg.Welcome.Chats, cfg.Welcome.Message)
	taskService := service.NewTaskService(repo, repo, gate, sharedCache, tgClient, hub, rewards)
	adsService := service.NewAdsService(repo, gate, sharedCache, hub, rewards)
	promoService := service.NewPromoService(repo, gate, sharedCache, hub)
	withdrawalService := service.NewWithdrawalService(repo, gate, sharedCache, hub, rewards)

	telegramAuth := auth.NewTelegramAuth(cfg.TelegramAuth.TelegramBotToken, cfg.TelegramAuth.DebugMode)
	authz := middleware.NewAuthorization(cfg.TelegramAuth.AdminIDs)

	router := gin.New()
	router.Use(gin.Recovery())

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{
		http.MethodHead,
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
	}
	config.AllowHeaders = []string{"*"}
	config.AllowCredentials = true
	config.MaxAge = 12 * time.Hour

	router.Use(cors.New(config))

	a := router.Group("/api/v1")
	api.NewUserRoutes(a, userService, telegramAuth)
	api.NewTaskRoutes(a, taskService, telegramAuth)
	api.NewAdsRoutes(a, adsService, telegramAuth)
	api.NewPromoRoutes(a, promoService, telegramAuth, authz)
	api.NewWithdrawalRoutes(a, withdrawalService, telegramAuth, authz)
	api.NewNotificationRoutes(a, hub, telegramAuth)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	zapLogger.Info("Starting server", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		zapLogger.Fatal("Failed to start server", zap.Error(err))
	}
}
