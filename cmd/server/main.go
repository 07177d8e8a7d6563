package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/supportdesk/internal/bot"
	"github.com/mbeoliero/supportdesk/internal/config"
	"github.com/mbeoliero/supportdesk/internal/gateway"
	"github.com/mbeoliero/supportdesk/internal/handler"
	"github.com/mbeoliero/supportdesk/internal/job"
	"github.com/mbeoliero/supportdesk/internal/repository"
	"github.com/mbeoliero/supportdesk/internal/router"
	"github.com/mbeoliero/supportdesk/internal/service"
	"github.com/mbeoliero/supportdesk/internal/transport/telegram"
	"github.com/mbeoliero/supportdesk/pkg/constant"
	"github.com/mbeoliero/supportdesk/pkg/idgen"
	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.StringP("config", "c", "config/config.yaml", "path to the config file")
	pflag.Parse()

	ctx := context.TODO()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.CtxError(ctx, "failed to load config: %v", err)
		panic(err)
	}

	log.CtxInfo(ctx, "config loaded: mode=%s, db=%s, redis=%v", cfg.Server.Mode, cfg.Database.Driver, cfg.Redis.Enabled)

	// Initialize Redis key prefix
	constant.InitRedisKeyPrefix(cfg.Redis.KeyPrefix)
	log.CtxInfo(ctx, "redis key prefix: %s", constant.GetRedisKeyPrefix())

	// Initialize repositories
	repos, err := repository.NewRepositories(cfg)
	if err != nil {
		log.CtxError(ctx, "failed to initialize repositories: %v", err)
		panic(err)
	}
	defer repos.Close()

	// Check database connection
	if err := repos.CheckConnection(ctx); err != nil {
		log.CtxError(ctx, "database connection check failed: %v", err)
		panic(err)
	}
	if err := repos.Migrate(ctx); err != nil {
		log.CtxError(ctx, "database migration failed: %v", err)
		panic(err)
	}
	log.CtxInfo(ctx, "database connection established")

	tg, err := telegram.NewClient(cfg.Telegram.APIBase, cfg.Telegram.BotToken, cfg.Telegram.SupportGroupId,
		telegram.WithTimeout(cfg.Telegram.RequestTimeout))
	if err != nil {
		log.CtxError(ctx, "failed to create platform client: %v", err)
		panic(err)
	}

	broadcastIds, err := idgen.NewBroadcastIDs(uint16(cfg.Server.MachineId))
	if err != nil {
		log.CtxError(ctx, "failed to create id generator: %v", err)
		panic(err)
	}
	instanceId, err := idgen.UUIDs{}.NextID()
	if err != nil {
		log.CtxError(ctx, "failed to create instance id: %v", err)
		panic(err)
	}

	// Initialize services
	now := time.Now
	convService := service.NewConversationService(repos.Conversation, now)
	binder := service.NewTopicBinder(tg, repos.Conversation, now)
	followUpService := service.NewFollowUpService(repos.Conversation, now, cfg.Support.FollowUpAfter())
	relayService := service.NewRelayService(service.RelayDeps{
		Transport:     tg,
		Conversations: convService,
		Binder:        binder,
		Messages:      repos.Message,
		Notes:         repos.Note,
		Voices:        repos.VoiceTemplate,
		Support:       &cfg.Support,
		Now:           now,
	})
	broadcastService := service.NewBroadcastService(service.BroadcastDeps{
		Transport:     tg,
		Conversations: convService,
		FollowUps:     followUpService,
		Binder:        binder,
		Messages:      repos.Message,
		IDs:           broadcastIds,
		Now:           now,
		ProgressEvery: cfg.Support.BroadcastProgressEvery,
	})

	var codes service.LoginCodeStore = repository.NewMemoryLoginCodeRepo(now)
	if repos.Redis != nil {
		codes = repository.NewLoginCodeRepo(repos.Redis)
	}
	authService := service.NewAuthService(codes, tg, cfg)

	// Initialize the admin live feed
	wsServer := gateway.NewWsServer(cfg, convService)

	// Set event sink for services
	convService.SetSink(wsServer)
	broadcastService.SetSink(wsServer)

	// Start the live feed
	wsServer.Run(ctx)
	log.CtxInfo(ctx, "live feed started")

	dispatcher := bot.NewDispatcher(bot.Deps{
		Config:        cfg,
		Transport:     tg,
		Conversations: convService,
		FollowUps:     followUpService,
		Broadcasts:    broadcastService,
		Relay:         relayService,
		Binder:        binder,
		Now:           now,
	})

	runner := job.NewRunner(job.Deps{
		Config:        &cfg.Support,
		Transport:     tg,
		Conversations: convService,
		FollowUps:     followUpService,
		Binder:        binder,
		Redis:         repos.Redis,
		Now:           now,
		InstanceId:    instanceId,
	})
	if err := runner.Start(ctx); err != nil {
		log.CtxError(ctx, "failed to start jobs: %v", err)
		panic(err)
	}
	defer runner.Stop()

	// Initialize handlers
	handlers := &router.Handlers{
		Auth:         handler.NewAuthHandler(authService),
		Conversation: handler.NewConversationHandler(convService, relayService, binder),
		FollowUp:     handler.NewFollowUpHandler(followUpService),
		Broadcast:    handler.NewBroadcastHandler(broadcastService),
		Webhook:      handler.NewWebhookHandler(dispatcher, cfg.Telegram.WebhookSecret),
	}

	// Create Hertz server
	h := server.Default(
		server.WithHostPorts(fmt.Sprintf(":%d", cfg.Server.HTTPPort)),
	)

	// Setup routes
	router.SetupRouter(h, cfg, handlers, wsServer)

	log.CtxInfo(ctx, "server starting on port %d", cfg.Server.HTTPPort)

	// Start server in goroutine
	go func() {
		h.Spin()
	}()

	if cfg.Server.PublicURL != "" {
		webhookURL := strings.TrimRight(cfg.Server.PublicURL, "/") + "/webhook"
		if err := tg.SetWebhook(ctx, webhookURL, cfg.Telegram.WebhookSecret); err != nil {
			log.CtxError(ctx, "set webhook failed: url=%s, error=%v", webhookURL, err)
		} else {
			log.CtxInfo(ctx, "webhook registered: url=%s", webhookURL)
		}
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.CtxInfo(ctx, "shutting down server...")
	wsServer.Shutdown(ctx)

	// Graceful shutdown
	if err := h.Shutdown(ctx); err != nil {
		log.CtxError(ctx, "server shutdown error: %v", err)
	}

	log.CtxInfo(ctx, "server stopped")
}
