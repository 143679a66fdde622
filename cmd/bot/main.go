package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"governance_reminder_bot/internal/app"
	"governance_reminder_bot/internal/infra/config"
	"governance_reminder_bot/internal/infra/httpapi"
	"governance_reminder_bot/internal/infra/logger"
	"governance_reminder_bot/internal/infra/scheduler"
	"governance_reminder_bot/internal/infra/telegram"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")
	mainLogger.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"admin_id":    cfg.AdminTelegramID,
		"offsets":     cfg.Offsets,
	}).Info("Governance reminder bot starting...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, mainLogger)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not open storage")
	}
	defer st.Close()

	// Initialize Telegram Bot
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			entry := logger.Component("telebot").WithError(err)
			if c != nil && c.Chat() != nil {
				entry = entry.WithField("recipient_id", c.Chat().ID)
			}
			entry.Error("Telegram handler error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not create Telegram bot")
	}

	clock := app.SystemClock{}
	registry := app.NewRecipientRegistry(st.recipients, logger.Component("recipients"))
	if err := registry.Load(ctx); err != nil {
		mainLogger.WithError(err).Fatal("Could not load recipients")
	}

	deliverer := telegram.NewTelebotAdapter(bot, cfg.SendRatePerSecond, logger.Component("delivery"))
	reminders := app.NewReminderService(cfg.Offsets, st.proposals, st.votes, registry, deliverer, clock, logger.Component("reminders"), cfg.SendTimeout)
	interactions := app.NewInteractionService(cfg.Offsets, reminders.Jobs(), st.votes, st.proposals, clock, logger.Component("interactions"))
	adminService := app.NewAdminService(reminders, reminders.Jobs(), registry, clock, cfg.AdminTelegramID)

	if restored, err := reminders.Restore(ctx); err != nil {
		mainLogger.WithError(err).Error("Could not restore reminders")
	} else {
		mainLogger.WithField("jobs", restored).Info("Pending reminders restored")
	}

	// Register Handlers
	handlerLogger := logger.Component("telegram")
	telegram.RegisterBotCommands(ctx, bot, telegram.NewCommandHandler(reminders, st.proposals, cfg.AdminTelegramID, handlerLogger))
	telegram.RegisterInteractionHandlers(ctx, bot, telegram.NewInteractionHandler(interactions, handlerLogger))
	telegram.RegisterAdminHandlers(ctx, bot, telegram.NewAdminHandler(adminService, handlerLogger))
	if err := bot.SetCommands(botCommands); err != nil {
		mainLogger.WithError(err).Warn("Could not publish command list")
	}

	watchers, err := buildWatchers(ctx, cfg, st.seen, reminders)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not set up proposal watchers")
	}
	watcherScheduler := scheduler.NewWatcherScheduler(logger.Component("scheduler"))
	views := make([]httpapi.WatcherView, 0, len(watchers))
	for _, w := range watchers {
		if err := watcherScheduler.Add(w.watcher, w.interval); err != nil {
			mainLogger.WithError(err).Fatal("Could not schedule watcher")
		}
		views = append(views, w.watcher)
	}
	if len(watchers) == 0 {
		mainLogger.Warn("No proposal sources configured; only /testproposal will create reminders")
	}

	var diagnostics *httpapi.Server
	if cfg.HTTPAddr != "" {
		gin.SetMode(gin.ReleaseMode)
		diagnostics = httpapi.NewServer(cfg.HTTPAddr, httpapi.NewRouter(reminders.Jobs(), views), logger.Component("http"))
		diagnostics.Start()
	}

	watcherScheduler.Start()
	go bot.Start()
	mainLogger.Info("Application setup complete. Bot and watchers are running.")

	<-ctx.Done()

	mainLogger.Info("Shutting down application...")
	watcherScheduler.Stop()
	bot.Stop()
	cancelled := reminders.Jobs().Stop()
	mainLogger.WithField("jobs", cancelled).Info("Pending reminders released; they are restored on next start")
	if diagnostics != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := diagnostics.Shutdown(shutdownCtx); err != nil {
			mainLogger.WithError(err).Warn("Diagnostics server did not shut down cleanly")
		}
		cancel()
	}
	mainLogger.Info("Application shut down gracefully.")
}

var botCommands = []telebot.Command{
	{Text: "start", Description: "Get reminders for DAO votes"},
	{Text: "stop", Description: "Stop all reminders"},
	{Text: "status", Description: "Show your upcoming reminders"},
	{Text: "help", Description: "How this bot works"},
}
