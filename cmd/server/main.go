package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/pickleplay/court-reservation/internal/booking"
	"github.com/pickleplay/court-reservation/internal/config"
	"github.com/pickleplay/court-reservation/internal/database"
	"github.com/pickleplay/court-reservation/internal/dialogue"
	"github.com/pickleplay/court-reservation/internal/handler"
	"github.com/pickleplay/court-reservation/internal/notify"
	"github.com/pickleplay/court-reservation/internal/payment"
	"github.com/pickleplay/court-reservation/internal/queue"
	"github.com/pickleplay/court-reservation/internal/repository"
	"github.com/pickleplay/court-reservation/internal/router"
	"github.com/pickleplay/court-reservation/internal/service"
	"github.com/pickleplay/court-reservation/internal/sweeper"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	loc := cfg.Location()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient() // nil when Redis is down; everything degrades gracefully

	reservations := repository.NewReservationRepo(db)
	counters := repository.NewCounterRepo(db)
	catalog := repository.NewCatalogRepo(db, rdb)
	operators := repository.NewOperatorRepo(db)

	sender := notify.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFrom)
	directory := notify.MergeDirectories(operators, notify.StaticOperators(cfg.Operators))
	notifier := notify.New(sender, directory)

	var events booking.EventPublisher
	if cfg.RabbitURL != "" {
		events = service.NewEventPublisher(cfg.RabbitURL)
		go func() {
			if err := queue.StartReservationConsumer(cfg.RabbitURL); err != nil {
				log.Printf("queue: consumer stopped: %v", err)
			}
		}()
	}

	prices := booking.PriceTable{Short: cfg.PriceShort, Long: cfg.PriceLong}
	manager := booking.NewManager(reservations, counters, notifier, events, booking.ManagerConfig{
		Prices: prices,
	})
	defer manager.Stop()

	sessions := dialogue.NewSessionStore(0, nil)
	engine := dialogue.NewEngine(sessions, manager, catalog, dialogue.Config{
		BaseURL:  cfg.BaseURL,
		Prices:   prices,
		Location: loc,
	})

	// Idle conversations are evicted in the background so the session
	// map does not grow with every number that ever texted us.
	purgeDone := make(chan struct{})
	go func() {
		t := time.NewTicker(10 * time.Minute)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				sessions.Purge()
			case <-purgeDone:
				return
			}
		}
	}()
	defer close(purgeDone)

	gateway := payment.NewGateway(cfg.RazorpayKeyID, cfg.RazorpayKeySecret)

	sw := sweeper.New(reservations, manager, notifier, sweeper.Config{Location: loc})
	if err := sw.Start(); err != nil {
		log.Fatalf("sweeper: %v", err)
	}
	defer sw.Stop()

	e := echo.New()
	e.HideBanner = true

	router.RegisterRoutes(e)
	router.RegisterWebhook(e, handler.NewWebhookHandler(engine), config.LoadRateLimitConfig(), rdb)
	router.RegisterPayment(e, handler.NewPaymentHandler(manager, gateway, cfg.RazorpayWebhook))
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, operators), cfg.JWTSecret)
	router.RegisterAdmin(e, handler.NewAdminReservationHandler(manager, reservations, catalog), cfg.JWTSecret)

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
