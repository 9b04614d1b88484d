package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/herewego/transfer-admin/internal/auth"
	"github.com/herewego/transfer-admin/internal/changefeed"
	"github.com/herewego/transfer-admin/internal/config"
	"github.com/herewego/transfer-admin/internal/images"
	"github.com/herewego/transfer-admin/internal/logger"
	"github.com/herewego/transfer-admin/internal/newsadmin"
	"github.com/herewego/transfer-admin/internal/store"
)

func main() {
	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	verifier := auth.NewVerifier(cfg.JWTSecret)

	// api token <subject> [ttl] prints an admin token and exits.
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := issueToken(verifier, os.Args[2:]); err != nil {
			log.Error("issue token", slog.Any("err", err))
			os.Exit(1)
		}
		return
	}

	esClient, err := store.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	if err := esClient.EnsureIndex(initCtx); err != nil {
		log.Warn("ensure index failed, continuing", slog.Any("err", err))
	}
	cancel()

	writer := changefeed.NewWriter(cfg.KafkaBrokers, cfg.ChangesTopic)
	defer writer.Close()

	var imageStore newsadmin.ImageStore
	if cfg.Images.Enabled() {
		imgs, err := images.New(cfg.Images.Endpoint, cfg.Images.AccessKey, cfg.Images.SecretKey, cfg.Images.UseSSL, cfg.Images.Bucket, cfg.Images.PublicURL)
		if err != nil {
			log.Error("init image storage", slog.Any("err", err))
			os.Exit(1)
		}
		imageStore = imgs
	}

	svc := newsadmin.New(esClient, changefeed.NewPublisher(writer), imageStore, newsadmin.Options{
		KeywordLimit:   cfg.KeywordLimit,
		KeywordMinLen:  cfg.KeywordMinLen,
		PublishTimeout: cfg.PublishTimeout,
	}, log)

	srv := &server{log: log, cfg: cfg, news: svc, health: esClient.Health}

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(verifier),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		log.Info("api server starting",
			slog.String("addr", cfg.BindAddr),
			slog.String("changes_topic", cfg.ChangesTopic),
			slog.Bool("images", imageStore != nil),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

func issueToken(v *auth.Verifier, args []string) error {
	if len(args) == 0 || args[0] == "" {
		return errors.New("usage: api token <subject> [ttl]")
	}
	ttl := 24 * time.Hour
	if len(args) > 1 {
		d, err := time.ParseDuration(args[1])
		if err != nil {
			return fmt.Errorf("parse ttl: %w", err)
		}
		ttl = d
	}

	token, err := v.Issue(args[0], auth.RoleAdmin, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
