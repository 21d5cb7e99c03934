package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ppn-portal/src/config"
	"ppn-portal/src/database"
	"ppn-portal/src/domain"
	"ppn-portal/src/i18n"
	"ppn-portal/src/infrastructure/remote"
	"ppn-portal/src/infrastructure/repository"
	"ppn-portal/src/interface/handler"
	"ppn-portal/src/logger"
	"ppn-portal/src/middleware"
	"ppn-portal/src/routes"
	"ppn-portal/src/service"
	"ppn-portal/src/storage"
	"ppn-portal/src/usecase"
	"ppn-portal/src/validator"

	"github.com/gin-gonic/gin"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(fmt.Sprintf(".envの読み込みに失敗: %v", err))
	}

	// 設定を読み込み
	cfg := config.LoadConfig()

	// ロガーを初期化
	if err := logger.InitLogger(cfg.Log.Level, cfg.Log.Directory); err != nil {
		panic(fmt.Sprintf("ロガーの初期化に失敗: %v", err))
	}
	defer logger.CloseLogger()

	logger.Log.Info("アプリケーションを開始しています")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// データベース（リーダー情報は常にデータベースから読む）
	db, err := database.NewDB(database.ConfigFrom(cfg.Database), logger.Log)
	if err != nil {
		logger.Log.WithError(err).Fatal("データベースへの接続に失敗")
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Log.WithError(err).Fatal("マイグレーションに失敗")
	}

	// 参加者データの取得先を選択
	var participants domain.ParticipantRepository = repository.NewParticipantRepository(db, logger.Log)
	if cfg.Backend.URL != "" {
		client, err := remote.NewClient(remote.Config{
			BaseURL:  cfg.Backend.URL,
			Token:    cfg.Backend.Token,
			RetryMax: cfg.Backend.RetryMax,
			Timeout:  cfg.Backend.Timeout,
		}, logger.Log)
		if err != nil {
			logger.Log.WithError(err).Fatal("バックエンドクライアントの初期化に失敗")
		}
		participants = client
		logger.Log.WithField("backend", cfg.Backend.URL).Info("外部APIバックエンドを使用します")
	}

	// S3アーカイバを初期化（設定が有効な場合）
	var archiver *storage.Archiver
	if cfg.Export.ArchiveEnabled || cfg.Log.UploadEnabled {
		archiver, err = storage.NewArchiver(storage.S3ConfigFrom(cfg.S3), cfg.Export.ArchivePrefix, logger.Log)
		if err != nil {
			logger.Log.WithError(err).Error("S3アーカイバの初期化に失敗")
			archiver = nil
		}
	}
	if archiver != nil && cfg.Log.UploadEnabled {
		// 定期的なログアップロードを開始
		go archiver.StartPeriodicUpload(ctx, cfg.Log.Directory, logger.GetCurrentLogFile, cfg.Log.UploadInterval, cfg.Log.UploadMaxAge)
	}

	catalog, err := i18n.NewCatalog()
	if err != nil {
		logger.Log.WithError(err).Fatal("メッセージカタログの読み込みに失敗")
	}
	if err := catalog.SetDefault(cfg.Locale.DefaultLanguage); err != nil {
		logger.Log.WithError(err).Warn("既定の言語を変更できません")
	}

	minBirthDate, err := domain.ParseISODate(cfg.Locale.BirthDateMinimum)
	if err != nil {
		logger.Log.WithError(err).Fatal("生年月日の最小値が不正です")
	}

	v, err := validator.NewCustomValidator(catalog, minBirthDate)
	if err != nil {
		logger.Log.WithError(err).Fatal("バリデーターの初期化に失敗")
	}

	opts := usecase.Options{MinBirthDate: minBirthDate, Logger: logger.Log}
	if archiver != nil && cfg.Export.ArchiveEnabled {
		opts.Archiver = archiver
	}
	participantUsecase := usecase.NewParticipantUsecase(participants, catalog, opts)

	leaders := repository.NewLeaderRepository(db, logger.Log)
	authService := service.NewAuthService(leaders, service.NewJWTService(cfg), logger.Log)

	r := gin.New()
	r.Use(gin.Recovery())
	routes.SetupRoutes(r, routes.Handlers{
		Participant:  handler.NewParticipantHandler(participantUsecase, catalog, logger.Log),
		Registration: handler.NewRegistrationHandler(participantUsecase, v, catalog, logger.Log),
		Auth:         handler.NewAuthHandler(authService, catalog, logger.Log, cfg.Server.SecureCookie),
	}, routes.Options{
		Catalog:     catalog,
		AuthService: authService,
		AllowOrigin: cfg.Server.AllowOrigin,
		RateLimiter: middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window),
		Health:      db.Health,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.WithField("port", cfg.Server.Port).Info("サーバーを開始します")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.WithError(err).Fatal("サーバーの起動に失敗")
		}
	}()

	<-ctx.Done()
	logger.Log.Info("シャットダウンシグナルを受信しました")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("サーバーの停止に失敗")
	}

	// 最後のログアップロードを実行
	if archiver != nil && cfg.Log.UploadEnabled {
		logger.Log.Info("最後のログアップロードを実行中...")
		if err := archiver.UploadOldLogs(shutdownCtx, cfg.Log.Directory, logger.GetCurrentLogFile(), 0); err != nil {
			logger.Log.WithError(err).Error("最後のログアップロードに失敗")
		}
	}
}
