package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vaerksted/ffsync/internal/adapter"
	"github.com/vaerksted/ffsync/internal/auth"
	"github.com/vaerksted/ffsync/internal/config"
	"github.com/vaerksted/ffsync/internal/hawk"
	"github.com/vaerksted/ffsync/internal/logger"
	"github.com/vaerksted/ffsync/internal/service"
	"github.com/vaerksted/ffsync/internal/store"
	"github.com/vaerksted/ffsync/models"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	log := logger.NewLogger("ffsync")
	cfg, err := config.GetConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewConnectSQLite(ctx, cfg.Storage.DBPath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("create local storage")
	}
	defer db.Close()

	bookmarks := store.NewBookmarkStore(db, log)
	history := store.NewHistoryStore(db, log)
	passwords := store.NewPasswordStore(db, log)
	watermarks := store.NewFileWatermarkStore(cfg.Storage.WatermarkPath)

	var credentials auth.CredentialStore
	if cfg.Storage.CredentialsPath != "" {
		credentials = store.NewFileCredentialStore(cfg.Storage.CredentialsPath)
	} else {
		credentials = store.NewKeyringCredentialStore(cfg.Storage.KeyringService)
	}

	accounts := adapter.NewAccountClient(cfg.Account.AuthServerURL, cfg.Sync.RequestTimeout)
	tokens := adapter.NewTokenClient(cfg.Account.TokenServerURL, cfg.Sync.RequestTimeout)
	network := adapter.NewNetworkChecker(cfg.Account.TokenServerURL, cfg.Sync.RequestTimeout)

	manager := auth.NewManager(accounts, tokens, credentials,
		cfg.Account.TokenServerURL, cfg.Account.CertDuration, log)

	if err = bootstrapSignIn(ctx, manager, credentials, log); err != nil {
		log.Fatal().Err(err).Msg("sign in")
	}

	newStorage := func(endpoint string, creds hawk.Credentials) adapter.StorageClient {
		return adapter.NewStorageClient(endpoint, creds, cfg.Sync.RequestTimeout)
	}
	engine := service.NewSyncEngine(manager, newStorage,
		bookmarks, history, passwords, watermarks, cfg.Sync.PushRate, log)

	if cfg.Sync.RunOnce {
		runOnce(ctx, engine, log)
		return
	}

	worker := service.NewSyncWorker(engine, network, cfg.Sync.Interval, logCycle(log), log)
	worker.Start(ctx)
	worker.RequestSync()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	worker.Stop()
}

// bootstrapSignIn performs a fresh login when no credentials are stored
// yet. Email and password are only read for that first run.
func bootstrapSignIn(ctx context.Context, manager *auth.Manager, credentials auth.CredentialStore, log *logger.Logger) error {
	_, ok, err := credentials.Get()
	if err != nil {
		return err
	}
	if ok {
		log.Debug().Msg("using stored sync credentials")
		return nil
	}

	email := os.Getenv("FFSYNC_EMAIL")
	password := os.Getenv("FFSYNC_PASSWORD")
	if email == "" || password == "" {
		return fmt.Errorf("no stored credentials: set FFSYNC_EMAIL and FFSYNC_PASSWORD for the first run")
	}

	return manager.SignIn(ctx, email, password)
}

func runOnce(ctx context.Context, engine service.SyncEngine, log *logger.Logger) {
	result, err := engine.RunCycle(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("sync cycle aborted")
	}
	logCycle(log)(result)
	if result.Failed() {
		os.Exit(1)
	}
}

func logCycle(log *logger.Logger) func(models.CycleResult) {
	return func(result models.CycleResult) {
		for _, res := range result.Collections {
			evt := log.Info()
			if res.Err != nil {
				evt = log.Warn().Err(res.Err)
			}
			evt.Str("collection", res.Collection).
				Str("outcome", string(res.Outcome)).
				Int("pulled", res.Pulled).
				Int("pushed", res.Pushed).
				Msg("collection synced")
		}
	}
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}
	if buildDate == "" {
		buildDate = "N/A"
	}
	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
