package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Shabir12345/Hall-of-Jade-Manuscripts-sub011/config/database"
	"github.com/Shabir12345/Hall-of-Jade-Manuscripts-sub011/internal/localstore"
	"github.com/Shabir12345/Hall-of-Jade-Manuscripts-sub011/internal/manuscript/repository"
	"github.com/Shabir12345/Hall-of-Jade-Manuscripts-sub011/internal/sync"
	"github.com/Shabir12345/Hall-of-Jade-Manuscripts-sub011/pkg/logger"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables from OS")
	}

	logger.Init()
	defer logger.Log.Sync()

	db := database.Connect()
	defer db.Close()

	storePath := strings.TrimSpace(os.Getenv("LOCAL_STORE_PATH"))
	if storePath == "" {
		storePath = "manuscripts.db"
	}
	cache, err := localstore.Open(storePath)
	if err != nil {
		logger.Sugar.Fatalf("Failed to open local cache: %v", err)
	}
	defer cache.Close()

	remote := repository.NewManuscriptRepository(db)
	coordinator, err := sync.NewCoordinator(remote, cache)
	if err != nil {
		logger.Sugar.Fatalf("Failed to start sync coordinator: %v", err)
	}

	ctx := context.Background()

	// Reconcile both stores into the working library, then drain the
	// re-upload backlog through the save queue.
	library := coordinator.LoadMergedLibrary(ctx)
	logger.Sugar.Infof("Library loaded: %d manuscript(s), %d queued for re-sync, cloud available: %v",
		len(library.Manuscripts), len(library.ToResync), library.CloudAvailable)
	for _, id := range library.ToResync {
		m, err := cache.Get(id)
		if err != nil {
			logger.Sugar.Warnf("Re-sync backlog: manuscript %s not readable from cache: %v", id, err)
			continue
		}
		coordinator.EnqueueSave(ctx, m)
	}

	// Poll connectivity and surface the sync snapshot for operators.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			coordinator.SetOnline(ctx, db.Ping() == nil)
			snap := coordinator.Snapshot()
			logger.Sugar.Infof("Sync state: cloud=%v pending=%d conflicts=%d",
				snap.CloudAvailable, snap.PendingSyncCount, len(snap.Conflicts))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar.Info("Shutting down")
}
