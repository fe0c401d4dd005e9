package database

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	_ "github.com/lib/pq"

	"github.com/Shabir12345/Hall-of-Jade-Manuscripts-sub011/pkg/logger"
)

// Connect opens the remote Postgres store and verifies the connection is
// actually alive, retrying to ride out temporary DNS/network blips.
func Connect() *sql.DB {
	dbUser := strings.TrimSpace(os.Getenv("user"))
	dbPass := strings.TrimSpace(os.Getenv("password"))
	dbHost := strings.TrimSpace(os.Getenv("host"))
	dbPort := strings.TrimSpace(os.Getenv("port"))
	dbName := strings.TrimSpace(os.Getenv("dbname"))

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=require", dbUser, dbPass, dbHost, dbPort, dbName)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		logger.Sugar.Fatalf("Failed to open database connection: %v", err)
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(2*time.Second), 5)
	err = backoff.Retry(func() error {
		if pingErr := db.Ping(); pingErr != nil {
			logger.Sugar.Infof("Database connection failed, retrying in 2s... (%v)", pingErr)
			return pingErr
		}
		return nil
	}, policy)
	if err != nil {
		logger.Sugar.Fatal("Could not connect to database after retries. Check your network or database status.")
	}
	logger.Sugar.Info("Successfully connected to the database")
	return db
}
