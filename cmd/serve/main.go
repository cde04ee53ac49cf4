package main

import (
	"net/http"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"userAuthService/config"
	"userAuthService/database"
	"userAuthService/users/handlers"
	"userAuthService/users/sessions"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Infof("Starting with %s", cfg)

	db, err := database.Connect("sqlite3", cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	sessionManager := sessions.NewManager(db, []byte(cfg.Session.Secret), cfg.Session.Expiry)

	server := handlers.NewServer(db, sessionManager, log)
	server.Metrics().Register(prometheus.DefaultRegisterer)

	mux := server.Routes()
	mux.Handle("GET /metrics", promhttp.Handler())

	// Once every 10 minutes, delete expired sessions
	go func() {
		for {
			if err := sessionManager.DeleteExpired(); err != nil {
				log.Errorf("Failed to delete expired sessions: %v", err)
			}
			time.Sleep(10 * time.Minute)
		}
	}()

	log.Infof("Database initialized. Starting user service server on %s", cfg.HTTP.Address)
	log.Fatal(http.ListenAndServe(cfg.HTTP.Address, mux))
}
