package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"chatter/database"
	"chatter/logger"
	"chatter/routes"
	"chatter/store/mongostore"
	"chatter/websocket"
)

func main() {
	godotenv.Load()
	logger.Init()
	log := logger.L()

	if os.Getenv("JWT_SECRET") == "" {
		log.Fatal().Msg("JWT_SECRET must be set")
	}

	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		uri = "mongodb://127.0.0.1:27017"
	}
	dbName := os.Getenv("MONGODB_DB")
	if dbName == "" {
		dbName = "chatter"
	}

	client, err := database.Connect(uri)
	for i := 1; err != nil && i < 3; i++ {
		log.Warn().Err(err).Int("attempt", i).Msg("mongodb connection failed, retrying")
		time.Sleep(2 * time.Second)
		client, err = database.Connect(uri)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mongodb")
	}
	defer database.Disconnect(client)
	log.Info().Str("db", dbName).Msg("mongodb connected")

	db := client.Database(dbName)

	idxCtx, idxCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.EnsureIndexes(idxCtx, db); err != nil {
		idxCancel()
		log.Fatal().Err(err).Msg("failed to create indexes")
	}
	idxCancel()

	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	st := mongostore.New(db)

	manager := websocket.NewManager(st)
	go manager.Start()

	router := routes.SetupRouter(st, manager)
	router.GET("/ws", gin.WrapF(websocket.Handler(manager)))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", port).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	log.Info().Msg("server stopped")
}
