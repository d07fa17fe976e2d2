package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/lisakugler/grocery-store/internal/config"
	"github.com/lisakugler/grocery-store/internal/es"
	"github.com/lisakugler/grocery-store/internal/handlers"
	"github.com/lisakugler/grocery-store/internal/logging"
	loggingmw "github.com/lisakugler/grocery-store/internal/middleware/logging"
	"github.com/lisakugler/grocery-store/internal/mykafka"
	"github.com/lisakugler/grocery-store/internal/oauth"
	"github.com/lisakugler/grocery-store/internal/session"
	httpserver "github.com/lisakugler/grocery-store/internal/transport/http"
	"github.com/lisakugler/grocery-store/internal/upload"
	"github.com/lisakugler/grocery-store/internal/view"

	"github.com/elastic/go-elasticsearch/v9"
)

const productIndex = "products"

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	uploads, err := upload.NewStore(configuration.UPLOAD_DIR)
	if err != nil {
		log.Fatal(err)
	}

	var prod *mykafka.Producer
	if configuration.KAFKA_ADDRESS != "" {
		prod, err = mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS}, "store_events")
		if err != nil {
			log.Fatal(err)
		}
	}

	var esClient *elasticsearch.Client
	if configuration.ES_URL != "" {
		esClient, err = es.NewClient(configuration)
		if err != nil {
			log.Fatal(err)
		}
	}

	renderer, err := view.New()
	if err != nil {
		log.Fatal(err)
	}

	sessions := session.NewManager(db, []byte(configuration.SESSION_SECRET))
	google := oauth.NewGoogle(configuration.GOOGLE_CLIENT_ID, configuration.GOOGLE_CLIENT_SECRET)
	facebook := oauth.NewFacebook(configuration.FB_APP_ID, configuration.FB_APP_SECRET)

	e := echo.New()
	e.Renderer = renderer
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(loggingmw.RequestLogger(logger))

	deps := httpserver.Deps{
		StoreHandler:    &handlers.StoreHandler{DB: db, Sessions: sessions, GoogleClientID: configuration.GOOGLE_CLIENT_ID},
		AuthHandler:     &handlers.AuthHandler{DB: db, Sessions: sessions, Google: google, Facebook: facebook, Producer: prod},
		CategoryHandler: &handlers.CategoryHandler{DB: db, Sessions: sessions, Uploads: uploads, Producer: prod, ES: esClient, ESIndex: productIndex},
		ProductHandler:  &handlers.ProductHandler{DB: db, Sessions: sessions, Uploads: uploads, Producer: prod, ES: esClient, ESIndex: productIndex},
		SearchHandler:   &handlers.SearchHandler{ES: esClient, Index: productIndex},
		FeedsHandler:    &handlers.FeedsHandler{DB: db},
		Sessions:        sessions,
		UploadDir:       configuration.UPLOAD_DIR,
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         configuration.ADDR,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("server starting", "addr", configuration.ADDR)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if prod != nil {
		if err := prod.Close(); err != nil {
			log.Printf("kafka close error: %v", err)
		}
	}

	log.Println("shutdown complete")
}
