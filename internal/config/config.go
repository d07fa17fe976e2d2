package config

import (
	"fmt"
	"log"
	"os"

	"github.com/glebarez/sqlite"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/lisakugler/grocery-store/internal/models"
)

type Config struct {
	ADDR           string
	DB_HOST        string
	DB_PORT        string
	DB_USER        string
	DB_PASSWORD    string
	DB_NAME        string
	DB_FILE        string
	ES_URL         string
	ES_USER        string
	ES_PASSWORD    string
	KAFKA_ADDRESS  string
	SESSION_SECRET string
	GOOGLE_CLIENT_ID     string
	GOOGLE_CLIENT_SECRET string
	FB_APP_ID      string
	FB_APP_SECRET  string
	UPLOAD_DIR     string
	LOG_LEVEL      string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		ADDR:           os.Getenv("ADDR"),
		DB_HOST:        os.Getenv("DB_HOST"),
		DB_PORT:        os.Getenv("DB_PORT"),
		DB_USER:        os.Getenv("DB_USER"),
		DB_PASSWORD:    os.Getenv("DB_PASSWORD"),
		DB_NAME:        os.Getenv("DB_NAME"),
		DB_FILE:        os.Getenv("DB_FILE"),
		ES_URL:         os.Getenv("ES_URL"),
		ES_USER:        os.Getenv("ES_USER"),
		ES_PASSWORD:    os.Getenv("ES_PASSWORD"),
		KAFKA_ADDRESS:  os.Getenv("KAFKA_ADDRESS"),
		SESSION_SECRET: os.Getenv("SESSION_SECRET"),
		GOOGLE_CLIENT_ID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GOOGLE_CLIENT_SECRET: os.Getenv("GOOGLE_CLIENT_SECRET"),
		FB_APP_ID:      os.Getenv("FB_APP_ID"),
		FB_APP_SECRET:  os.Getenv("FB_APP_SECRET"),
		UPLOAD_DIR:     os.Getenv("UPLOAD_DIR"),
		LOG_LEVEL:      os.Getenv("LOG_LEVEL"),
	}

	if config.ADDR == "" {
		config.ADDR = ":8080"
	}
	if config.DB_FILE == "" {
		config.DB_FILE = "grocery_store.db"
	}
	if config.UPLOAD_DIR == "" {
		config.UPLOAD_DIR = "./uploads"
	}

	return config, nil
}

// InitDB opens postgres when DB_HOST is configured and falls back to a
// local sqlite file otherwise, then migrates the schema.
func InitDB(configuration *Config) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)

	if configuration.DB_HOST != "" {
		dsn := fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=disable",
			configuration.DB_USER,
			configuration.DB_PASSWORD,
			configuration.DB_HOST,
			configuration.DB_PORT,
			configuration.DB_NAME,
		)
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	} else {
		db, err = gorm.Open(sqlite.Open(configuration.DB_FILE), &gorm.Config{})
	}
	if err != nil {
		return nil, fmt.Errorf("cannot connect to db: %w", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Product{},
		&models.Session{},
	); err != nil {
		return nil, fmt.Errorf("cannot migrate tables: %w", err)
	}

	return db, nil
}
