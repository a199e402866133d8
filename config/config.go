package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort string `envconfig:"HTTP_PORT" default:"4242"`

	// Header, aus dem die Identity-Middleware das Eppn des Akteurs liest;
	// gesetzt vom vorgeschalteten Identity Provider.
	AuthHeader string `envconfig:"AUTH_HEADER" default:"X-Auth-Eppn"`

	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// Nächtlicher Rebuild aller Workflow-Snapshots.
	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"0 3 * * *"`

	// Stunden, in denen ein Reviewer seine Entscheidung noch umstoßen darf.
	DecisionDelayHours int `envconfig:"DECISION_DELAY_HOURS" default:"12"`

	// S3-Export der Contribution-Bundles (Strato HiDrive). Ohne URL bleibt
	// der Export deaktiviert.
	StratoS3Key    string `envconfig:"STRATO_S3_KEY"`
	StratoS3Secret string `envconfig:"STRATO_S3_SECRET"`
	StratoS3URL    string `envconfig:"STRATO_S3_URL"`
	StratoS3Region string `envconfig:"STRATO_S3_REGION" default:"de"`
	StratoS3Bucket string `envconfig:"STRATO_S3_BUCKET" default:"dariah-contrib-export"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// ExportEnabled meldet, ob der S3-Export konfiguriert ist.
func (c *Config) ExportEnabled() bool {
	return c.StratoS3URL != ""
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
