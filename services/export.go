package services

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"dariah-contrib/config"
	"dariah-contrib/storage"
	"dariah-contrib/workflow"
)

// ExportService lädt Contribution-Bundles als JSON ins S3-Archiv.
type ExportService struct {
	Config   *config.Config
	Engine   *workflow.Engine
	S3Client *s3.Client
	Logger   *zap.Logger
}

// NewExportService erstellt eine neue Instanz des ExportService.
func NewExportService(cfg *config.Config, engine *workflow.Engine, s3Client *s3.Client, logger *zap.Logger) *ExportService {
	return &ExportService{
		Config:   cfg,
		Engine:   engine,
		S3Client: s3Client,
		Logger:   logger,
	}
}

// ExportContribution exportiert das Bundle einer Contribution und gibt den
// S3-Link zurück.
func (e *ExportService) ExportContribution(ctx context.Context, contribID uint) (string, error) {
	data, err := e.Engine.ExportBundle(ctx, contribID)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("contributions/%d/%s.json", contribID, time.Now().UTC().Format("2006-01-02T15-04-05"))
	link, err := storage.UploadObject(ctx, e.S3Client, e.Config.StratoS3Bucket, key, "application/json", data, e.Config)
	if err != nil {
		e.Logger.Error("Bundle-Upload fehlgeschlagen",
			zap.Uint("contribution", contribID), zap.Error(err))
		return "", err
	}
	e.Logger.Info("Bundle exportiert",
		zap.Uint("contribution", contribID), zap.String("key", key))
	return link, nil
}

// ExportSelected exportiert die Bundles aller selektierten Contributions,
// etwa für den nächtlichen Archiv-Lauf. Einzelne Fehler werden geloggt,
// der Lauf geht weiter.
func (e *ExportService) ExportSelected(ctx context.Context, store workflow.RecordStore) (int, error) {
	contribs, err := store.Contributions(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range contribs {
		if contribs[i].Selected == nil || !*contribs[i].Selected {
			continue
		}
		if _, err := e.ExportContribution(ctx, contribs[i].ID); err != nil {
			continue
		}
		n++
	}
	return n, nil
}
