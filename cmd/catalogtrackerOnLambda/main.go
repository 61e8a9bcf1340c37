package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/ex-n-soldiers/catalog-tracker/internal/archive"
	"github.com/ex-n-soldiers/catalog-tracker/internal/catalog"
	"github.com/ex-n-soldiers/catalog-tracker/internal/diff"
	"github.com/ex-n-soldiers/catalog-tracker/internal/notify"
	"github.com/ex-n-soldiers/catalog-tracker/internal/pkg"
)

func main() {
	lambda.Start(handleRequest)
}

type runSummary struct {
	Manifest  archive.Manifest `json:"manifest"`
	Diff      *diff.Summary    `json:"diff,omitempty"`
	Published int              `json:"published"`
}

func handleRequest(ctx context.Context) (events.APIGatewayProxyResponse, error) {
	summary, err := lambdaRun(ctx)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	body, err := json.Marshal(summary)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}, nil
}

// lambdaRun scrapes every configured vendor, ingests today's exports and,
// with Kafka configured, publishes the diff against the previous snapshot.
func lambdaRun(ctx context.Context) (runSummary, error) {
	config, err := pkg.Configure()
	if err != nil {
		return runSummary{}, err
	}
	logger := pkg.NewLogger(os.Stdout, config.LogLevel)
	metrics := pkg.NewMetrics()
	today := catalog.Day(time.Now())

	scraper := pkg.NewScraper(config.Scrape, logger)
	if _, err := scraper.Run(ctx, config.Vendors, config.ExportDir, today); err != nil {
		return runSummary{}, err
	}

	opts := pkg.IngestOptions{
		ExportDir: config.ExportDir,
		Date:      today,
		Metrics:   metrics,
		Logger:    logger,
	}
	if config.Db.Enabled {
		db, err := pkg.GormConnect(config)
		if err != nil {
			return runSummary{}, err
		}
		defer pkg.CloseDB(db)

		if err = pkg.DbMigration(db); err != nil {
			return runSummary{}, err
		}
		opts.DB = db
	}
	if config.S3.Enabled() {
		mirror, err := pkg.NewS3Mirror(config.S3, logger)
		if err != nil {
			return runSummary{}, err
		}
		opts.S3 = mirror
	}

	store := archive.NewStore(config.ArchiveDir, config.CombinedPath)
	result, err := pkg.Ingest(ctx, store, opts)
	if err != nil {
		return runSummary{}, err
	}
	summary := runSummary{Manifest: result.Manifest}

	if config.Kafka.Enabled() {
		publisher := notify.NewPublisher(config.Kafka.Brokers, config.Kafka.Topic)
		defer publisher.Close()

		r, n, err := pkg.RunDiff(ctx, store, pkg.DiffOptions{Publisher: publisher, Metrics: metrics})
		switch {
		case errors.Is(err, pkg.ErrNotEnoughSnapshots):
			logger.Info("first snapshot, nothing to diff")
		case err != nil:
			return runSummary{}, err
		default:
			s := r.Summary()
			summary.Diff = &s
			summary.Published = n
		}
	}

	if err := metrics.WriteTextfile(config.MetricsTextfile); err != nil {
		return runSummary{}, err
	}
	return summary, nil
}
