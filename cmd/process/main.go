// Command process runs the document pipeline once against a local file and
// prints the decision as JSON. It needs no database or broker, which makes
// it useful for tuning rules and thresholds.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/citysort/citysort/internal/config"
	"github.com/citysort/citysort/internal/core/usecase"
	"github.com/citysort/citysort/internal/infrastructure/extractor/local"
	"github.com/citysort/citysort/internal/infrastructure/rules"
	"github.com/citysort/citysort/internal/observability/logging"
)

func main() {
	filePath := flag.String("file", "", "path of the document to process")
	contentType := flag.String("content-type", "", "optional MIME type hint")
	flag.Parse()

	if *filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	logger := logging.NewJSONLogger("citysort-process", cfg.LogLevel)

	pipeline := usecase.NewProcessPipelineUseCase(
		rules.NewProvider(cfg.RulesPath, logger),
		nil,
		local.New(),
		nil,
		nil,
		usecase.PipelineConfig{
			ConfidenceThreshold: cfg.ConfidenceThreshold,
			ForceReviewDocTypes: cfg.ForceReviewDocTypes,
		},
		logger,
	)

	result, err := pipeline.Process(context.Background(), *filePath, *contentType)
	if err != nil {
		log.Fatalf("process error: %v", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		log.Fatalf("encode result: %v", err)
	}
}
