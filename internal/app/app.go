package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/studygen/internal/common"
	"github.com/ternarybob/studygen/internal/interfaces"
	"github.com/ternarybob/studygen/internal/locks"
	"github.com/ternarybob/studygen/internal/metrics"
	"github.com/ternarybob/studygen/internal/services/index"
	"github.com/ternarybob/studygen/internal/services/llm"
	"github.com/ternarybob/studygen/internal/services/memo"
	"github.com/ternarybob/studygen/internal/services/pdf"
	"github.com/ternarybob/studygen/internal/services/pipeline"
	"github.com/ternarybob/studygen/internal/services/retriever"
	"github.com/ternarybob/studygen/internal/storage"
	"github.com/ternarybob/studygen/internal/worker"
)

// Options selects which parts of the application New builds
type Options struct {
	// Models builds the Gemini client, embedder, generator, OCR and the pipeline.
	// Administrative commands leave it off and need no API key.
	Models bool
}

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager
	Locker         interfaces.KeyedLocker
	Metrics        *metrics.Metrics

	// Record services
	RecordStore interfaces.RecordStore
	Memoizer    *memo.Memoizer

	// Model services, nil unless Options.Models
	GeminiClient *genai.Client
	Embedder     interfaces.Embedder
	Generator    interfaces.Generator
	Extractor    interfaces.TextExtractor

	// Index and generation
	IndexService  *index.Service
	Retriever     *retriever.Retriever
	Pool          *worker.Pool
	Pipeline      *pipeline.Pipeline
	NotesExporter *pdf.NotesExporter
}

// New initializes the application with all dependencies
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger, opts Options) (*App, error) {
	app := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(ctx, opts); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logger.Debug().
		Str("storage", cfg.Storage.Type).
		Str("locks", cfg.Locks.Backend).
		Bool("models", opts.Models).
		Msg("Application initialized")

	return app, nil
}

func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}
	a.StorageManager = storageManager

	a.Logger.Debug().
		Str("storage", a.Config.Storage.Type).
		Str("badger_path", a.Config.Storage.Badger.Path).
		Str("sqlite_path", a.Config.Storage.SQLite.Path).
		Msg("Storage layer initialized")
	return nil
}

// initServices wires services in dependency order:
// locks -> records -> models -> extraction -> index -> retrieval -> pipeline
func (a *App) initServices(ctx context.Context, opts Options) error {
	var err error

	a.Locker, err = locks.New(ctx, a.Config, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create locker: %w", err)
	}

	a.RecordStore = memo.NewKVRecordStore(a.StorageManager.KeyValueStorage())
	a.Memoizer = memo.NewMemoizer(a.RecordStore, a.Locker, a.Logger)
	a.NotesExporter = pdf.NewNotesExporter(a.Logger)

	if !opts.Models {
		// Index administration only touches stored entries
		a.IndexService = index.NewService(a.StorageManager.DocumentIndex(), nil, nil, a.Locker, &a.Config.Index, a.Metrics, a.Logger)
		return nil
	}

	observer := llm.MultiObserver{llm.NewLogObserver(a.Logger), a.Metrics}
	kv := a.StorageManager.KeyValueStorage()

	a.GeminiClient, err = llm.NewGeminiClient(ctx, &a.Config.Gemini, kv)
	if err != nil {
		return err
	}
	a.Embedder = llm.NewGeminiEmbedder(a.GeminiClient, a.Config, observer, a.Logger)

	a.Generator, err = llm.NewGenerator(ctx, a.Config, a.GeminiClient, kv, observer, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create generator: %w", err)
	}

	ocrPolicy := llm.NewRetryPolicy(&a.Config.Retry, common.ParseDurationOr(a.Config.Gemini.Timeout, 2*time.Minute))
	recognizer, err := pdf.NewRecognizer(a.Config, a.GeminiClient, ocrPolicy, observer, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create OCR engine: %w", err)
	}
	a.Extractor = pdf.NewExtractor(pdf.NewTextLayerReader(), recognizer, a.Logger)

	a.IndexService = index.NewService(a.StorageManager.DocumentIndex(), a.Extractor, a.Embedder, a.Locker, &a.Config.Index, a.Metrics, a.Logger)
	a.Retriever = retriever.New(a.IndexService, a.Logger)

	a.Pool = worker.NewPool(a.Logger, a.Config.Pipeline.Workers)
	a.Pool.Start()

	a.Pipeline = pipeline.New(a.IndexService, a.Retriever, a.Memoizer, a.Generator, a.Pool, &a.Config.Pipeline, a.Metrics, a.Logger)

	a.Logger.Info().
		Str("generator", a.Generator.ModelName()).
		Str("embedder", a.Embedder.ModelName()).
		Str("ocr_engine", a.Config.Extraction.OCREngine).
		Int("workers", a.Config.Pipeline.Workers).
		Msg("Generation pipeline ready")
	return nil
}

// Close stops workers, flushes metrics and closes storage
func (a *App) Close() error {
	if a.Pool != nil {
		a.Pool.Stop()
	}

	if a.Generator != nil {
		if err := a.Generator.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close generator")
		}
	}

	if closer, ok := a.Locker.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close locker")
		}
	}

	if a.Config.Metrics.Enabled && a.Config.Metrics.Textfile != "" {
		if err := a.Metrics.WriteTextfile(a.Config.Metrics.Textfile); err != nil {
			a.Logger.Warn().Err(err).Str("path", a.Config.Metrics.Textfile).Msg("Failed to write metrics textfile")
		} else {
			a.Logger.Debug().Str("path", a.Config.Metrics.Textfile).Msg("Metrics written")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Debug().Msg("Storage closed")
	}

	return nil
}
