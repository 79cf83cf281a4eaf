package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xelth-com/spectraq/internal/ai"
	"github.com/xelth-com/spectraq/internal/config"
	"github.com/xelth-com/spectraq/internal/database"
	"github.com/xelth-com/spectraq/internal/handlers"
	"github.com/xelth-com/spectraq/internal/history"
	"github.com/xelth-com/spectraq/internal/inspection"
	"github.com/xelth-com/spectraq/internal/plant"
	"github.com/xelth-com/spectraq/internal/scheduler"
	"github.com/xelth-com/spectraq/internal/services/inspector"
	"github.com/xelth-com/spectraq/internal/services/report"
	"github.com/xelth-com/spectraq/internal/storage"
	"github.com/xelth-com/spectraq/internal/utils"
	"github.com/xelth-com/spectraq/internal/video"
	ws "github.com/xelth-com/spectraq/internal/websocket"
)

// sensorTick is how often the live telemetry drifts on the dashboard
const sensorTick = 2 * time.Second

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	p, err := plant.Load(cfg.PlantConfig)
	if err != nil {
		log.Fatalf("Failed to load plant profile: %v", err)
	}
	log.Printf("🏭 Plant: %s (%d technicians, %d manual extracts)", p.Name, len(p.Technicians), len(p.Manuals))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 2. Optional database: report index, model call audit, shift summaries
	var (
		db        *database.DB
		recorder  ai.CallRecorder
		jobIndex  report.JobIndex
		summaries scheduler.SummaryStore
	)
	if cfg.Database.Enabled {
		db, err = database.Connect(cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		if err := db.Migrate(); err != nil {
			log.Printf("⚠️ Migration warning: %v", err)
		}
		recorder = database.NewCallLogRepository(db)
		jobIndex = database.NewReportArchiveRepository(db)
		summaries = database.NewShiftSummaryRepository(db)
	} else {
		log.Println("ℹ️ Database disabled, report jobs are tracked in memory")
	}

	// 3. Model provider
	model, closeModel := newModel(ctx, cfg.AI)
	model = ai.WithRecorder(model, cfg.AI.Provider, recorder)

	// 4. Realtime hub and pipeline
	hub := ws.NewHub()
	go hub.Run(ctx)

	store := history.NewStore()
	sensor := inspection.NewSensorSimulator(nil)
	go driftSensor(ctx, sensor, hub)

	pipeline := inspector.New(ai.NewClassifier(model, cfg.AI.Timeout), sensor, store, hub, p)

	reportStore, err := storage.NewLocalStorage(cfg.Reports.Dir)
	if err != nil {
		log.Fatalf("Failed to prepare reports directory: %v", err)
	}
	archive := report.NewArchive(reportStore, jobIndex)

	// 5. Video sampling needs ffmpeg on PATH
	videos := video.NewManager(ctx, cfg.Video.SampleInterval)
	var clips handlers.ClipOpener
	var uploads *storage.LocalStorage
	if extractor, err := video.NewExtractor(cfg.Video.FrameSize); err != nil {
		log.Printf("⚠️ Video sampling disabled: %v", err)
	} else if uploads, err = storage.NewLocalStorage(cfg.Video.UploadDir); err != nil {
		log.Printf("⚠️ Video sampling disabled: %v", err)
	} else {
		clips = func(ctx context.Context, path string, cleanup func() error) (video.FrameSource, error) {
			return video.OpenClip(ctx, extractor, path, cfg.Video.SampleInterval, cfg.Video.MaxFrames, cleanup)
		}
		log.Printf("✅ Video sampling enabled (every %s, max %d frames)", cfg.Video.SampleInterval, cfg.Video.MaxFrames)
	}

	// 6. Shift summary schedule
	if cfg.Schedule.ShiftSummaryCron != "" {
		summary, err := scheduler.NewShiftSummary(cfg.Schedule.ShiftSummaryCron, store, summaries, hub)
		if err != nil {
			log.Fatalf("Failed to schedule shift summary: %v", err)
		}
		summary.Start(ctx)
	}

	// 7. HTTP router
	router := handlers.NewRouter(handlers.Deps{
		Config:    cfg,
		Plant:     p,
		Store:     store,
		Sensor:    sensor,
		Inspector: pipeline,
		Assistant: ai.NewAssistant(model, cfg.AI.Timeout),
		Renderer:  report.NewRenderer(cfg.Reports.FontDir),
		Archive:   archive,
		Videos:    videos,
		Clips:     clips,
		Uploads:   uploads,
		Hub:       hub,
		Provider:  cfg.AI.Provider,
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Channel to listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		log.Printf("🚀 Spectra-Q server starting on port %s (provider: %s)", cfg.Port, cfg.AI.Provider)
		for _, url := range utils.DashboardURLs(cfg.Port) {
			log.Printf("📡 Dashboard: %s", url)
		}
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	sig := <-shutdown
	log.Printf("⚠️  Received signal: %v. Shutting down gracefully...", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Let in-flight frames land before the pipeline goes away
	if err := videos.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ Video sessions still running: %v", err)
	}
	stop()

	log.Println("🛑 Waiting for report archive writes...")
	archive.Wait()

	closeModel()

	if db != nil {
		log.Println("🛑 Closing database connection...")
		if err := db.Close(); err != nil {
			log.Printf("Database close error: %v", err)
		}
	}

	log.Println("✅ Shutdown complete")
}

// newModel builds the configured provider client and its close func
func newModel(ctx context.Context, cfg config.AIConfig) (ai.Model, func()) {
	switch cfg.Provider {
	case config.ProviderAnthropic:
		client, err := ai.NewAnthropicClient(cfg.AnthropicKey, cfg.AnthropicModel)
		if err != nil {
			log.Fatalf("Failed to create Anthropic client: %v", err)
		}
		log.Printf("✅ AI provider: Anthropic (%s)", cfg.AnthropicModel)
		return client, func() {}
	default:
		client, err := ai.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Fatalf("Failed to create Gemini client: %v", err)
		}
		log.Printf("✅ AI provider: Gemini (%s)", cfg.GeminiModel)
		return client, client.Close
	}
}

// driftSensor advances the live reading and pushes it to the dashboards
func driftSensor(ctx context.Context, sensor *inspection.SensorSimulator, hub *ws.Hub) {
	ticker := time.NewTicker(sensorTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hub.Publish(ws.NewEvent(ws.EventSensorTick, sensor.Drift()))
		}
	}
}
