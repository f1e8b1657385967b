package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ayusman/drishti/internal/app"
	"github.com/ayusman/drishti/internal/config"
	"github.com/ayusman/drishti/internal/landmark"
	"github.com/ayusman/drishti/internal/server"
	"github.com/ayusman/drishti/internal/store"
)

func main() {
	fmt.Println("Drishti - Gaze and Gesture Control")

	var replayPath string
	flag.StringVar(&replayPath, "replay", "", "replay a JSONL recording instead of accepting live frames")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	dataDir, err := resolveDataDir(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to resolve data directory: %v", err)
	}

	st, err := store.New(filepath.Join(dataDir, "drishti.db"))
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	tuning, err := resolveTuning(cfg.TuningPath, st)
	if err != nil {
		log.Fatalf("Failed to load tuning: %v", err)
	}

	// Live mode feeds the pipeline from the WebSocket ingest endpoint.
	// Replay mode reads a recording instead and exits once it drains.
	var (
		src        landmark.Source
		ingest     *landmark.ChannelSource
		sourceName string
	)
	if replayPath != "" {
		replay, err := landmark.OpenReplay(replayPath)
		if err != nil {
			log.Fatalf("Failed to open recording: %v", err)
		}
		src = replay
		sourceName = "replay"
		fmt.Printf("Replaying frames from: %s\n", replayPath)
	} else {
		ingest = landmark.NewChannelSource(cfg.IngestBuffer)
		src = ingest
		sourceName = "detector"
	}

	a, err := app.New(app.Config{
		Store:        st,
		Source:       src,
		SourceName:   sourceName,
		Tuning:       tuning,
		RecordGaze:   cfg.RecordGaze,
		MinFaceScore: cfg.MinFaceScore,
		MinHandScore: cfg.MinHandScore,
	})
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}
	if err := a.Start(); err != nil {
		log.Fatalf("Failed to start pipeline: %v", err)
	}

	staticDir := resolveStaticDir(cfg.StaticDir)
	if staticDir != "" {
		fmt.Printf("Serving static files from: %s\n", staticDir)
	}

	srv := server.New(server.Config{
		App:       a,
		Store:     st,
		Ingest:    ingest,
		StaticDir: staticDir,
	})

	httpServer := &http.Server{Addr: cfg.Addr, Handler: srv}
	go func() {
		fmt.Printf("Starting server on %s\n", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	pipelineDone := make(chan struct{})
	go func() {
		a.Wait()
		close(pipelineDone)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		log.Println("Shutdown signal received")
	case <-pipelineDone:
		log.Println("Landmark source drained")
	}

	// Finalize the session row before the store closes
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	a.Stop()
	log.Println("Shutdown complete")
}

// resolveDataDir falls back to ~/.drishti and ensures the directory exists.
func resolveDataDir(dir string) (string, error) {
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(homeDir, ".drishti")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// resolveTuning prefers an explicit tuning file. Without one, the override
// last applied through the API is restored from the store.
func resolveTuning(path string, st *store.Store) (*config.Tuning, error) {
	if path != "" {
		return config.LoadTuning(path)
	}

	raw, err := st.Settings().Get(app.TuningKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &config.Tuning{}, nil
		}
		return nil, err
	}

	var t config.Tuning
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return nil, fmt.Errorf("parse stored tuning: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("stored tuning: %w", err)
	}
	return &t, nil
}

// resolveStaticDir searches for the dashboard directory in common locations.
// It checks the configured path, "web", "../web", and ~/.drishti/web.
// Returns the first existing directory or empty string if none found.
func resolveStaticDir(configured string) string {
	if configured != "" {
		return configured
	}

	relativePaths := []string{"web", "../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".drishti", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
