package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/motionscore/internal/classify"
	"github.com/claude/motionscore/internal/config"
	"github.com/claude/motionscore/internal/pose"
	"github.com/claude/motionscore/internal/session"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional; defaults apply)")
	recordingPath := flag.String("recording", "", "path to a recording JSON file (required)")
	pretty := flag.Bool("pretty", false, "indent the verdict JSON")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *recordingPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: motionscore-analyze -recording frames.json [-config config.yaml] [-pretty]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	data, err := os.ReadFile(*recordingPath)
	if err != nil {
		log.Error("failed to read recording", "error", err)
		os.Exit(1)
	}

	var raw []pose.RawFrame
	if err := json.Unmarshal(data, &raw); err != nil {
		log.Error("recording is not valid JSON", "error", err)
		os.Exit(1)
	}
	frames, err := pose.DecodeFrames(raw)
	if err != nil {
		log.Error("recording rejected", "error", err)
		os.Exit(1)
	}
	log.Info("recording loaded", "frames", len(frames))

	factory := session.NewFactory(cfg.Analysis, classify.HeuristicLegs{}, classify.HeuristicArms{}, log)
	verdict, analysisErr := factory.NewSession().AnalyzeRecording(frames)
	if analysisErr != nil {
		log.Warn("analysis outcome", "outcome", string(verdict.Outcome))
	}

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(verdict); err != nil {
		log.Error("failed to write verdict", "error", err)
		os.Exit(1)
	}
}
