package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"swingback/internal/config"
	"swingback/internal/engine"
	"swingback/internal/logger"
	"swingback/internal/recorder"
	"swingback/internal/repository"
	"swingback/internal/selector"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "config.yaml", "path to config file")
		preset     = flag.String("preset", "", "parameter preset (conservative|balanced|aggressive|small_capital)")
		startDate  = flag.String("start", "", "override backtest start date (YYYY-MM-DD)")
		endDate    = flag.String("end", "", "override backtest end date (YYYY-MM-DD)")
		outPath    = flag.String("out", "", "override result JSON path")
		tradesCSV  = flag.String("trades-csv", "", "also write the trade log as CSV to this path")
	)
	flag.Parse()

	// .env is optional, real env vars win either way
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyPreset(*preset); err != nil {
		return err
	}
	if *startDate != "" {
		cfg.Backtest.StartDate = *startDate
	}
	if *endDate != "" {
		cfg.Backtest.EndDate = *endDate
	}
	if *outPath != "" {
		cfg.Output.ResultPath = *outPath
	}
	if *tradesCSV != "" {
		cfg.Output.TradesCSV = *tradesCSV
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.New(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewDatabase(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	hybrid := cfg.Strategy.Mode == config.ModeHybrid
	var scorer selector.ExternalScorer
	if hybrid {
		scorer = db
	}
	sel := selector.New(cfg.Selector, cfg.Scoring, hybrid, db, scorer, log)

	eng, err := engine.New(cfg, db, sel, log)
	if err != nil {
		return err
	}

	result, err := eng.Run(ctx)
	if err != nil {
		return err
	}

	if err := result.WriteJSON(cfg.Output.ResultPath); err != nil {
		return err
	}
	log.Info("result written", "path", cfg.Output.ResultPath)

	if cfg.Output.TradesCSV != "" {
		if err := result.WriteTradesCSVFile(cfg.Output.TradesCSV); err != nil {
			return err
		}
	}

	var rec recorder.Recorder = recorder.NoopRecorder{}
	if cfg.Recorder.Enabled {
		sqliteRec, err := recorder.NewSQLiteRecorder(cfg.Recorder.SQLitePath)
		if err != nil {
			return fmt.Errorf("open recorder: %w", err)
		}
		rec = sqliteRec
	}
	defer rec.Close()

	if err := rec.RecordRun(result); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}
