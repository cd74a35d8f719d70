package main

import (
	"fmt"
	"time"

	gristsync "github.com/Carolinedanslesnuages/grist-sync-plugin-sub001"
	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub001/internal/config"
	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub001/pkg/destination/grist"
	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub001/pkg/destination/sheets"
	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub001/pkg/destination/sqlite"
	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub001/pkg/engine"
	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub001/pkg/source/rest"
)

// buildSyncer assembles a job from its config file.
func buildSyncer(path string) (*engine.Syncer, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	src, err := buildProvider(cfg)
	if err != nil {
		return nil, err
	}
	dest, err := buildDestination(cfg)
	if err != nil {
		return nil, err
	}

	return engine.New(src, dest, cfg.FieldMappings(), cfg.EngineConfig()), nil
}

func buildProvider(cfg *config.JobConfig) (gristsync.Provider, error) {
	switch cfg.Source.Type {
	case "rest":
		return rest.New(rest.Config{
			URL:      cfg.Source.URL,
			Method:   cfg.Source.Method,
			Headers:  cfg.Source.Headers,
			DataPath: cfg.Source.DataPath,
			Timeout:  time.Duration(cfg.Source.TimeoutSeconds) * time.Second,
		}, engine.NewDefaultLogger()), nil
	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Source.Type)
	}
}

func buildDestination(cfg *config.JobConfig) (gristsync.Destination, error) {
	switch cfg.Destination.Type {
	case "grist":
		g := cfg.Destination.Grist
		return grist.New(grist.Config{
			ServerURL: g.ServerURL,
			DocID:     g.DocID,
			TableID:   g.TableID,
			APIKey:    g.APIKey,
		}), nil
	case "sqlite":
		s := cfg.Destination.SQLite
		return sqlite.New(s.Path, s.Table), nil
	case "sheets":
		sh := cfg.Destination.Sheets
		return sheets.New(sheets.Config{
			SpreadsheetID:   sh.SpreadsheetID,
			SheetName:       sh.SheetName,
			CredentialsJSON: sh.CredentialsJSON,
		}), nil
	default:
		return nil, fmt.Errorf("unknown destination type %q", cfg.Destination.Type)
	}
}
