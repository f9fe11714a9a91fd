package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"quill/internal/api"
	"quill/internal/config"
	"quill/internal/db"
	"quill/internal/logging"
	"quill/internal/ui"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to a quill config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	// The TUI owns the terminal, so logs go to a file.
	if err := logging.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.File); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer logging.Close()

	dbConn, dbErr := db.OpenQuillDB(cfg.DBPath)
	if dbErr != nil {
		logging.Warnf("local database unavailable, form will not persist: %v", dbErr)
	}

	logging.WithField("server", cfg.ServerURL).Info("starting quill")
	p := ui.NewProgram(ui.Deps{
		Client:            api.NewClient(cfg.ServerURL, &http.Client{}),
		DB:                dbConn,
		DBErr:             dbErr,
		SearchDebounce:    cfg.SearchDebounce,
		StreamIdleTimeout: cfg.StreamIdleTimeout,
		ExportDir:         cfg.ExportDir,
		ExportFormat:      cfg.ExportFormat,
	})
	finalModel, err := p.Run()
	if err != nil {
		fmt.Printf("Error: %v", err)
		os.Exit(1)
	}
	if m, ok := finalModel.(*ui.Model); ok {
		if m.DB != nil {
			_ = m.DB.Close()
		}
	}
}
