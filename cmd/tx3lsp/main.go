package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"tx3lsp/internal/config"
	"tx3lsp/internal/lsp"
)

func main() {
	configPath := flag.String("config", "", "path to a yaml config file")
	logPath := flag.String("log", "", "log file path (defaults to the temp dir)")
	flag.Parse()

	path := *configPath
	if path == "" {
		path = os.Getenv("TX3LSP_CONFIG")
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Logging must stay off stdout; the protocol owns it.
	file := cfg.LogPath
	if *logPath != "" {
		file = *logPath
	}
	if file == "" {
		logsDir := filepath.Join(os.TempDir(), "tx3lsp")
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			log.Fatalf("Failed to create logs directory: %v", err)
		}
		file = filepath.Join(logsDir, "tx3lsp.log")
	}
	commonlog.Configure(cfg.Verbosity, &file)

	server := lsp.NewServer(cfg)
	if err := server.RunStdio(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
