package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/reimburse/internal/reimburse"
	"github.com/zombor/reimburse/internal/scanning"
)

var version = "dev"

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("reimburse-server")
	var (
		port        = fs.IntLong("port", 8080, "HTTP server port")
		dataDir     = fs.StringLong("data", "./data", "Directory for the database, uploads and results")
		scannerType = fs.StringLong("scanner", "local", "Scanner type: "+strings.Join(scanning.Providers(), ", "))
		geminiKey   = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL   = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel = fs.StringLong("ollama-model", "qwen2.5vl", "Ollama vision model name")
		chatURL     = fs.StringLong("chat-url", "https://api.deepseek.com", "OpenAI-compatible API base URL")
		chatKey     = fs.StringLong("chat-key", "", "OpenAI-compatible API key (or set DEEPSEEK_API_KEY env var)")
		chatModel   = fs.StringLong("chat-model", "deepseek-chat", "OpenAI-compatible model name")
		noOCR       = fs.BoolLong("no-ocr", "Disable tesseract OCR for images and scanned PDFs")
		tesseract   = fs.StringLong("tesseract", "tesseract", "Path to the tesseract binary")
		ocrLang     = fs.StringLong("ocr-lang", "chi_sim+eng", "Tesseract language(s)")
		authUser    = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass    = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("REIMBURSE"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := os.MkdirAll(*dataDir, 0755); err != nil {
		slog.Error("Failed to create data directory", "error", err)
		os.Exit(1)
	}

	slog.Info("Initializing database...")
	db, err := reimburse.NewBoltDB(filepath.Join(*dataDir, "reimburse.db"))
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	scanner, err := scanning.New(scanning.Config{
		Provider:    *scannerType,
		GeminiKey:   firstNonEmpty(*geminiKey, os.Getenv("GEMINI_API_KEY")),
		GeminiModel: *geminiModel,
		OllamaURL:   *ollamaURL,
		OllamaModel: *ollamaModel,
		ChatURL:     *chatURL,
		ChatKey:     firstNonEmpty(*chatKey, os.Getenv("DEEPSEEK_API_KEY")),
		ChatModel:   *chatModel,
		OCR:         !*noOCR,
		Tesseract:   *tesseract,
		OCRLang:     *ocrLang,
	})
	if err != nil {
		slog.Error("Failed to initialize scanner", "type", *scannerType, "error", err)
		os.Exit(1)
	}
	defer scanner.Close()

	slog.Info("Initializing storage...")
	store, err := reimburse.NewLocalStorage(filepath.Join(*dataDir, "files"))
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	service := reimburse.NewService(db, scanner, store)
	defer service.Close()
	if err := service.Resume(); err != nil {
		slog.Error("Failed to resume batches", "error", err)
	}

	basicAuth := reimburse.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := reimburse.NewServer(service, basicAuth)

	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "scanner", *scannerType)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
