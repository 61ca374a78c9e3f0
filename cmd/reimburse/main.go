package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/reimburse/internal/organize"
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

	fs := ff.NewFlagSet("reimburse")
	var (
		input       = fs.StringLong("input", ".", "Directory holding the documents to organize")
		output      = fs.StringLong("output", "", "Output directory (default: "+reimburse.DefaultOutputName+" next to the input)")
		copyFiles   = fs.BoolLong("copy", "Copy documents instead of moving them")
		reportOnly  = fs.BoolLong("report", "Only rebuild the report of an already organized directory")
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
		_           = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("REIMBURSE"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *reportOnly {
		dir := *input
		if *output != "" {
			dir = *output
		}
		result, err := reimburse.ReportDirectory(dir)
		if err != nil {
			slog.Error("Failed to rebuild report", "dir", dir, "error", err)
			os.Exit(1)
		}
		printResult(result)
		return
	}

	outDir := *output
	if outDir == "" {
		abs, err := filepath.Abs(*input)
		if err != nil {
			slog.Error("Failed to resolve input", "error", err)
			os.Exit(1)
		}
		outDir = filepath.Join(filepath.Dir(abs), reimburse.DefaultOutputName)
	}

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

	mode := organize.ModeMove
	if *copyFiles {
		mode = organize.ModeCopy
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Organizing documents", "input", *input, "output", outDir, "mode", mode, "scanner", *scannerType)
	result, err := reimburse.OrganizeDirectory(ctx, scanner, *input, outDir, mode)
	if err != nil {
		slog.Error("Failed to organize documents", "error", err)
		os.Exit(1)
	}
	for _, e := range result.Errors {
		slog.Warn("Document needs attention", "error", e)
	}
	printResult(result)
}

func printResult(result *reimburse.DirectoryResult) {
	if result.Files == 0 {
		fmt.Println("没有找到可处理的文件")
		return
	}

	fmt.Printf("共处理 %d 个文件\n", result.Files)
	for _, line := range result.Summary.Lines {
		if line.Count == 0 {
			continue
		}
		fmt.Printf("  %s: %d 张, ¥%s\n", line.Bucket, line.Count, line.Amount.StringFixed(2))
	}
	fmt.Printf("  总计: %d 张, ¥%s\n", result.Summary.Count, result.Summary.Total.StringFixed(2))
	if result.ReportPath != "" {
		fmt.Printf("报表: %s\n", result.ReportPath)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
