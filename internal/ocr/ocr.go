// Package ocr reads text out of images with the tesseract command.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"unicode"
)

// ErrUnavailable is returned by New when the tesseract binary cannot be found.
var ErrUnavailable = errors.New("tesseract not available")

// Config configures the tesseract invocation.
type Config struct {
	Tesseract   string // binary name or absolute path, default "tesseract"
	Lang        string // default "chi_sim+eng"
	PSM         int    // page segmentation mode; 0 keeps tesseract's default
	TessdataDir string
}

// Tesseract recognizes text in PNG images.
type Tesseract struct {
	cfg    Config
	runner Runner
}

// New creates a Tesseract backed by the local binary.
func New(cfg Config) (*Tesseract, error) {
	t := NewWithRunner(cfg, execRunner{})
	if _, err := exec.LookPath(t.cfg.Tesseract); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return t, nil
}

// NewWithRunner creates a Tesseract that executes commands through runner.
func NewWithRunner(cfg Config, runner Runner) *Tesseract {
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "chi_sim+eng"
	}
	return &Tesseract{cfg: cfg, runner: runner}
}

// Recognize runs OCR over one PNG image and returns the cleaned text.
func (t *Tesseract) Recognize(ctx context.Context, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp("", "reimburse-ocr-*.png")
	if err != nil {
		return "", fmt.Errorf("creating temp image: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(image); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing temp image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("writing temp image: %w", err)
	}

	// tesseract <file> stdout -l <lang>
	args := []string{tmp.Name(), "stdout", "-l", t.cfg.Lang}
	if t.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.cfg.PSM))
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}

	out, errb, err := t.runner.Run(ctx, t.cfg.Tesseract, args...)
	if err != nil {
		if msg := strings.TrimSpace(string(errb)); msg != "" {
			return "", fmt.Errorf("tesseract: %w: %s", err, truncate(msg, 512))
		}
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return Normalize(string(out)), nil
}

// Normalize tidies tesseract output: page breaks and blank lines go, and
// the spaces tesseract puts between Chinese characters are removed so
// keywords like 发票号码 stay intact.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\f", "\n")
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = joinHan(strings.TrimSpace(line))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func joinHan(line string) string {
	r := []rune(line)
	var b strings.Builder
	for i := 0; i < len(r); i++ {
		if unicode.IsSpace(r[i]) && i > 0 && unicode.Is(unicode.Han, r[i-1]) {
			j := i
			for j < len(r) && unicode.IsSpace(r[j]) {
				j++
			}
			if j < len(r) && unicode.Is(unicode.Han, r[j]) {
				i = j - 1
				continue
			}
		}
		b.WriteRune(r[i])
	}
	return b.String()
}
