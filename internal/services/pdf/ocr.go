package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/studygen/internal/common"
)

// Recognizer turns a document into text by optical recognition.
// pageCount may be 0 when the page count is unknown.
type Recognizer interface {
	Recognize(ctx context.Context, path string, pageCount int) (string, error)
}

// CommandRunner runs an external program and returns its stdout
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// TesseractOCR rasterizes pages with pdftoppm and recognizes each image with tesseract
type TesseractOCR struct {
	runner    CommandRunner
	pdftoppm  string
	tesseract string
	language  string
	dpi       int
	maxPages  int
	logger    arbor.ILogger
}

// NewTesseractOCR creates a recognizer from extraction settings
func NewTesseractOCR(config *common.ExtractionConfig, runner CommandRunner, logger arbor.ILogger) *TesseractOCR {
	if runner == nil {
		runner = ExecRunner{}
	}
	ocr := &TesseractOCR{
		runner:    runner,
		pdftoppm:  config.PdftoppmPath,
		tesseract: config.TesseractPath,
		language:  config.Language,
		dpi:       config.DPI,
		maxPages:  config.MaxOCRPages,
		logger:    logger,
	}
	if ocr.pdftoppm == "" {
		ocr.pdftoppm = "pdftoppm"
	}
	if ocr.tesseract == "" {
		ocr.tesseract = "tesseract"
	}
	if ocr.language == "" {
		ocr.language = "eng"
	}
	if ocr.dpi <= 0 {
		ocr.dpi = 200
	}
	return ocr
}

// Recognize renders every page to PNG and concatenates the recognized text in page order
func (t *TesseractOCR) Recognize(ctx context.Context, path string, pageCount int) (string, error) {
	tempDir, err := os.MkdirTemp("", "studygen-ocr-")
	if err != nil {
		return "", fmt.Errorf("failed to create OCR temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	args := []string{"-r", strconv.Itoa(t.dpi), "-png"}
	if t.maxPages > 0 {
		args = append(args, "-f", "1", "-l", strconv.Itoa(t.maxPages))
	}
	args = append(args, path, filepath.Join(tempDir, "page"))

	if _, err := t.runner.Run(ctx, t.pdftoppm, args...); err != nil {
		return "", fmt.Errorf("failed to rasterize pages: %w", err)
	}

	images, err := pageImages(tempDir)
	if err != nil {
		return "", err
	}

	t.logger.Debug().
		Str("path", path).
		Int("page_count", pageCount).
		Int("images", len(images)).
		Msg("Running OCR over rasterized pages")

	texts := make([]string, 0, len(images))
	for _, image := range images {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		out, err := t.runner.Run(ctx, t.tesseract, image, "stdout", "-l", t.language)
		if err != nil {
			return "", fmt.Errorf("failed to recognize %s: %w", filepath.Base(image), err)
		}
		texts = append(texts, string(out))
	}
	return strings.Join(texts, "\n"), nil
}

// pageImages lists rendered PNGs in page order. pdftoppm zero-pads page numbers to
// the width of the last page, so a numeric sort is needed for mixed widths.
func pageImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list rendered pages: %w", err)
	}

	type image struct {
		path string
		page int
	}
	var images []image
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".png") {
			continue
		}
		number := strings.TrimSuffix(strings.TrimPrefix(name, "page-"), ".png")
		page, err := strconv.Atoi(number)
		if err != nil {
			continue
		}
		images = append(images, image{path: filepath.Join(dir, name), page: page})
	}
	sort.Slice(images, func(i, j int) bool { return images[i].page < images[j].page })

	paths := make([]string, len(images))
	for i, img := range images {
		paths[i] = img.path
	}
	return paths, nil
}
