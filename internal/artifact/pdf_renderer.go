// Package artifact turns completed results into downloadable files.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"github.com/go-pdf/fpdf"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// digitsPerLine keeps very large results readable on the page.
const digitsPerLine = 70

// PDFRenderer writes one PDF per job into dir and removes it after ttl. The
// removal is not coordinated with the state store; a file may outlive its job
// record by a little or disappear slightly before it.
type PDFRenderer struct {
	dir    string
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

type Option func(*PDFRenderer)

func WithLogger(l *slog.Logger) Option {
	return func(r *PDFRenderer) { r.logger = l }
}

func NewPDFRenderer(dir string, ttl time.Duration, opts ...Option) (*PDFRenderer, error) {
	if dir == "" {
		return nil, errors.New("artifact: directory is required")
	}
	if ttl <= 0 {
		return nil, errors.New("artifact: ttl must be positive")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact: create %s: %w", dir, err)
	}
	r := &PDFRenderer{
		dir:    dir,
		ttl:    ttl,
		logger: slog.Default(),
		timers: make(map[string]*time.Timer),
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// PathFor returns where the artifact of jobID is written.
func (r *PDFRenderer) PathFor(jobID string) string {
	return filepath.Join(r.dir, jobID+".pdf")
}

// Render writes the artifact for a completed computation and returns its path.
func (r *PDFRenderer) Render(ctx context.Context, jobID string, input int64, result string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, "Fibonacci Result", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 14)
	pdf.CellFormat(0, 8, "Job ID: "+jobID, "", 1, "L", false, 0, "")
	pdf.Ln(4)
	pdf.CellFormat(0, 8, fmt.Sprintf("Fibonacci(%d) =", input), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Courier", "", 9)
	pdf.MultiCell(0, 4, wrapDigits(result, digitsPerLine), "", "L", false)
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, "Generated on: "+time.Now().Format(time.RFC1123), "", 1, "L", false, 0, "")
	pdf.Ln(4)
	pdf.CellFormat(0, 6, fmt.Sprintf("Note: This file will expire after %d minutes.", int(r.ttl/time.Minute)), "", 1, "L", false, 0, "")

	path := r.PathFor(jobID)
	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	r.scheduleRemoval(jobID, path)
	return path, nil
}

func (r *PDFRenderer) scheduleRemoval(jobID, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.timers[jobID]; ok {
		old.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(r.ttl, func() {
		r.mu.Lock()
		if r.timers[jobID] == timer {
			delete(r.timers, jobID)
		}
		r.mu.Unlock()

		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			r.logger.Error("failed to delete expired artifact", slog.String("path", path), slog.String("error", err.Error()))
			return
		}
		r.logger.Debug("deleted expired artifact", slog.String("path", path))
	})
	r.timers[jobID] = timer
}

// Close cancels pending removals. Files already written stay on disk.
func (r *PDFRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
	return nil
}

func wrapDigits(s string, width int) string {
	if len(s) <= width {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + len(s)/width)
	for i := 0; i < len(s); i += width {
		end := min(i+width, len(s))
		b.WriteString(s[i:end])
		if end < len(s) {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
