// Package qrbatch renders a QR code for every tag in the inventory and
// packages them into one zip archive.
package qrbatch

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/foresafe/foresafe/internal/apperr"
	"github.com/foresafe/foresafe/internal/tag"
)

const (
	DefaultSize    = 300
	DefaultMaxTags = 10000
	pageSize       = 500
)

type TagLister interface {
	ListIDsAfter(ctx context.Context, after string, limit int) ([]string, error)
}

// Encoder renders content as a square PNG of size pixels.
type Encoder interface {
	Encode(content string, size int) ([]byte, error)
}

// PNGEncoder renders with go-qrcode at the given recovery level.
type PNGEncoder struct {
	Level qrcode.RecoveryLevel
}

func (e PNGEncoder) Encode(content string, size int) ([]byte, error) {
	return qrcode.Encode(content, e.Level, size)
}

type Config struct {
	BaseURL string
	Size    int
	MaxTags int
}

type Exporter struct {
	tags    TagLister
	enc     Encoder
	baseURL string
	size    int
	maxTags int
	logger  *slog.Logger
}

func NewExporter(tags TagLister, enc Encoder, cfg Config, logger *slog.Logger) *Exporter {
	if cfg.Size <= 0 {
		cfg.Size = DefaultSize
	}
	if cfg.MaxTags <= 0 {
		cfg.MaxTags = DefaultMaxTags
	}
	return &Exporter{
		tags:    tags,
		enc:     enc,
		baseURL: cfg.BaseURL,
		size:    cfg.Size,
		maxTags: cfg.MaxTags,
		logger:  logger.With("component", "qrbatch"),
	}
}

// FileName is the archive name offered for download on day t.
func FileName(t time.Time) string {
	return fmt.Sprintf("foresafe_qrs_%s.zip", t.Format("2006-01-02"))
}

// EntryName is the archive entry holding one tag's code. Anything outside
// the tag id alphabet becomes '_', so an entry never leaves the archive root.
func EntryName(tagID string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, tagID)
	if safe == "" {
		safe = "_"
	}
	return safe + ".png"
}

// IDs reads every tag id in ascending order, refusing inventories larger
// than the configured cap before anything is rendered.
func (e *Exporter) IDs(ctx context.Context) ([]string, error) {
	var ids []string
	after := ""
	for {
		page, err := e.tags.ListIDsAfter(ctx, after, pageSize)
		if err != nil {
			return nil, apperr.Store("Failed to load tags", err)
		}
		ids = append(ids, page...)
		if len(ids) > e.maxTags {
			return nil, apperr.InvalidFormat(fmt.Sprintf("Too many tags to export at once (limit %d)", e.maxTags))
		}
		if len(page) < pageSize {
			return ids, nil
		}
		after = page[len(page)-1]
	}
}

// Export writes the archive to w and returns the number of entries.
func (e *Exporter) Export(ctx context.Context, w io.Writer) (int, error) {
	ids, err := e.IDs(ctx)
	if err != nil {
		return 0, err
	}
	return e.WriteArchive(ctx, w, ids)
}

// WriteArchive renders ids into a zip on w.
func (e *Exporter) WriteArchive(ctx context.Context, w io.Writer, ids []string) (int, error) {
	zw := zip.NewWriter(w)
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return i, err
		}

		img, err := e.enc.Encode(tag.ScanURL(e.baseURL, id), e.size)
		if err != nil {
			return i, fmt.Errorf("render qr for %s: %w", id, err)
		}

		// PNG data is already deflated.
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: EntryName(id), Method: zip.Store})
		if err != nil {
			return i, fmt.Errorf("create zip entry %s: %w", id, err)
		}
		if _, err := fw.Write(img); err != nil {
			return i, fmt.Errorf("write zip entry %s: %w", id, err)
		}
	}
	if err := zw.Close(); err != nil {
		return len(ids), fmt.Errorf("close zip: %w", err)
	}

	e.logger.Info("qr batch exported", "count", len(ids))
	return len(ids), nil
}
