// Package importer bulk-loads tag inventory from CSV.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/foresafe/foresafe/internal/apperr"
	"github.com/foresafe/foresafe/internal/tag"
)

// HeaderColumn is the required CSV column holding tag ids.
const HeaderColumn = "tag_id"

type TagInserter interface {
	InsertBatch(ctx context.Context, tagIDs []string) (int, error)
}

// Result counts one import run. Rows whose tag_id is blank count toward
// Processed only. Rows whose tag_id falls outside the printable alphabet
// count toward Invalid and are never inserted. Inserted+Skipped is the
// number of valid rows.
type Result struct {
	Processed int `json:"processed"`
	Inserted  int `json:"inserted"`
	Skipped   int `json:"skipped"`
	Invalid   int `json:"invalid"`
}

// Rows is a parsed CSV: the normalized valid ids in file order, the number
// of data rows read and the number of rows with a malformed tag_id.
type Rows struct {
	IDs       []string
	Processed int
	Invalid   int
}

// ParseCSV reads a CSV with a tag_id header column. Header matching ignores
// case, surrounding space and a UTF-8 BOM.
func ParseCSV(r io.Reader) (*Rows, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperr.InvalidFormat("CSV file is empty")
	}
	if err != nil {
		return nil, apperr.InvalidFormat(fmt.Sprintf("Could not read CSV header: %v", err))
	}

	col := -1
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")), HeaderColumn) {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, apperr.InvalidFormat("CSV must have a tag_id column")
	}

	rows := &Rows{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperr.InvalidFormat(fmt.Sprintf("Could not read CSV: %v", err))
		}
		rows.Processed++
		if col >= len(rec) {
			continue
		}
		id := tag.NormalizeID(rec[col])
		switch {
		case id == "":
			// blank rows count toward Processed only
		case !tag.ValidID(id):
			rows.Invalid++
		default:
			rows.IDs = append(rows.IDs, id)
		}
	}
	return rows, nil
}

type Importer struct {
	tags   TagInserter
	logger *slog.Logger
}

func New(tags TagInserter, logger *slog.Logger) *Importer {
	return &Importer{tags: tags, logger: logger.With("component", "importer")}
}

// Import parses r and inserts every new id. Existing rows are never
// modified, so re-running a file inserts nothing.
func (im *Importer) Import(ctx context.Context, r io.Reader) (*Result, error) {
	rows, err := ParseCSV(r)
	if err != nil {
		return nil, err
	}
	return im.ImportRows(ctx, rows)
}

// ImportRows inserts already-parsed rows.
func (im *Importer) ImportRows(ctx context.Context, rows *Rows) (*Result, error) {
	res := &Result{Processed: rows.Processed, Invalid: rows.Invalid}
	if rows.Invalid > 0 {
		im.logger.Warn("malformed tag ids ignored", "count", rows.Invalid)
	}
	if len(rows.IDs) == 0 {
		return res, nil
	}

	inserted, err := im.tags.InsertBatch(ctx, rows.IDs)
	if err != nil {
		return nil, apperr.Store("Failed to import tags", err)
	}
	res.Inserted = inserted
	res.Skipped = len(rows.IDs) - inserted

	im.logger.Info("tags imported", "processed", res.Processed, "inserted", res.Inserted, "skipped", res.Skipped, "invalid", res.Invalid)
	return res, nil
}
