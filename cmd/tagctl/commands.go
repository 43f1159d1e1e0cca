package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/foresafe/foresafe/internal/config"
	"github.com/foresafe/foresafe/internal/database"
	"github.com/foresafe/foresafe/internal/importer"
	"github.com/foresafe/foresafe/internal/logging"
	"github.com/foresafe/foresafe/internal/qrbatch"
	"github.com/foresafe/foresafe/internal/store"
	"github.com/foresafe/foresafe/internal/tag"
)

func newGenerateCommand(cfg *config.Config) *cobra.Command {
	var (
		prefix string
		start  int
		count  int
		output string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a CSV of sequential tag ids",
		Long:  `Generate a tag_id CSV suitable for the admin import, e.g. FS-0001 through FS-1000.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count <= 0 {
				return fmt.Errorf("--count must be positive")
			}
			w, closeFn, err := openOutput(cmd, output)
			if err != nil {
				return err
			}
			defer closeFn()
			return writeInventoryCSV(w, tag.Sequence(prefix, start, count))
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", cfg.TagPrefix, "Tag id prefix")
	cmd.Flags().IntVar(&start, "start", 1, "First sequence number")
	cmd.Flags().IntVarP(&count, "count", "n", 100, "Number of ids to generate")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")

	return cmd
}

func newAddCommand(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "add <tag_id>...",
		Short: "Add individual tags to the inventory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]string, 0, len(args))
			for _, arg := range args {
				id := tag.NormalizeID(arg)
				if !tag.ValidID(id) {
					return fmt.Errorf("invalid tag id %q", arg)
				}
				ids = append(ids, id)
			}

			tags, closeDB, err := openTagStore(*dbPath)
			if err != nil {
				return err
			}
			defer closeDB()

			out := cmd.OutOrStdout()
			for _, id := range ids {
				inserted, err := tags.Insert(cmd.Context(), id)
				if err != nil {
					return err
				}
				if inserted {
					fmt.Fprintf(out, "added %s\n", id)
				} else {
					fmt.Fprintf(out, "exists %s\n", id)
				}
			}
			return nil
		},
	}
}

func newImportCommand(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import a tag_id CSV into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open csv: %w", err)
			}
			defer f.Close()

			tags, closeDB, err := openTagStore(*dbPath)
			if err != nil {
				return err
			}
			defer closeDB()

			res, err := importer.New(tags, quietLogger()).Import(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed %d, inserted %d, skipped %d, invalid %d\n", res.Processed, res.Inserted, res.Skipped, res.Invalid)
			return nil
		},
	}
}

func newExportCommand(cfg *config.Config, dbPath *string) *cobra.Command {
	var (
		output  string
		baseURL string
		size    int
		maxTags int
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a zip of QR codes for every tag",
		RunE: func(cmd *cobra.Command, args []string) error {
			tags, closeDB, err := openTagStore(*dbPath)
			if err != nil {
				return err
			}
			defer closeDB()

			if output == "" {
				output = qrbatch.FileName(time.Now())
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create %s: %w", output, err)
			}
			defer f.Close()

			exp := qrbatch.NewExporter(tags, qrbatch.PNGEncoder{Level: qrcode.Medium}, qrbatch.Config{
				BaseURL: baseURL,
				Size:    size,
				MaxTags: maxTags,
			}, quietLogger())
			n, err := exp.Export(cmd.Context(), f)
			if err != nil {
				os.Remove(output)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d QR codes to %s\n", n, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output zip (default foresafe_qrs_<date>.zip)")
	cmd.Flags().StringVar(&baseURL, "base-url", cfg.PublicURL, "Scan host encoded into each code")
	cmd.Flags().IntVar(&size, "size", cfg.QRSize, "Image size in pixels")
	cmd.Flags().IntVar(&maxTags, "max", cfg.QRMaxTags, "Refuse inventories larger than this")

	return cmd
}

func newStatsCommand(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print inventory and registration counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			tags, closeDB, err := openTagStore(*dbPath)
			if err != nil {
				return err
			}
			defer closeDB()

			s, err := tags.Stats(cmd.Context(), 5)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "total %d, registered %d\n", s.Total, s.Registered)
			for _, t := range s.Recent {
				fmt.Fprintf(out, "  %s  %s\n", t.TagID, t.CreatedAt.Format("2006-01-02"))
			}
			return nil
		},
	}
}

func openTagStore(path string) (*store.TagStore, func(), error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return store.NewTagStore(db), func() { db.Close() }, nil
}

func openOutput(cmd *cobra.Command, path string) (io.Writer, func(), error) {
	if path == "" {
		return cmd.OutOrStdout(), func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, func() { f.Close() }, nil
}

func writeInventoryCSV(w io.Writer, ids []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{importer.HeaderColumn}); err != nil {
		return err
	}
	for _, id := range ids {
		if err := cw.Write([]string{id}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func quietLogger() *slog.Logger {
	return slog.New(logging.NewHandler(os.Stderr, "warn", "text"))
}
