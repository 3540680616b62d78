package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urbantwin/hybridsim/internal/models"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/writer"
)

// ParquetExporter writes corrected link statistics as one parquet file per
// run, next to the JSON results.
type ParquetExporter struct {
	basePath string
}

func NewParquetExporter(basePath string) *ParquetExporter {
	return &ParquetExporter{basePath: basePath}
}

func (p *ParquetExporter) ExportLinkStats(runID string, stats []models.LinkStat) error {
	dir := filepath.Join(p.basePath, "link_stats")
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}

	fw, err := local.NewLocalFileWriter(filepath.Join(dir, fmt.Sprintf("%s.parquet", runID)))
	if err != nil {
		return fmt.Errorf("failed to create local file writer: %w", err)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, new(models.LinkStat), 4)
	if err != nil {
		return fmt.Errorf("failed to create ParquetWriter: %w", err)
	}
	for _, stat := range stats {
		if err := pw.Write(stat); err != nil {
			return fmt.Errorf("failed to write link stat: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}
