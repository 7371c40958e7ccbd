package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/trustscan/internal/model"
	"github.com/xuri/excelize/v2"
)

// FlaggedSheet is the worksheet name of the flagged-site export.
const FlaggedSheet = "Flagged Sites"

var flaggedColumns = []struct {
	title string
	width float64
}{
	{"Hostname", 32},
	{"URL", 40},
	{"Score", 8},
	{"Status", 28},
	{"AI verdict", 16},
	{"AI confidence", 14},
	{"Times observed", 14},
	{"First observed (UTC)", 20},
	{"Last observed (UTC)", 20},
	{"Domain age (days)", 16},
	{"Summary", 50},
	{"Issues", 60},
}

// WriteFlaggedXLSX writes records as a single-sheet workbook with a bold,
// filterable header row.
func WriteFlaggedXLSX(w io.Writer, records []model.FlaggedSiteRecord) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if err := f.SetSheetName("Sheet1", FlaggedSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(flaggedColumns))
	for i, col := range flaggedColumns {
		header[i] = col.title
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(FlaggedSheet, name, name, col.width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}
	if err := f.SetSheetRow(FlaggedSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	lastHeader, err := excelize.CoordinatesToCellName(len(flaggedColumns), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(FlaggedSheet, "A1", lastHeader, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, rec := range records {
		row := flaggedRow(rec)
		cellName, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(FlaggedSheet, cellName, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	lastCell, err := excelize.CoordinatesToCellName(len(flaggedColumns), len(records)+1)
	if err != nil {
		return err
	}
	if err := f.AutoFilter(FlaggedSheet, "A1:"+lastCell, nil); err != nil {
		return fmt.Errorf("add filter: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func flaggedRow(rec model.FlaggedSiteRecord) []any {
	age := ""
	if rec.Evidence.DomainAgeDays != nil {
		age = fmt.Sprint(*rec.Evidence.DomainAgeDays)
	}
	return []any{
		rec.Hostname,
		rec.NormalizedURL,
		rec.Score,
		string(rec.Status),
		string(rec.AIVerdict),
		string(rec.AIConfidence),
		rec.TimesObserved,
		time.UnixMilli(rec.FirstObservedAtMs).UTC().Format(time.DateTime),
		time.UnixMilli(rec.LastObservedAtMs).UTC().Format(time.DateTime),
		age,
		rec.Summary,
		strings.Join(rec.Issues, "\n"),
	}
}
