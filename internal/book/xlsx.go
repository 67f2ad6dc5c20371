package book

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	entriesSheet  = "Entries"
	emotionsSheet = "Emotions"
)

var entryHeader = []interface{}{
	"ID", "Title", "Created", "Source", "Recipient", "Delivery", "State",
	"Dominant Emotion", "Valence", "Themes", "Summary",
}

// RenderXLSX writes b as a workbook with an Entries sheet and an Emotions
// sheet carrying the profile and a column chart.
func RenderXLSX(w io.Writer, b *Book) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", entriesSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if _, err := f.NewSheet(emotionsSheet); err != nil {
		return fmt.Errorf("failed to add sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	if err := writeEntries(f, b, bold); err != nil {
		return err
	}
	if err := writeEmotions(f, b, bold); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeEntries(f *excelize.File, b *Book, bold int) error {
	if err := f.SetSheetRow(entriesSheet, "A1", &entryHeader); err != nil {
		return err
	}
	if err := f.SetCellStyle(entriesSheet, "A1", "K1", bold); err != nil {
		return err
	}

	for i, e := range b.Entries {
		delivery := ""
		if e.DeliveryAt != nil {
			delivery = e.DeliveryAt.UTC().Format(time.RFC3339)
		}
		row := []interface{}{
			e.ID,
			e.Title,
			e.CreatedAt.UTC().Format(time.RFC3339),
			string(e.Source),
			e.Recipient,
			delivery,
			string(e.DeliveryState),
			e.DominantEmotion,
			e.Valence,
			strings.Join(e.Themes, ", "),
			strings.Join(e.Summary, " "),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(entriesSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write entry %s: %w", e.ID, err)
		}
	}

	if err := f.SetColWidth(entriesSheet, "A", "A", 38); err != nil {
		return err
	}
	if err := f.SetColWidth(entriesSheet, "B", "B", 30); err != nil {
		return err
	}
	return f.SetColWidth(entriesSheet, "K", "K", 80)
}

func writeEmotions(f *excelize.File, b *Book, bold int) error {
	if err := f.SetSheetRow(emotionsSheet, "A1", &[]interface{}{"Emotion", "Score"}); err != nil {
		return err
	}
	if err := f.SetCellStyle(emotionsSheet, "A1", "B1", bold); err != nil {
		return err
	}
	for i, s := range b.Emotions {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(emotionsSheet, cell, &[]interface{}{s.Emotion, s.Score}); err != nil {
			return err
		}
	}

	themeRow := len(b.Emotions) + 3
	cell, _ := excelize.CoordinatesToCellName(1, themeRow)
	if err := f.SetSheetRow(emotionsSheet, cell, &[]interface{}{"Theme", "Memories"}); err != nil {
		return err
	}
	for i, t := range b.Themes {
		cell, _ := excelize.CoordinatesToCellName(1, themeRow+1+i)
		if err := f.SetSheetRow(emotionsSheet, cell, &[]interface{}{t.Theme, t.Count}); err != nil {
			return err
		}
	}

	if len(b.Emotions) == 0 {
		return nil
	}
	last := len(b.Emotions) + 1
	return f.AddChart(emotionsSheet, "D2", &excelize.Chart{
		Type: excelize.Col,
		Series: []excelize.ChartSeries{{
			Name:       fmt.Sprintf("%s!$B$1", emotionsSheet),
			Categories: fmt.Sprintf("%s!$A$2:$A$%d", emotionsSheet, last),
			Values:     fmt.Sprintf("%s!$B$2:$B$%d", emotionsSheet, last),
		}},
		Title:  []excelize.RichTextRun{{Text: "Emotion Profile"}},
		Legend: excelize.ChartLegend{Position: "none"},
	})
}
