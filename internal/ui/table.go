package ui

import (
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/mydehq/anitrack/internal/types"
)

type Align int

const (
	AlignLeft Align = iota
	AlignRight
)

// RenderTable draws rows under headers with rounded borders. Short rows are
// padded with empty cells.
func RenderTable(headers []string, rows [][]string, aligns []Align) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range headers {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == AlignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// EpisodeTable renders an anime's episodes with their watch state
func EpisodeTable(views []types.EpisodeView) string {
	rows := make([][]string, len(views))
	for i, v := range views {
		watched := ""
		if v.Watched {
			watched = StyleHeader.Render("✓")
		}
		rows[i] = []string{strconv.Itoa(v.Number), v.Title, RenderClass(v.Classification), watched}
	}
	return RenderTable(
		[]string{"#", "Title", "Type", "Watched"},
		rows,
		[]Align{AlignRight, AlignLeft, AlignLeft, AlignLeft},
	)
}

// AnimeTable renders catalog summaries
func AnimeTable(items []types.AnimeSummary) string {
	rows := make([][]string, len(items))
	for i, a := range items {
		rows[i] = []string{a.Title, StyleDim.Render(a.Slug), strconv.Itoa(a.EpisodeCount), FormatRefreshed(a.LastRefreshedAt)}
	}
	return RenderTable(
		[]string{"Title", "Slug", "Episodes", "Refreshed"},
		rows,
		[]Align{AlignLeft, AlignLeft, AlignRight, AlignLeft},
	)
}

// FormatRefreshed renders a refresh timestamp in local time, or "never"
func FormatRefreshed(t *time.Time) string {
	if t == nil {
		return StyleDim.Render("never")
	}
	return t.Local().Format("2006-01-02 15:04")
}
