package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/huangsam/dashcache/internal/contract"
	"github.com/huangsam/dashcache/schema"
)

// RenderPerf writes an instrumentation snapshot to w in the configured output format.
func RenderPerf(w io.Writer, snap schema.PerfSnapshot, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		type jsonPerf struct {
			schema.PerfSnapshot
			Label string `json:"label"`
		}
		return writeJSON(w, jsonPerf{PerfSnapshot: snap, Label: contract.GetPlainLabel(snap.HitRatio)})
	case schema.CSVOut:
		return writePerfCSV(w, snap, cfg)
	default:
		return writePerfTable(w, snap, cfg)
	}
}

func labelHitRatio(ls schema.LabelStats) float64 {
	total := ls.Hits + ls.Misses
	if total == 0 {
		return 0
	}
	return float64(ls.Hits) / float64(total)
}

func writePerfCSV(w io.Writer, snap schema.PerfSnapshot, cfg *contract.Config) error {
	header := []string{"label", "hits", "misses", "hit_ratio", "rating", "calls", "errors", "avg_ms", "max_ms"}
	fmtFloat, intFmt := createFormatters(cfg.Precision)
	ms := func(d time.Duration) string { return fmtFloat(float64(d) / float64(time.Millisecond)) }

	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, ls := range snap.Labels {
			ratio := labelHitRatio(ls)
			rec := []string{
				ls.Label,
				fmt.Sprintf(intFmt, ls.Hits),
				fmt.Sprintf(intFmt, ls.Misses),
				fmtFloat(ratio),
				contract.GetPlainLabel(ratio),
				fmt.Sprintf(intFmt, ls.Calls),
				fmt.Sprintf(intFmt, ls.Errors),
				ms(ls.AvgDuration),
				ms(ls.MaxDuration),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func writePerfTable(w io.Writer, snap schema.PerfSnapshot, cfg *contract.Config) error {
	fmtFloat, _ := createFormatters(cfg.Precision)
	labelWidth := getMaxTableKeyWidth(cfg, 75)

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Label", "Hits", "Misses", "Hit Ratio", "Rating", "Calls", "Errors", "Avg", "Max"})
	table.Configure(func(c *tablewriter.Config) {
		c.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, ls := range snap.Labels {
		ratio := labelHitRatio(ls)
		data = append(data, []string{
			contract.TruncateKey(ls.Label, labelWidth),
			fmt.Sprint(ls.Hits),
			fmt.Sprint(ls.Misses),
			fmtFloat(ratio),
			ratioLabel(ratio, cfg),
			fmt.Sprint(ls.Calls),
			fmt.Sprint(ls.Errors),
			contract.FormatDuration(ls.AvgDuration, cfg.Precision),
			contract.FormatDuration(ls.MaxDuration, cfg.Precision),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "Hit ratio %s (%s): %d hits, %d misses, %d backend calls, %d errors, avg fetch %s\n",
		fmtFloat(snap.HitRatio), ratioLabel(snap.HitRatio, cfg),
		snap.Hits, snap.Misses, snap.Calls, snap.Errors,
		contract.FormatDuration(snap.AvgDuration, cfg.Precision))
	return err
}
