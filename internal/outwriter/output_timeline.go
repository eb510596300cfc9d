package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/huangsam/dashcache/internal/contract"
	"github.com/huangsam/dashcache/schema"
)

// RenderTimeline writes timeline rows to w in the configured output format.
func RenderTimeline(w io.Writer, rows []schema.TimelineRow, cfg *contract.Config, duration time.Duration) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeJSON(w, rows)
	case schema.CSVOut:
		return writeTimelineCSV(w, rows, cfg)
	default:
		return writeTimelineTable(w, rows, cfg, duration)
	}
}

func writeTimelineCSV(w io.Writer, rows []schema.TimelineRow, cfg *contract.Config) error {
	header := []string{"scenario", "step", "elapsed_ms", "state", "data", "loading", "revalidating", "error", "backend_calls"}
	fmtFloat, intFmt := createFormatters(cfg.Precision)
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, r := range rows {
			rec := []string{
				r.Scenario,
				r.Step,
				fmtFloat(float64(r.Elapsed) / float64(time.Millisecond)),
				string(r.State),
				r.Data,
				strconv.FormatBool(r.Loading),
				strconv.FormatBool(r.Revalidating),
				r.Err,
				fmt.Sprintf(intFmt, r.BackendCalls),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeTimelineTable(w io.Writer, rows []schema.TimelineRow, cfg *contract.Config, duration time.Duration) error {
	dataWidth := getMaxTableKeyWidth(cfg, 70)

	// One table per scenario, in first-seen order.
	var order []string
	byScenario := make(map[string][]schema.TimelineRow)
	for _, r := range rows {
		if _, ok := byScenario[r.Scenario]; !ok {
			order = append(order, r.Scenario)
		}
		byScenario[r.Scenario] = append(byScenario[r.Scenario], r)
	}

	for _, scenario := range order {
		if _, err := fmt.Fprintf(w, "\n▶ %s\n", scenario); err != nil {
			return err
		}
		table := tablewriter.NewWriter(w)
		table.Header([]string{"Step", "Elapsed", "State", "Data", "Flags", "Error", "Calls"})
		table.Configure(func(c *tablewriter.Config) {
			c.Row.Alignment.Global = tw.AlignLeft
		})

		var data [][]string
		for _, r := range byScenario[scenario] {
			data = append(data, []string{
				r.Step,
				contract.FormatDuration(r.Elapsed, cfg.Precision),
				stateCell(r.State, cfg),
				contract.TruncateKey(r.Data, dataWidth),
				flagsCell(r),
				r.Err,
				strconv.FormatInt(r.BackendCalls, 10),
			})
		}
		if err := table.Bulk(data); err != nil {
			return err
		}
		if err := table.Render(); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "Simulated %d steps across %d scenarios in %v\n", len(rows), len(order), duration)
	return err
}

func flagsCell(r schema.TimelineRow) string {
	switch {
	case r.Loading && r.Revalidating:
		return "loading,revalidating"
	case r.Loading:
		return "loading"
	case r.Revalidating:
		return "revalidating"
	default:
		return ""
	}
}

func stateCell(s schema.SubscriptionState, cfg *contract.Config) string {
	if !cfg.UseColors {
		return string(s)
	}
	switch s {
	case schema.ReadyState:
		return contract.ExcellentColor.Sprint(s)
	case schema.LoadingState:
		return contract.FairColor.Sprint(s)
	case schema.ErrorState:
		return contract.PoorColor.Sprint(s)
	default:
		return string(s)
	}
}
