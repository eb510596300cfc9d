package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/huangsam/dashcache/internal/contract"
	"github.com/huangsam/dashcache/schema"
)

// RenderStoreStatus writes the store status to w in the configured output format.
func RenderStoreStatus(w io.Writer, status schema.StoreStatus, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeJSON(w, status)
	case schema.CSVOut:
		return writeCSVWithHeader(w, []string{"key"}, func(cw *csv.Writer) error {
			for _, k := range status.Keys {
				if err := cw.Write([]string{k}); err != nil {
					return err
				}
			}
			return nil
		})
	default:
		return writeStoreText(w, status, cfg)
	}
}

func writeStoreText(w io.Writer, status schema.StoreStatus, cfg *contract.Config) error {
	capacity := "unbounded"
	if status.Capacity > 0 {
		capacity = strconv.FormatUint(status.Capacity, 10)
	}
	if _, err := fmt.Fprintf(w, "Entries: %d (capacity: %s)\n", status.Entries, capacity); err != nil {
		return err
	}
	if status.Entries == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(w, "Oldest Entry: %s\nNewest Entry: %s\n",
		status.OldestEntry.Format(contract.DateTimeFormat),
		status.NewestEntry.Format(contract.DateTimeFormat)); err != nil {
		return err
	}
	keyWidth := getMaxTableKeyWidth(cfg, 0)
	for _, k := range status.Keys {
		if _, err := fmt.Fprintf(w, "  %s\n", contract.TruncateKey(k, keyWidth)); err != nil {
			return err
		}
	}
	return nil
}
