package outwriter

import (
	"os"

	"golang.org/x/term"

	"github.com/huangsam/dashcache/internal/contract"
)

// Bounds for the key/data column.
const (
	minKeyWidth = 12
	maxKeyWidth = 60
)

// getMaxTableKeyWidth calculates how wide the key or data column may grow,
// given the terminal width and the room taken by the fixed columns.
func getMaxTableKeyWidth(cfg *contract.Config, fixedColumns int) int {
	termWidth := cfg.Width
	if termWidth <= 0 {
		detected, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detected <= 0 {
			termWidth = 80 // Conservative default for narrow terminals and CI
		} else {
			termWidth = detected
		}
	}

	// Borders, separators and padding
	available := termWidth - fixedColumns - 12
	switch {
	case available < minKeyWidth:
		return minKeyWidth
	case available > maxKeyWidth:
		return maxKeyWidth
	default:
		return available
	}
}
