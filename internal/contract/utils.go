package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
)

// Hit ratio label constants.
const (
	ExcellentValue = "Excellent" // Excellent value
	GoodValue      = "Good"      // Good value
	FairValue      = "Fair"      // Fair value
	PoorValue      = "Poor"      // Poor value
)

// Color variables for console output.
var (
	ExcellentColor = color.New(color.FgGreen, color.Bold) // ExcellentColor marks a cache doing its job.
	GoodColor      = color.New(color.FgCyan)              // GoodColor is informational.
	FairColor      = color.New(color.FgYellow)            // FairColor is standard caution, not bold.
	PoorColor      = color.New(color.FgRed, color.Bold)   // PoorColor is standard danger.
)

// GetPlainLabel returns a plain text label for a hit ratio between 0 and 1.
// This is the core logic used for CSV, JSON, and table printing.
func GetPlainLabel(ratio float64) string {
	switch {
	case ratio >= 0.9:
		return ExcellentValue
	case ratio >= 0.7:
		return GoodValue
	case ratio >= 0.4:
		return FairValue
	default:
		return PoorValue
	}
}

// GetColorLabel returns a colored text label for console output (table).
func GetColorLabel(ratio float64) string {
	text := GetPlainLabel(ratio)

	switch text {
	case ExcellentValue:
		return ExcellentColor.Sprint(text)
	case GoodValue:
		return GoodColor.Sprint(text)
	case FairValue:
		return FairColor.Sprint(text)
	default: // "Poor"
		return PoorColor.Sprint(text)
	}
}

// SelectOutputFile returns the appropriate file handle for output, based on the provided
// file path. An empty path means stdout.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Fatal %s: %v\n", msg, err)
	os.Exit(1)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Warn %s: %v\n", msg, err)
}

// GetSnapshotDBFilePath returns the path to the SQLite DB file for snapshot storage.
func GetSnapshotDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".dashcache_snapshots.db"
	}
	return filepath.Join(homeDir, ".dashcache_snapshots.db")
}

// TruncateKey truncates a cache key to a maximum width with an ellipsis suffix.
// Requires maxWidth > 3 so there is room for "..." and at least one character.
func TruncateKey(key string, maxWidth int) string {
	runes := []rune(key)
	if len(runes) > maxWidth && maxWidth > 3 {
		return string(runes[:maxWidth-3]) + "..."
	}
	return key
}

// FormatDuration renders d with precision decimal places in the most readable unit.
func FormatDuration(d time.Duration, precision int) string {
	switch {
	case d == 0:
		return "0s"
	case d < time.Millisecond:
		return fmt.Sprintf("%.*fµs", precision, float64(d)/float64(time.Microsecond))
	case d < time.Second:
		return fmt.Sprintf("%.*fms", precision, float64(d)/float64(time.Millisecond))
	default:
		return fmt.Sprintf("%.*fs", precision, d.Seconds())
	}
}

// ParseBoolString parses a string value into a boolean.
// Accepts "yes", "no", "true", "false", "1", "0" (case-insensitive).
// Returns an error for invalid values.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}
