// Package main provides a load benchmarking tool for the dashcache CLI.
// It runs "dashcache load" across subscriber counts with request coalescing on
// and off, repeating each case and averaging wall time and backend calls,
// generating CSV output for performance analysis and documentation.
//
// Prerequisites:
// - dashcache binary installed and available in PATH
//
// Usage: go run benchmark/main.go [runs-per-case]
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"
)

// BenchmarkResult holds the averaged outcome of one benchmark case.
type BenchmarkResult struct {
	Subscribers  int
	Coalesce     string
	AvgTime      string
	BackendCalls string
	HitRatio     string
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	Timeout     time.Duration
	Runs        int
	Subscribers []int
	Scopes      int
	Rounds      int
	Latency     string
}

// loadReport is the subset of "dashcache load --output json" the benchmark reads.
type loadReport struct {
	Calls    int64   `json:"calls"`
	HitRatio float64 `json:"hit_ratio"`
}

func main() {
	runs := 3
	if len(os.Args) == 2 {
		n, err := strconv.Atoi(os.Args[1])
		if err != nil || n < 1 {
			fmt.Printf("Usage: %s [runs-per-case]\n", os.Args[0])
			os.Exit(1)
		}
		runs = n
	}

	config := BenchmarkConfig{
		Timeout:     2 * time.Minute,
		Runs:        runs,
		Subscribers: []int{10, 100, 1000},
		Scopes:      5,
		Rounds:      3,
		Latency:     "20ms",
	}

	if _, err := exec.LookPath("dashcache"); err != nil {
		fmt.Printf("Prerequisites check failed: dashcache binary not found in PATH\n")
		os.Exit(1)
	}

	results := runBenchmarks(config)

	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}

	printSummary(results)
}

// runBenchmarks executes every subscriber count with coalescing on and off.
func runBenchmarks(config BenchmarkConfig) []BenchmarkResult {
	var results []BenchmarkResult

	fmt.Printf("Starting benchmark: %d cases, %v timeout, %d runs each, latency %s\n",
		len(config.Subscribers)*2, config.Timeout, config.Runs, config.Latency)

	for _, subscribers := range config.Subscribers {
		for _, coalesce := range []string{"yes", "no"} {
			results = append(results, runBenchmarkCase(config, subscribers, coalesce))
		}
	}
	return results
}

// runBenchmarkCase repeats one load configuration and averages the outcome.
func runBenchmarkCase(config BenchmarkConfig, subscribers int, coalesce string) BenchmarkResult {
	fmt.Printf("Running load with %d subscribers (coalesce=%s)\n", subscribers, coalesce)

	args := []string{
		"load",
		"--subscribers", strconv.Itoa(subscribers),
		"--scopes", strconv.Itoa(config.Scopes),
		"--rounds", strconv.Itoa(config.Rounds),
		"--latency", config.Latency,
		"--coalesce", coalesce,
		"--output", "json",
		"--snapshot-backend", "none",
	}

	var times []float64
	var calls int64
	var ratio float64
	for run := 1; run <= config.Runs; run++ {
		report, elapsed, err := runLoad(config.Timeout, args)
		if err != nil {
			fmt.Printf("  run %d failed: %v\n", run, err)
			continue
		}
		times = append(times, elapsed.Seconds())
		calls += report.Calls
		ratio += report.HitRatio
	}

	result := BenchmarkResult{
		Subscribers:  subscribers,
		Coalesce:     coalesce,
		AvgTime:      "FAILED",
		BackendCalls: "FAILED",
		HitRatio:     "FAILED",
	}
	if n := len(times); n > 0 {
		var sum float64
		for _, t := range times {
			sum += t
		}
		result.AvgTime = fmt.Sprintf("%.3fs", sum/float64(n))
		result.BackendCalls = fmt.Sprintf("%.1f", float64(calls)/float64(n))
		result.HitRatio = fmt.Sprintf("%.3f", ratio/float64(n))
	}

	fmt.Printf("  Average: %s, backend calls: %s, hit ratio: %s\n", result.AvgTime, result.BackendCalls, result.HitRatio)
	return result
}

// runLoad executes dashcache once and decodes its JSON report.
func runLoad(timeout time.Duration, args []string) (loadReport, time.Duration, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	output, err := exec.CommandContext(ctx, "dashcache", args...).Output()
	elapsed := time.Since(start)
	if err != nil {
		return loadReport{}, elapsed, err
	}

	var report loadReport
	if err := json.Unmarshal(output, &report); err != nil {
		return loadReport{}, elapsed, fmt.Errorf("unexpected output: %w", err)
	}
	return report, elapsed, nil
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(results []BenchmarkResult) error {
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("/tmp/dashcache_benchmark_%s.csv", timestamp)

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filename, closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	if err := writer.Write([]string{"subscribers", "coalesce", "avg_time", "backend_calls", "hit_ratio"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	// Write results
	for _, result := range results {
		record := []string{strconv.Itoa(result.Subscribers), result.Coalesce, result.AvgTime, result.BackendCalls, result.HitRatio}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

// printSummary displays the final benchmark results summary
func printSummary(results []BenchmarkResult) {
	fmt.Printf("Benchmark complete\n")
	for _, result := range results {
		fmt.Printf("  %5d subscribers, coalesce=%-3s: %s, %s backend calls, hit ratio %s\n",
			result.Subscribers, result.Coalesce, result.AvgTime, result.BackendCalls, result.HitRatio)
	}
}
