// Benchmark tool for load-testing Kestrel with synthetic banking batches.
//
// Usage:
//   go run cmd/benchmark/main.go -url http://localhost:8080 -files 10 -rows 1000
//
// This tool:
//   1. Generates synthetic ATM transaction CSVs with a known share of
//      high-value (alert-worthy) and malformed (quarantine-worthy) rows
//   2. Uploads each file via PUT /files/{name}
//   3. Polls GET /files/{name}/summary until the batch completes
//   4. Compares reported counts with what was seeded and reports throughput
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// FileSummary mirrors the summary endpoint response.
type FileSummary struct {
	FileName    string `json:"file_name"`
	Status      string `json:"status"`
	RowsParsed  int    `json:"rows_parsed"`
	Valid       int    `json:"valid"`
	Invalid     int    `json:"invalid"`
	Quarantined int    `json:"quarantined"`
	Alerts      int    `json:"alerts_generated"`
}

// batchSpec describes one generated file and what it seeded.
type batchSpec struct {
	name          string
	body          []byte
	rows          int
	seededAlerts  int
	seededBadRows int
}

// Metrics tracks benchmark results.
type Metrics struct {
	FilesCompleted int64
	FilesFailed    int64

	RowsSent        int64
	RowsValid       int64
	RowsQuarantined int64

	AlertsSeeded   int64
	AlertsReported int64
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Kestrel base URL")
	files := flag.Int("files", 10, "Number of CSV files to upload")
	rows := flag.Int("rows", 1000, "Rows per file")
	alertRate := flag.Float64("alert-rate", 0.05, "Share of rows above the high-value threshold (0.0-1.0)")
	badRate := flag.Float64("bad-rate", 0.02, "Share of malformed rows (0.0-1.0)")
	workers := flag.Int("workers", 4, "Concurrent uploads")
	pollTimeout := flag.Duration("poll-timeout", 60*time.Second, "Max wait for a batch to complete")
	seed := flag.Int64("seed", 42, "RNG seed")
	flag.Parse()

	fmt.Println("KESTREL BENCHMARK - synthetic batch ingestion")
	fmt.Printf("\nKestrel URL: %s\n", *baseURL)
	fmt.Printf("Files:       %d\n", *files)
	fmt.Printf("Rows/file:   %d\n", *rows)
	fmt.Printf("Alert rate:  %.2f\n", *alertRate)
	fmt.Printf("Bad rate:    %.2f\n", *badRate)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Kestrel not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Kestrel is running:")
		fmt.Println("  go run cmd/kestrel/main.go")
		os.Exit(1)
	}
	fmt.Println("Kestrel is healthy")

	rng := rand.New(rand.NewSource(*seed))
	batches := make([]batchSpec, 0, *files)
	for i := 0; i < *files; i++ {
		batches = append(batches, generateBatch(rng, i, *rows, *alertRate, *badRate))
	}

	fmt.Printf("\nUploading %d files with %d workers...\n", len(batches), *workers)
	startTime := time.Now()
	metrics := runBenchmark(batches, *baseURL, *workers, *pollTimeout)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// generateBatch builds one ATM CSV. High-value rows land above 50000 so the
// default high-value rule fires once per seeded row; malformed rows get a
// non-numeric amount so they are quarantined.
func generateBatch(rng *rand.Rand, fileIdx, rows int, alertRate, badRate float64) batchSpec {
	var sb strings.Builder
	sb.WriteString("TransactionID,TransactionType,Amount,Timestamp,AccountNumber,Location,Status\n")

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	seededAlerts := 0
	seededBad := 0

	for i := 0; i < rows; i++ {
		txID := fmt.Sprintf("BENCH%03d_TXN%06d", fileIdx, i)
		account := fmt.Sprintf("ACC%04d", rng.Intn(500))
		ts := base.Add(time.Duration(i) * 30 * time.Minute).Format("02-01-2006 15:04")

		amount := fmt.Sprintf("%.2f", 100+rng.Float64()*9900)
		switch {
		case rng.Float64() < badRate:
			amount = "not-a-number"
			seededBad++
		case rng.Float64() < alertRate:
			amount = fmt.Sprintf("%.2f", 60000+rng.Float64()*40000)
			seededAlerts++
		}

		sb.WriteString(fmt.Sprintf("%s,Withdrawal,%s,%s,%s,Mumbai,Completed\n",
			txID, amount, ts, account))
	}

	return batchSpec{
		name:          fmt.Sprintf("atm_bench_%03d.csv", fileIdx),
		body:          []byte(sb.String()),
		rows:          rows,
		seededAlerts:  seededAlerts,
		seededBadRows: seededBad,
	}
}

func runBenchmark(batches []batchSpec, baseURL string, workers int, pollTimeout time.Duration) *Metrics {
	metrics := &Metrics{}
	jobs := make(chan batchSpec)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range jobs {
				processBatch(batch, baseURL, pollTimeout, metrics)
			}
		}()
	}

	for _, b := range batches {
		jobs <- b
	}
	close(jobs)
	wg.Wait()

	return metrics
}

func processBatch(batch batchSpec, baseURL string, pollTimeout time.Duration, metrics *Metrics) {
	atomic.AddInt64(&metrics.RowsSent, int64(batch.rows))
	atomic.AddInt64(&metrics.AlertsSeeded, int64(batch.seededAlerts))

	if err := uploadFile(baseURL, batch.name, batch.body); err != nil {
		fmt.Printf("  upload failed for %s: %v\n", batch.name, err)
		atomic.AddInt64(&metrics.FilesFailed, 1)
		return
	}

	summary, err := waitForCompletion(baseURL, batch.name, pollTimeout)
	if err != nil {
		fmt.Printf("  %s did not complete: %v\n", batch.name, err)
		atomic.AddInt64(&metrics.FilesFailed, 1)
		return
	}

	atomic.AddInt64(&metrics.FilesCompleted, 1)
	atomic.AddInt64(&metrics.RowsValid, int64(summary.Valid))
	atomic.AddInt64(&metrics.RowsQuarantined, int64(summary.Quarantined))
	atomic.AddInt64(&metrics.AlertsReported, int64(summary.Alerts))
}

func uploadFile(baseURL, name string, body []byte) error {
	req, err := http.NewRequest(http.MethodPut, baseURL+"/files/"+name, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/csv")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, data)
	}
	return nil
}

func waitForCompletion(baseURL, name string, timeout time.Duration) (*FileSummary, error) {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		resp, err := http.Get(baseURL + "/files/" + name + "/summary")
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusOK {
			var summary FileSummary
			err := json.NewDecoder(resp.Body).Decode(&summary)
			resp.Body.Close()
			if err != nil {
				return nil, err
			}

			switch summary.Status {
			case "COMPLETED":
				return &summary, nil
			case "DOWNLOAD_FAILED", "PROCESSOR_FAILED", "UNKNOWN_SOURCE":
				return nil, fmt.Errorf("batch failed with status %s", summary.Status)
			}
		} else {
			resp.Body.Close()
		}

		time.Sleep(250 * time.Millisecond)
	}

	return nil, fmt.Errorf("timed out after %s", timeout)
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\nRESULTS")
	fmt.Printf("  Duration:          %s\n", duration.Round(time.Millisecond))
	fmt.Printf("  Files completed:   %d\n", m.FilesCompleted)
	fmt.Printf("  Files failed:      %d\n", m.FilesFailed)
	fmt.Printf("  Rows sent:         %d\n", m.RowsSent)
	fmt.Printf("  Rows valid:        %d\n", m.RowsValid)
	fmt.Printf("  Rows quarantined:  %d\n", m.RowsQuarantined)
	fmt.Printf("  Alerts seeded:     %d\n", m.AlertsSeeded)
	fmt.Printf("  Alerts reported:   %d\n", m.AlertsReported)

	if duration > 0 && m.RowsSent > 0 {
		rps := float64(m.RowsSent) / duration.Seconds()
		fmt.Printf("  Throughput:        %.0f rows/sec\n", rps)
	}

	if m.AlertsSeeded > 0 {
		recall := float64(m.AlertsReported) / float64(m.AlertsSeeded)
		fmt.Printf("  Alert recall:      %.2f%%\n", 100*recall)
	}
	fmt.Println()
}
