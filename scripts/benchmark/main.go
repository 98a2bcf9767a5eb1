package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/use-agent/pricescout/models"
)

// CLI flags
var (
	apiURL   = flag.String("api-url", "http://localhost:8080", "pricescout API base URL")
	apiKey   = flag.String("api-key", "", "API key for authenticated requests")
	runs     = flag.Int("runs", 3, "Number of runs per URL for averaging")
	urlsFile = flag.String("urls", "", "File with one product URL per line (default: built-in list)")
	output   = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// Product pages covering the common price layouts.
var defaultURLs = []string{
	"https://www.paulsmith.com/uk/mens/jackets-and-coats",
	"https://www.paulsmith.com/uk/womens/dresses",
	"https://www.paulsmith.com/uk/sale/mens",
}

// --- Benchmark result types ---

type runResult struct {
	Run           int      `json:"run"`
	TotalMs       int64    `json:"total_ms"`
	ScrapeMs      int64    `json:"scrape_ms"`
	HTTPStatus    int      `json:"http_status"`
	Name          string   `json:"name,omitempty"`
	CurrentPrice  *float64 `json:"current_price,omitempty"`
	OriginalPrice *float64 `json:"original_price,omitempty"`
	Source        string   `json:"source,omitempty"`
	Success       bool     `json:"success"`
	Error         string   `json:"error,omitempty"`
}

type urlSummary struct {
	AvgTotalMs float64 `json:"avg_total_ms"`
	MinTotalMs int64   `json:"min_total_ms"`
	MaxTotalMs int64   `json:"max_total_ms"`

	// Stable is true when every successful run extracted the same prices.
	Stable bool `json:"stable"`
}

type urlResult struct {
	URL     string      `json:"url"`
	Runs    []runResult `json:"runs"`
	Summary *urlSummary `json:"summary,omitempty"`
}

type benchmarkReport struct {
	Timestamp  string      `json:"timestamp"`
	APIURL     string      `json:"api_url"`
	RunsPerURL int         `json:"runs_per_url"`
	Results    []urlResult `json:"results"`
}

func main() {
	flag.Parse()

	urls, err := loadURLs(*urlsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading URLs: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== pricescout benchmark ===")
	fmt.Printf("API URL:   %s\n", *apiURL)
	fmt.Printf("URLs:      %d\n", len(urls))
	fmt.Printf("Runs/URL:  %d\n", *runs)
	fmt.Printf("Output:    %s\n", *output)
	fmt.Println()

	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		APIURL:     *apiURL,
		RunsPerURL: *runs,
	}
	client := &http.Client{Timeout: 90 * time.Second}

	for _, u := range urls {
		fmt.Printf("Benchmarking %s ...\n", u)
		ur := urlResult{URL: u}

		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			rr := benchmarkURL(client, u, i)
			if rr.Success {
				fmt.Printf("OK  %dms  %s\n", rr.TotalMs, priceText(rr.CurrentPrice))
			} else {
				fmt.Printf("FAILED: %s\n", rr.Error)
			}
			ur.Runs = append(ur.Runs, rr)
		}

		ur.Summary = summarize(ur.Runs)
		report.Results = append(report.Results, ur)
		fmt.Println()
	}

	printTable(report.Results)

	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func loadURLs(path string) ([]string, error) {
	if path == "" {
		return defaultURLs, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var urls []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			urls = append(urls, line)
		}
	}
	return urls, sc.Err()
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/api/v1/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// benchmarkURL always bypasses the result cache.
func benchmarkURL(client *http.Client, url string, run int) runResult {
	rr := runResult{Run: run}

	bodyBytes, err := json.Marshal(models.ScrapeRequest{URL: url})
	if err != nil {
		rr.Error = fmt.Sprintf("marshal error: %v", err)
		return rr
	}

	req, err := http.NewRequest(http.MethodPost, *apiURL+"/api/v1/scrape", bytes.NewReader(bodyBytes))
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr
	}
	req.Header.Set("Content-Type", "application/json")
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()
	rr.HTTPStatus = resp.StatusCode

	var sr models.ScrapeResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}

	rr.Success = sr.Success
	rr.TotalMs = sr.Timing.TotalMs
	rr.ScrapeMs = sr.Timing.ScrapeMs
	if sr.Result != nil {
		rr.Name = sr.Result.Name
		rr.CurrentPrice = sr.Result.CurrentPrice
		rr.OriginalPrice = sr.Result.OriginalPrice
		rr.Source = sr.Result.CurrentSource
	}
	if sr.Error != nil {
		rr.Error = fmt.Sprintf("[%s] %s", sr.Error.Code, sr.Error.Message)
	}
	return rr
}

func summarize(runs []runResult) *urlSummary {
	var (
		sum   urlSummary
		total int64
		n     int
		first *runResult
	)
	sum.Stable = true

	for i := range runs {
		r := &runs[i]
		if !r.Success {
			continue
		}
		if first == nil {
			first = r
			sum.MinTotalMs = r.TotalMs
		} else if !samePrice(first.CurrentPrice, r.CurrentPrice) || !samePrice(first.OriginalPrice, r.OriginalPrice) {
			sum.Stable = false
		}
		n++
		total += r.TotalMs
		sum.MinTotalMs = min(sum.MinTotalMs, r.TotalMs)
		sum.MaxTotalMs = max(sum.MaxTotalMs, r.TotalMs)
	}

	if n == 0 {
		return nil
	}
	sum.AvgTotalMs = float64(total) / float64(n)
	return &sum
}

func samePrice(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func priceText(v *float64) string {
	if v == nil {
		return "no price"
	}
	return fmt.Sprintf("%.2f", *v)
}

func printTable(results []urlResult) {
	fmt.Println(strings.Repeat("─", 95))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "URL\tAvg\tMin\tMax\tPrice\tSource\tStable\n")
	fmt.Fprintf(w, "───\t───\t───\t───\t─────\t──────\t──────\n")

	for _, r := range results {
		if r.Summary == nil {
			fmt.Fprintf(w, "%s\tFAILED\t-\t-\t-\t-\t-\n", truncateURL(r.URL, 45))
			continue
		}
		last := lastSuccess(r.Runs)
		fmt.Fprintf(w, "%s\t%dms\t%dms\t%dms\t%s\t%s\t%t\n",
			truncateURL(r.URL, 45),
			int64(r.Summary.AvgTotalMs),
			r.Summary.MinTotalMs,
			r.Summary.MaxTotalMs,
			priceText(last.CurrentPrice),
			last.Source,
			r.Summary.Stable,
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 95))
}

func lastSuccess(runs []runResult) runResult {
	for i := len(runs) - 1; i >= 0; i-- {
		if runs[i].Success {
			return runs[i]
		}
	}
	return runResult{}
}

func truncateURL(u string, max int) string {
	if len(u) <= max {
		return u
	}
	return u[:max-3] + "..."
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
