// Command loadgen submits randomized scores against a running server and
// verifies the resulting leaderboard ordering.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Default configuration constants.
const (
	defaultSubmissions = 10000
	defaultTopN        = 50
	defaultTimeout     = 30 * time.Second
	defaultRunTimeout  = 10 * time.Minute
)

type scorePayload struct {
	PlayerID    string `json:"player_id"`
	Leaderboard string `json:"leaderboard"`
	Score       int64  `json:"score"`
	Async       bool   `json:"async,omitempty"`
}

type entryView struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"player_id"`
	Score    int64  `json:"score"`
}

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		board       = flag.String("board", "arena", "Leaderboard base name to target")
		submissions = flag.Int("n", defaultSubmissions, "Number of scores to submit")
		players     = flag.Int("players", 1000, "Number of distinct players")
		maxScore    = flag.Int64("max-score", 1_000_000, "Upper bound for random scores")
		topN        = flag.Int("top", defaultTopN, "Top entries to fetch for verification")
		workers     = flag.Int("workers", runtime.NumCPU()*2, "Concurrent submitters")
		async       = flag.Bool("async", false, "Submit via the async ingest path")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	client := &http.Client{Timeout: *timeout}

	var sent, failed atomic.Int64
	jobs := make(chan scorePayload, *workers*2)

	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				if err := submit(ctx, client, *baseURL, p); err != nil {
					failed.Add(1)
					continue
				}
				sent.Add(1)
			}
		}()
	}

	start := time.Now()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := 0; i < *submissions; i++ {
		jobs <- scorePayload{
			PlayerID:    fmt.Sprintf("player-%04d", rng.Intn(*players)),
			Leaderboard: *board,
			Score:       rng.Int63n(*maxScore + 1),
			Async:       *async,
		}
	}
	close(jobs)
	wg.Wait()
	elapsed := time.Since(start)

	fmt.Printf("submitted %d scores (%d failed) in %s (%.0f/s)\n",
		sent.Load(), failed.Load(), elapsed.Round(time.Millisecond),
		float64(sent.Load())/elapsed.Seconds())

	if *async {
		// Give workers a moment to drain before verification.
		time.Sleep(2 * time.Second)
	}

	if err := verify(ctx, client, *baseURL, *board, *topN); err != nil {
		os.Stderr.WriteString("verification failed: " + err.Error() + "\n")
		os.Exit(1)
	}
	fmt.Printf("top %d ordering verified\n", *topN)
}

func submit(ctx context.Context, client *http.Client, baseURL string, p scorePayload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/scores", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func verify(ctx context.Context, client *http.Client, baseURL, board string, topN int) error {
	url := fmt.Sprintf("%s/v1/leaderboards/%s:global/top?n=%d", baseURL, board, topN)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var entries []entryView
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return err
	}

	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]
		if cur.Score > prev.Score {
			return fmt.Errorf("rank %d score %d exceeds rank %d score %d",
				cur.Rank, cur.Score, prev.Rank, prev.Score)
		}
		if cur.Score == prev.Score && cur.PlayerID < prev.PlayerID {
			return fmt.Errorf("tie at score %d not ordered by player id", cur.Score)
		}
		if cur.Rank != prev.Rank+1 {
			return fmt.Errorf("ranks not dense at position %d", i)
		}
	}
	return nil
}
