package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

type idleStatus struct {
	Idle     bool  `json:"idle"`
	InFlight int64 `json:"inFlight"`
}

func fetchStatus(ctx context.Context, client *http.Client, url string) (idleStatus, error) {
	var status idleStatus
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return status, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return status, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return status, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return status, err
	}
	return status, nil
}

func pollIdle(ctx context.Context, client *http.Client, url string, interval time.Duration, stableRequired int) error {
	if stableRequired < 1 {
		stableRequired = 1
	}
	stable := 0
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("waiting for %s to report idle", url)

	for {
		status, err := fetchStatus(ctx, client, url)
		switch {
		case err != nil:
			log.Printf("idle probe failed: %v", err)
			stable = 0
		case !status.Idle:
			log.Printf("busy: %d flow(s) in flight", status.InFlight)
			stable = 0
		default:
			stable++
			if stable >= stableRequired {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func main() {
	log.SetOutput(os.Stderr)
	var (
		url            string
		timeout        time.Duration
		interval       time.Duration
		stableRequired int
	)
	flag.StringVar(&url, "url", "http://localhost:8080/idlez", "idle probe endpoint")
	flag.DurationVar(&timeout, "timeout", 2*time.Minute, "maximum time to wait for the service to go idle")
	flag.DurationVar(&interval, "interval", time.Second, "polling interval")
	flag.IntVar(&stableRequired, "stable", 3, "number of consecutive idle polls required")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client := &http.Client{Timeout: 10 * time.Second}
	if err := pollIdle(ctx, client, url, interval, stableRequired); err != nil {
		log.Fatalf("idle wait failed: %v", err)
	}

	log.Printf("service is idle")
}
