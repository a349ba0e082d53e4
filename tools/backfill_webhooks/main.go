// Command backfill_webhooks replays an exported archive of notification
// texts against the ingest endpoint. The archive is a JSON array of
// {"webhook": ..., "text": ...} entries; a checkpoint file makes the replay
// resumable after interruption.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"geofleet-cloud/internal/retry"
)

type archiveEntry struct {
	Webhook string `json:"webhook"`
	Text    string `json:"text"`
}

type checkpoint struct {
	NextIndex  int       `json:"nextIndex"`
	Errors     int       `json:"errors"`
	StartedAt  time.Time `json:"startedAt"`
	LastUpdate time.Time `json:"lastUpdate"`
}

func main() {
	baseURL := flag.String("base-url", "http://localhost:8080", "ingest service base URL")
	archivePath := flag.String("archive", "webhook-archive.json", "path to the JSON archive")
	checkpointPath := flag.String("checkpoint", "webhook-checkpoint.json", "path to the checkpoint file")
	attempts := flag.Int("attempts", 3, "delivery attempts per event")
	backoff := flag.Duration("backoff", time.Second, "base backoff between attempts")
	flag.Parse()

	logger := log.New(os.Stderr, "backfill: ", log.LstdFlags)

	entries, err := loadArchive(*archivePath)
	if err != nil {
		logger.Fatalf("load archive: %v", err)
	}
	cp := loadCheckpoint(*checkpointPath)
	if cp.StartedAt.IsZero() {
		cp.StartedAt = time.Now().UTC()
	}
	logger.Printf("replaying %d events from index %d", len(entries), cp.NextIndex)

	client := &http.Client{Timeout: 30 * time.Second}
	ctx := context.Background()

	for i := cp.NextIndex; i < len(entries); i++ {
		entry := entries[i]
		if entry.Webhook == "" || entry.Text == "" {
			logger.Printf("skipping entry %d: missing webhook or text", i)
			cp.NextIndex = i + 1
			continue
		}
		err := retry.Do(ctx, *attempts, *backoff, func(ctx context.Context) error {
			return send(ctx, client, *baseURL, entry)
		})
		if err != nil {
			logger.Printf("entry %d failed: %v", i, err)
			cp.Errors++
		}
		cp.NextIndex = i + 1
		if (i+1)%50 == 0 {
			saveCheckpoint(logger, *checkpointPath, cp)
		}
	}
	saveCheckpoint(logger, *checkpointPath, cp)
	logger.Printf("done: %d events, %d errors", len(entries), cp.Errors)
}

func send(ctx context.Context, client *http.Client, baseURL string, entry archiveEntry) error {
	// The ingest payload is an object keyed by the notification text.
	body, err := json.Marshal(map[string]bool{entry.Text: true})
	if err != nil {
		return err
	}
	target := baseURL + "/webhooks/on-track/" + url.PathEscape(entry.Webhook)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("http %d", resp.StatusCode)
	}
	return nil
}

func loadArchive(path string) ([]archiveEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []archiveEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode archive: %w", err)
	}
	return entries, nil
}

func loadCheckpoint(path string) checkpoint {
	raw, err := os.ReadFile(path)
	if err != nil {
		return checkpoint{}
	}
	var cp checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		return checkpoint{}
	}
	return cp
}

func saveCheckpoint(logger *log.Logger, path string, cp checkpoint) {
	cp.LastUpdate = time.Now().UTC()
	raw, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		logger.Printf("save checkpoint: %v", err)
	}
}
