package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"stat-watcher/internal/model"
)

// Client pushes collected stats to the server's ingestion endpoint.
type Client struct {
	URL        string
	Token      string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

func NewClient(url, token string, logger zerolog.Logger) *Client {
	return &Client{
		URL:        url,
		Token:      token,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Logger:     logger,
	}
}

// Push sends one sample as {"data": ...} with the machine bearer token.
func (c *Client) Push(ctx context.Context, stats *model.Stats) error {
	body, err := json.Marshal(model.StatsPayload{Data: stats})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stats upload failed with status %d", resp.StatusCode)
	}
	return nil
}

// Run samples and pushes on the given interval until ctx is cancelled. Push
// failures are logged and the loop keeps going; the server treats repeated
// deliveries as plain overwrites, so retrying next tick is safe.
func (c *Client) Run(ctx context.Context, collector *Collector, interval time.Duration) error {
	push := func() {
		stats, err := collector.Collect(ctx)
		if err != nil {
			c.Logger.Warn().Err(err).Msg("stats collection failed")
			return
		}
		if err := c.Push(ctx, stats); err != nil {
			c.Logger.Warn().Err(err).Msg("stats upload failed")
		}
	}

	push()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			push()
		}
	}
}
