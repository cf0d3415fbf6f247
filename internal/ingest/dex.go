// Package ingest watches DEX liquidity pools and turns them into market
// updates on the bus: an HTTP pool source, an LRU pool cache, an OHLCV bar
// aggregator fed by the tick loop and an optional live trade feed, and the
// tick service that ties them together.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/soulscout/soulscout/internal/backoff"
	"github.com/soulscout/soulscout/internal/model"
)

// PoolSource fetches the current set of liquidity pools.
type PoolSource interface {
	FetchPools(ctx context.Context) ([]model.PoolInfo, error)
}

// HTTPDex aggregates pools from one or more DEX HTTP endpoints. Each
// endpoint gets its own circuit breaker so one flaky DEX does not blind the
// others.
type HTTPDex struct {
	endpoints []dexEndpoint
	http      *http.Client
	retry     backoff.Policy
}

type dexEndpoint struct {
	url     string
	breaker *gobreaker.CircuitBreaker
}

// NewHTTPDex builds a source over the configured endpoint URLs.
func NewHTTPDex(urls []string) *HTTPDex {
	d := &HTTPDex{
		http:  &http.Client{Timeout: 30 * time.Second},
		retry: backoff.DefaultPolicy(),
	}
	for _, u := range urls {
		d.endpoints = append(d.endpoints, dexEndpoint{
			url: u,
			breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
				Name:    "dex " + u,
				Timeout: 30 * time.Second,
				ReadyToTrip: func(c gobreaker.Counts) bool {
					return c.ConsecutiveFailures >= 5
				},
			}),
		})
	}
	return d
}

type dexResponse struct {
	Success bool             `json:"success"`
	Data    []model.PoolInfo `json:"data"`
}

// FetchPools implements PoolSource. An endpoint that fails after retries is
// skipped; the fetch only errors when every endpoint failed.
func (d *HTTPDex) FetchPools(ctx context.Context) ([]model.PoolInfo, error) {
	var all []model.PoolInfo
	failures := 0
	for _, ep := range d.endpoints {
		pools, err := d.fetchOne(ctx, ep)
		if err != nil {
			failures++
			log.Warn().Err(err).Str("endpoint", ep.url).Msg("dex fetch failed")
			continue
		}
		all = append(all, pools...)
	}
	if len(d.endpoints) > 0 && failures == len(d.endpoints) {
		return nil, fmt.Errorf("all %d dex endpoints failed", failures)
	}
	return all, nil
}

func (d *HTTPDex) fetchOne(ctx context.Context, ep dexEndpoint) ([]model.PoolInfo, error) {
	var pools []model.PoolInfo
	err := d.retry.Retry(ctx, func() error {
		res, err := ep.breaker.Execute(func() (any, error) {
			return d.get(ctx, ep.url+"/pools")
		})
		if err != nil {
			return err
		}
		pools = res.([]model.PoolInfo)
		return nil
	})
	return pools, err
}

func (d *HTTPDex) get(ctx context.Context, url string) ([]model.PoolInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "soulscout/1.1")
	resp, err := d.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dex status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, err
	}
	var body dexResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode dex response: %w", err)
	}
	if !body.Success {
		return nil, fmt.Errorf("dex reported failure")
	}
	return body.Data, nil
}
