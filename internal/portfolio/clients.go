// Package portfolio answers wallet commands: balances and holdings from
// chain and price collaborators, plus wallet add/remove against the store.
package portfolio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// TokenAccount is one SPL token position in a wallet.
type TokenAccount struct {
	Mint   string
	Amount float64
}

// SolanaClient reads chain state for a wallet address.
type SolanaClient interface {
	SOLBalance(ctx context.Context, address string) (float64, error)
	TokenAccounts(ctx context.Context, address string) ([]TokenAccount, error)
}

// PriceClient resolves USD prices by mint.
type PriceClient interface {
	SOLPrice(ctx context.Context) (float64, error)
	TokenPrice(ctx context.Context, mint string) (float64, error)
}

const solMint = "So11111111111111111111111111111111111111112"

// RPCClient is a Solana JSON-RPC client for the two read calls the service
// needs.
type RPCClient struct {
	endpoint string
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker
}

// NewRPC builds a client for one RPC endpoint.
func NewRPC(endpoint string) *RPCClient {
	return &RPCClient{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 15 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "solana-rpc",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
		}),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// SOLBalance implements SolanaClient. Lamports scale to SOL.
func (c *RPCClient) SOLBalance(ctx context.Context, address string) (float64, error) {
	raw, err := c.call(ctx, "getBalance", []any{address})
	if err != nil {
		return 0, err
	}
	var result struct {
		Value uint64 `json:"value"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return 0, fmt.Errorf("decode balance: %w", err)
	}
	return float64(result.Value) / 1e9, nil
}

// TokenAccounts implements SolanaClient via getTokenAccountsByOwner.
func (c *RPCClient) TokenAccounts(ctx context.Context, address string) ([]TokenAccount, error) {
	params := []any{
		address,
		map[string]string{"programId": "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"},
		map[string]string{"encoding": "jsonParsed"},
	}
	raw, err := c.call(ctx, "getTokenAccountsByOwner", params)
	if err != nil {
		return nil, err
	}

	var result struct {
		Value []struct {
			Account struct {
				Data struct {
					Parsed struct {
						Info struct {
							Mint        string `json:"mint"`
							TokenAmount struct {
								UIAmount float64 `json:"uiAmount"`
							} `json:"tokenAmount"`
						} `json:"info"`
					} `json:"parsed"`
				} `json:"data"`
			} `json:"account"`
		} `json:"value"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode token accounts: %w", err)
	}

	accounts := make([]TokenAccount, 0, len(result.Value))
	for _, v := range result.Value {
		info := v.Account.Data.Parsed.Info
		accounts = append(accounts, TokenAccount{Mint: info.Mint, Amount: info.TokenAmount.UIAmount})
	}
	return accounts, nil
}

func (c *RPCClient) call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, err
	}
	res, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		if err != nil {
			return nil, err
		}
		var rpc rpcResponse
		if err := json.Unmarshal(raw, &rpc); err != nil {
			return nil, fmt.Errorf("decode rpc response: %w", err)
		}
		if rpc.Error != nil {
			return nil, fmt.Errorf("rpc %s: %s (%d)", method, rpc.Error.Message, rpc.Error.Code)
		}
		return rpc.Result, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(json.RawMessage), nil
}

// JupiterPrices resolves prices from the Jupiter price API with a short
// in-memory cache.
type JupiterPrices struct {
	baseURL string
	http    *http.Client
	ttl     time.Duration

	mu    sync.Mutex
	cache map[string]priceEntry
}

type priceEntry struct {
	price float64
	at    time.Time
}

// NewJupiterPrices builds a price client; baseURL defaults to the public
// API when empty.
func NewJupiterPrices(baseURL string) *JupiterPrices {
	if baseURL == "" {
		baseURL = "https://price.jup.ag/v4"
	}
	return &JupiterPrices{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		ttl:     30 * time.Second,
		cache:   make(map[string]priceEntry),
	}
}

// SOLPrice implements PriceClient.
func (p *JupiterPrices) SOLPrice(ctx context.Context) (float64, error) {
	return p.TokenPrice(ctx, solMint)
}

// TokenPrice implements PriceClient.
func (p *JupiterPrices) TokenPrice(ctx context.Context, mint string) (float64, error) {
	p.mu.Lock()
	if e, ok := p.cache[mint]; ok && time.Since(e.at) < p.ttl {
		p.mu.Unlock()
		return e.price, nil
	}
	p.mu.Unlock()

	u := fmt.Sprintf("%s/price?ids=%s", p.baseURL, url.QueryEscape(mint))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch price: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("price api status %d", resp.StatusCode)
	}

	var body struct {
		Data map[string]struct {
			Price float64 `json:"price"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode price: %w", err)
	}
	entry, ok := body.Data[mint]
	if !ok {
		return 0, fmt.Errorf("no price for mint %s", mint)
	}

	p.mu.Lock()
	p.cache[mint] = priceEntry{price: entry.Price, at: time.Now()}
	p.mu.Unlock()
	return entry.Price, nil
}
