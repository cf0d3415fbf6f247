package portfolio

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulscout/soulscout/internal/bus"
	"github.com/soulscout/soulscout/internal/config"
	"github.com/soulscout/soulscout/internal/model"
)

const validAddr = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"

type memWallets struct {
	wallets  map[int64][]string
	holdings map[string][]model.TokenHolding
}

func newMemWallets() *memWallets {
	return &memWallets{
		wallets:  make(map[int64][]string),
		holdings: make(map[string][]model.TokenHolding),
	}
}

func (m *memWallets) UserWallets(_ context.Context, userID int64) ([]string, error) {
	return m.wallets[userID], nil
}

func (m *memWallets) AddWallet(_ context.Context, userID int64, address string) error {
	m.wallets[userID] = append(m.wallets[userID], address)
	return nil
}

func (m *memWallets) RemoveWallet(_ context.Context, userID int64, address string) error {
	kept := m.wallets[userID][:0]
	for _, w := range m.wallets[userID] {
		if w != address {
			kept = append(kept, w)
		}
	}
	m.wallets[userID] = kept
	return nil
}

func (m *memWallets) SaveHoldings(_ context.Context, _ int64, wallet string, holdings []model.TokenHolding) error {
	m.holdings[wallet] = holdings
	return nil
}

type fakeChain struct {
	balances map[string]float64
	accounts map[string][]TokenAccount
	err      error
}

func (c *fakeChain) SOLBalance(_ context.Context, address string) (float64, error) {
	if c.err != nil {
		return 0, c.err
	}
	return c.balances[address], nil
}

func (c *fakeChain) TokenAccounts(_ context.Context, address string) ([]TokenAccount, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.accounts[address], nil
}

type fakePrices struct {
	sol    float64
	tokens map[string]float64
}

func (p *fakePrices) SOLPrice(context.Context) (float64, error) { return p.sol, nil }

func (p *fakePrices) TokenPrice(_ context.Context, mint string) (float64, error) {
	return p.tokens[mint], nil
}

func newTestPortfolio() (*Service, *memWallets, *fakeChain) {
	cfg := config.Default()
	b := bus.NewMemory()
	store := newMemWallets()
	chain := &fakeChain{
		balances: map[string]float64{validAddr: 12.5},
		accounts: map[string][]TokenAccount{
			validAddr: {{Mint: "mintA", Amount: 100}},
		},
	}
	prices := &fakePrices{sol: 150, tokens: map[string]float64{"mintA": 2}}
	return NewService(cfg, b, store, chain, prices), store, chain
}

func request(userID int64, cmd string, args map[string]string) *model.CommandRequest {
	return &model.CommandRequest{
		Cmd:    cmd,
		Args:   args,
		From:   model.CommandOrigin{TgUserID: userID, Role: "owner"},
		CorrID: "corr-1",
	}
}

func TestBalanceWithNoWalletsSuggestsAddWallet(t *testing.T) {
	s, _, _ := newTestPortfolio()

	reply, handled := s.Handle(context.Background(), request(1, "balance", nil))
	require.True(t, handled)
	assert.True(t, reply.OK)
	assert.Contains(t, reply.Message, "/add_wallet")
}

func TestBalanceSumsSolAndTokens(t *testing.T) {
	s, store, _ := newTestPortfolio()
	store.wallets[1] = []string{validAddr}

	reply, handled := s.Handle(context.Background(), request(1, "balance", nil))
	require.True(t, handled)
	assert.True(t, reply.OK)
	// 12.5 SOL * $150 + 100 tokens * $2 = $2075.
	assert.Contains(t, reply.Message, "Total Value: $2075.00")
	assert.Contains(t, reply.Message, "Total SOL: 12.5000")
	assert.Equal(t, "corr-1", reply.CorrID)
}

func TestHoldingsListsPositions(t *testing.T) {
	s, store, _ := newTestPortfolio()
	store.wallets[1] = []string{validAddr}

	reply, handled := s.Handle(context.Background(), request(1, "holdings", nil))
	require.True(t, handled)
	assert.True(t, reply.OK)
	assert.Contains(t, reply.Message, "mintA")
	assert.Contains(t, reply.Message, "$200.00")

	require.Len(t, store.holdings[validAddr], 1, "snapshot persisted per wallet")
	assert.Equal(t, "mintA", store.holdings[validAddr][0].Mint)
}

func TestAddWalletValidatesAndPersists(t *testing.T) {
	s, store, _ := newTestPortfolio()
	ctx := context.Background()

	reply, _ := s.Handle(ctx, request(1, "add_wallet", map[string]string{"address": "not-valid!"}))
	assert.False(t, reply.OK)
	assert.Contains(t, reply.Message, "Invalid wallet address")

	reply, _ = s.Handle(ctx, request(1, "add_wallet", map[string]string{"address": validAddr}))
	assert.True(t, reply.OK)
	assert.Contains(t, reply.Message, "Wallet added")
	assert.Equal(t, []string{validAddr}, store.wallets[1])

	reply, _ = s.Handle(ctx, request(1, "add_wallet", map[string]string{"address": validAddr}))
	assert.True(t, reply.OK)
	assert.Contains(t, reply.Message, "already being tracked")
	assert.Len(t, store.wallets[1], 1)
}

func TestAddWalletRejectsUnreachableChain(t *testing.T) {
	s, _, chain := newTestPortfolio()
	chain.err = errors.New("rpc down")

	reply, _ := s.Handle(context.Background(), request(1, "add_wallet", map[string]string{"address": validAddr}))
	assert.False(t, reply.OK)
	assert.Contains(t, reply.Message, "Unable to access wallet")
}

func TestRemoveWallet(t *testing.T) {
	s, store, _ := newTestPortfolio()
	ctx := context.Background()
	store.wallets[1] = []string{validAddr}

	reply, _ := s.Handle(ctx, request(1, "remove_wallet", map[string]string{"address": "unknownaddr11111111111111111111111111111"}))
	assert.Contains(t, reply.Message, "not found")

	reply, _ = s.Handle(ctx, request(1, "remove_wallet", map[string]string{"address": validAddr}))
	assert.True(t, reply.OK)
	assert.Contains(t, reply.Message, "Wallet removed")
	assert.Empty(t, store.wallets[1])
}

func TestForeignCommandsIgnored(t *testing.T) {
	s, _, _ := newTestPortfolio()
	_, handled := s.Handle(context.Background(), request(1, "signals", nil))
	assert.False(t, handled)
}

func TestValidAddress(t *testing.T) {
	assert.True(t, ValidAddress(validAddr))
	assert.False(t, ValidAddress("short"))
	assert.False(t, ValidAddress("0OIl"+validAddr[:30]), "base58 excludes 0OIl")
	assert.False(t, ValidAddress(""))
}
