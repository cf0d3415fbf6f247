package gateway

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/soulscout/soulscout/internal/bus"
)

const pinKeyPrefix = "guest_pin:"

// Pins issues and redeems one-shot 6-digit guest PINs stored in the bus
// KV. The value carries the issuing owner and the absolute expiry so a
// redeemed PIN grants only its residual TTL.
type Pins struct {
	kv  bus.KV
	now func() time.Time
}

// NewPins builds a PIN store over the bus KV.
func NewPins(kv bus.KV) *Pins {
	return &Pins{kv: kv, now: time.Now}
}

// Issue mints a fresh PIN valid for the given duration.
func (p *Pins) Issue(ctx context.Context, ownerID int64, d time.Duration) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900_000))
	if err != nil {
		return "", fmt.Errorf("generate pin: %w", err)
	}
	pin := strconv.FormatInt(n.Int64()+100_000, 10)

	expires := p.now().Add(d).Unix()
	value := fmt.Sprintf("%d:%d", ownerID, expires)
	if err := p.kv.SetTTL(ctx, pinKeyPrefix+pin, value, d); err != nil {
		return "", fmt.Errorf("store pin: %w", err)
	}
	return pin, nil
}

// Redeem consumes a PIN, returning the residual session duration. A
// missing, malformed or spent PIN returns ok=false.
func (p *Pins) Redeem(ctx context.Context, pin string) (residual time.Duration, ok bool, err error) {
	key := pinKeyPrefix + pin
	value, found, err := p.kv.Get(ctx, key)
	if err != nil || !found {
		return 0, false, err
	}

	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, false, nil
	}
	expires, perr := strconv.ParseInt(parts[1], 10, 64)
	if perr != nil {
		return 0, false, nil
	}
	residual = time.Unix(expires, 0).Sub(p.now())
	if residual <= 0 {
		return 0, false, nil
	}
	if derr := p.kv.Delete(ctx, key); derr != nil {
		return 0, false, derr
	}
	return residual, true, nil
}
