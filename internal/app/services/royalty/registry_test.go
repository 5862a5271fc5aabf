package royalty

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/nft_exchange/internal/app/domain/chain"
	"github.com/R3E-Network/nft_exchange/internal/errors"
	"github.com/R3E-Network/nft_exchange/pkg/logger"
)

func newRegistry(t *testing.T, capBp uint32) *Registry {
	t.Helper()
	r := New(logger.NewDiscard())
	require.NoError(t, r.Initialize(context.Background(), "0xowner", "0xroyalty", capBp))
	return r
}

func TestInitializeValidatesCap(t *testing.T) {
	r := New(logger.NewDiscard())
	assert.ErrorIs(t, r.Initialize(context.Background(), "0xowner", "0xroyalty", 10001), ErrInvalidCap)
	require.NoError(t, r.Initialize(context.Background(), "0xowner", "0xroyalty", 50))
	assert.True(t, errors.IsStateConflict(r.Initialize(context.Background(), "0xowner", "0xroyalty", 50)))
}

func TestMaxRoyaltyRequiresAllowedCollection(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, 5000)

	_, err := r.MaxRoyaltyBp(ctx, "0xnft")
	assert.ErrorIs(t, err, ErrCollectionNotAllowed)

	assert.True(t, errors.IsPermission(r.SetAllowedCollection(ctx, "0xstranger", "0xnft", true)))
	require.NoError(t, r.SetAllowedCollection(ctx, "0xowner", "0xnft", true))

	bp, err := r.MaxRoyaltyBp(ctx, "0xnft")
	require.NoError(t, err)
	assert.EqualValues(t, 5000, bp)

	require.NoError(t, r.SetCollectionCap(ctx, "0xowner", "0xnft", 2500))
	bp, err = r.MaxRoyaltyBp(ctx, "0xnft")
	require.NoError(t, err)
	assert.EqualValues(t, 2500, bp)

	require.NoError(t, r.SetAllowedCollection(ctx, "0xowner", "0xnft", false))
	_, err = r.MaxRoyaltyBp(ctx, "0xnft")
	assert.ErrorIs(t, err, ErrCollectionNotAllowed)
}

type guardFunc func(registry chain.Address, capOf func(chain.Address) uint32, commit func()) error

func (g guardFunc) GuardRoyaltyCap(_ context.Context, registry chain.Address, capOf func(chain.Address) uint32, commit func()) error {
	return g(registry, capOf, commit)
}

func TestCapChangesPassThroughGuard(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, 1000)
	require.NoError(t, r.SetAllowedCollection(ctx, "0xowner", "0xnft", true))
	require.NoError(t, r.SetCollectionCap(ctx, "0xowner", "0xart", 300))

	tooHigh := errors.Validation("too_high", "cap too high")
	var seen []uint32
	r.SetGuard(guardFunc(func(registry chain.Address, capOf func(chain.Address) uint32, commit func()) error {
		assert.Equal(t, chain.Address("0xroyalty"), registry)
		seen = append(seen, capOf("0xnft"), capOf("0xart"))
		if capOf("0xnft") > 2000 {
			return tooHigh
		}
		commit()
		return nil
	}))

	assert.ErrorIs(t, r.SetTotalRoyalties(ctx, "0xowner", 2500), tooHigh)
	bp, err := r.MaxRoyaltyBp(ctx, "0xnft")
	require.NoError(t, err)
	assert.EqualValues(t, 1000, bp)

	require.NoError(t, r.SetTotalRoyalties(ctx, "0xowner", 1500))
	require.NoError(t, r.SetCollectionCap(ctx, "0xowner", "0xnft", 400))
	bp, err = r.MaxRoyaltyBp(ctx, "0xnft")
	require.NoError(t, err)
	assert.EqualValues(t, 400, bp)
	assert.Equal(t, []uint32{2500, 300, 1500, 300, 400, 300}, seen)

	r.SetGuard(nil)
	require.NoError(t, r.SetCollectionCap(ctx, "0xowner", "0xnft", 9000))
	bp, err = r.MaxRoyaltyBp(ctx, "0xnft")
	require.NoError(t, err)
	assert.EqualValues(t, 9000, bp)
}

func TestDirectoryLookup(t *testing.T) {
	d := NewDirectory()
	r := newRegistry(t, 100)
	d.Register(r.Address(), r)

	p, ok := d.Lookup("0xroyalty")
	require.True(t, ok)
	assert.Same(t, r, p)

	_, ok = d.Lookup("0xunknown")
	assert.False(t, ok)
}
