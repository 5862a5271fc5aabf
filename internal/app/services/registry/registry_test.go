package registry

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/nft_exchange/internal/app/domain/asset"
	"github.com/R3E-Network/nft_exchange/internal/app/domain/chain"
	"github.com/R3E-Network/nft_exchange/internal/app/events"
	"github.com/R3E-Network/nft_exchange/internal/app/services/ledger"
	"github.com/R3E-Network/nft_exchange/internal/app/services/royalty"
	"github.com/R3E-Network/nft_exchange/internal/app/txn"
	"github.com/R3E-Network/nft_exchange/internal/errors"
	"github.com/R3E-Network/nft_exchange/pkg/logger"
)

const (
	owner     chain.Address = "0xowner"
	operator  chain.Address = "0xoperator"
	alice     chain.Address = "0xalice"
	bob       chain.Address = "0xbob"
	collector chain.Address = "0xcollector"
	nft       chain.Address = "0xnft"
)

type fixture struct {
	reg     *Registry
	ledger  *ledger.Ledger
	royalty *royalty.Registry
	journal *events.Memory
}

func newFixture(t *testing.T, capBp uint32, fee *big.Int) *fixture {
	t.Helper()
	ctx := context.Background()
	log := logger.NewDiscard()

	roy := royalty.New(log)
	require.NoError(t, roy.Initialize(ctx, owner, "0xroyalty", capBp))
	require.NoError(t, roy.SetAllowedCollection(ctx, owner, nft, true))

	l := ledger.New(log)
	mem := events.NewMemory(0)
	reg := New(l, mem, log)
	require.NoError(t, reg.Initialize(ctx, owner, Settings{
		Address:      nft,
		Name:         "Laqira NFT",
		Symbol:       "LQRNFT",
		FeeCollector: collector,
		MintingFee:   fee,
		Royalties:    roy,
	}))
	require.NoError(t, reg.GrantOperator(ctx, owner, operator))
	return &fixture{reg: reg, ledger: l, royalty: roy, journal: mem}
}

func (f *fixture) mint(t *testing.T, requester chain.Address, ref string) uint64 {
	t.Helper()
	id, err := f.reg.Mint(context.Background(), requester, ref, []chain.Address{requester}, []uint32{0}, nil)
	require.NoError(t, err)
	return id
}

func (f *fixture) mintConfirmed(t *testing.T, requester chain.Address) uint64 {
	t.Helper()
	id := f.mint(t, requester, "ipfs://asset")
	require.NoError(t, f.reg.ConfirmNFT(context.Background(), operator, id))
	return id
}

// =============================================================================
// Mint validation
// =============================================================================

func TestMintValidatesRoyalties(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 50, nil)

	_, err := f.reg.Mint(ctx, alice, "ref", []chain.Address{alice, bob}, []uint32{20}, nil)
	assert.ErrorIs(t, err, ErrInvalidLength)

	_, err = f.reg.Mint(ctx, alice, "ref", []chain.Address{alice, chain.ZeroAddress}, []uint32{20, 10}, nil)
	assert.ErrorIs(t, err, ErrZeroBeneficiary)

	_, err = f.reg.Mint(ctx, alice, "ref", []chain.Address{alice, bob}, []uint32{31, 20}, nil)
	assert.ErrorIs(t, err, ErrRoyaltyOverCap)
	assert.True(t, errors.IsValidation(err))

	id, err := f.reg.Mint(ctx, alice, "ref", []chain.Address{alice, bob}, []uint32{30, 20}, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, id)
	assert.Empty(t, f.reg.RejectedIDs(ctx))
}

func TestMintRequiresAllowedCollection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 50, nil)
	require.NoError(t, f.royalty.SetAllowedCollection(ctx, owner, nft, false))

	_, err := f.reg.Mint(ctx, alice, "ref", nil, nil, nil)
	assert.ErrorIs(t, err, royalty.ErrCollectionNotAllowed)
	assert.Empty(t, f.reg.PendingIDs(ctx))
}

type fixedCap uint32

func (c fixedCap) MaxRoyaltyBp(context.Context, chain.Address) (uint32, error) { return uint32(c), nil }

func TestRoyaltyLimitBoundsEveryProvider(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 50, nil)
	reg := New(f.ledger, nil, logger.NewDiscard())
	require.NoError(t, reg.Initialize(ctx, owner, Settings{Address: nft, Royalties: f.royalty, RoyaltyLimit: fixedCap(20)}))

	_, err := reg.Mint(ctx, alice, "ref", []chain.Address{bob}, []uint32{21}, nil)
	assert.ErrorIs(t, err, ErrRoyaltyOverCap)

	require.NoError(t, reg.SetRoyaltyProvider(ctx, owner, fixedCap(9000)))
	_, err = reg.Mint(ctx, alice, "ref", []chain.Address{bob}, []uint32{21}, nil)
	assert.ErrorIs(t, err, ErrRoyaltyOverCap)
	assert.Empty(t, reg.PendingIDs(ctx))

	id, err := reg.Mint(ctx, alice, "ref", []chain.Address{bob}, []uint32{20}, nil)
	require.NoError(t, err)
	assert.Equal(t, []uint64{id}, reg.PendingIDs(ctx))
}

func TestMintFeeMustBeExactAndIsForwarded(t *testing.T) {
	ctx := context.Background()
	fee := big.NewInt(1_000)
	f := newFixture(t, 1000, fee)
	require.NoError(t, f.ledger.Credit(ctx, chain.NativeCurrency, alice, big.NewInt(1_500)))

	_, err := f.reg.Mint(ctx, alice, "ref", nil, nil, big.NewInt(999))
	assert.ErrorIs(t, err, ErrPaymentAmount)
	_, err = f.reg.Mint(ctx, alice, "ref", nil, nil, big.NewInt(1_001))
	assert.ErrorIs(t, err, ErrPaymentAmount)

	id, err := f.reg.Mint(ctx, alice, "ref", nil, nil, fee)
	require.NoError(t, err)
	assert.Equal(t, "1000", f.ledger.BalanceOf(ctx, chain.NativeCurrency, collector).String())

	// The second fee cannot be covered: no state change, id not consumed.
	_, err = f.reg.Mint(ctx, alice, "ref", nil, nil, fee)
	assert.True(t, errors.IsTransferFailure(err))
	assert.Equal(t, []uint64{id}, f.reg.PendingIDs(ctx))
	assert.Equal(t, []uint64{id}, f.reg.UserPendingIDs(ctx, alice))

	require.NoError(t, f.ledger.Credit(ctx, chain.NativeCurrency, alice, big.NewInt(500)))
	next, err := f.reg.Mint(ctx, alice, "ref", nil, nil, fee)
	require.NoError(t, err)
	assert.Equal(t, id+1, next)
}

// =============================================================================
// Moderation flow
// =============================================================================

func TestConfirmClearsPendingIndicesAndAssignsRequester(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000, nil)

	first := f.mint(t, alice, "ipfs://a")
	second := f.mint(t, bob, "ipfs://b")
	third := f.mint(t, alice, "ipfs://c")
	assert.True(t, first < second && second < third)
	assert.Equal(t, []uint64{first, third}, f.reg.UserPendingIDs(ctx, alice))

	require.NoError(t, f.reg.ConfirmNFT(ctx, operator, first))

	assert.Equal(t, []uint64{second, third}, f.reg.PendingIDs(ctx))
	assert.Equal(t, []uint64{third}, f.reg.UserPendingIDs(ctx, alice))
	got, err := f.reg.OwnerOf(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, alice, got)
	assert.EqualValues(t, 1, f.reg.TotalSupply(ctx))
	assert.EqualValues(t, 1, f.reg.BalanceOf(ctx, alice))

	ref, err := f.reg.ContentRef(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "ipfs://a", ref)
	assert.Len(t, f.journal.List(ctx, events.Filter{Type: events.AssetConfirmed}), 1)
}

func TestRejectAndMintToRestoreRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 5000, nil)

	id, err := f.reg.Mint(ctx, alice, "ipfs://art", []chain.Address{alice, bob}, []uint32{2000, 3000}, nil)
	require.NoError(t, err)
	original, err := f.reg.PendingRequest(ctx, id)
	require.NoError(t, err)

	require.NoError(t, f.reg.RejectNFT(ctx, owner, id))
	assert.Empty(t, f.reg.PendingIDs(ctx))
	assert.Empty(t, f.reg.UserPendingIDs(ctx, alice))
	assert.Equal(t, []uint64{id}, f.reg.RejectedIDs(ctx))
	assert.Equal(t, []uint64{id}, f.reg.UserRejectedIDs(ctx, alice))

	_, err = f.reg.PendingRequest(ctx, id)
	assert.ErrorIs(t, err, ErrNotPending)
	rejected, err := f.reg.RejectedRequest(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, asset.StatusRejected, rejected.Status)
	assert.Equal(t, original.ContentRef, rejected.ContentRef)

	require.NoError(t, f.reg.MintTo(ctx, operator, id))
	assert.Empty(t, f.reg.RejectedIDs(ctx))
	assert.Empty(t, f.reg.UserRejectedIDs(ctx, alice))
	restored, err := f.reg.PendingRequest(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, original, restored)
}

func TestInvalidTransitionsLeaveIndicesUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000, nil)
	pending := f.mint(t, alice, "p")
	rejected := f.mint(t, alice, "r")
	require.NoError(t, f.reg.RejectNFT(ctx, operator, rejected))
	confirmed := f.mintConfirmed(t, bob)

	cases := []struct {
		name string
		run  func() error
		want error
	}{
		{"confirm rejected", func() error { return f.reg.ConfirmNFT(ctx, operator, rejected) }, ErrNotPending},
		{"confirm confirmed", func() error { return f.reg.ConfirmNFT(ctx, operator, confirmed) }, ErrNotPending},
		{"confirm absent", func() error { return f.reg.ConfirmNFT(ctx, operator, 99) }, ErrNotPending},
		{"reject rejected", func() error { return f.reg.RejectNFT(ctx, operator, rejected) }, ErrNotPending},
		{"mintTo pending", func() error { return f.reg.MintTo(ctx, operator, pending) }, ErrNotRejected},
		{"mintTo confirmed", func() error { return f.reg.MintTo(ctx, operator, confirmed) }, ErrNotRejected},
		{"burn pending", func() error { return f.reg.Burn(ctx, alice, pending) }, ErrAssetNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.run()
			assert.ErrorIs(t, err, tc.want)
			assert.True(t, errors.IsStateConflict(err))
			assert.Equal(t, []uint64{pending}, f.reg.PendingIDs(ctx))
			assert.Equal(t, []uint64{rejected}, f.reg.RejectedIDs(ctx))
			assert.EqualValues(t, 1, f.reg.TotalSupply(ctx))
		})
	}
}

func TestModerationRequiresCapability(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000, nil)
	id := f.mint(t, alice, "ref")

	err := f.reg.ConfirmNFT(ctx, alice, id)
	assert.True(t, errors.IsPermission(err))
	assert.True(t, errors.IsPermission(f.reg.RejectNFT(ctx, bob, id)))

	require.NoError(t, f.reg.RevokeOperator(ctx, owner, operator))
	assert.True(t, errors.IsPermission(f.reg.ConfirmNFT(ctx, operator, id)))
	assert.True(t, errors.IsPermission(f.reg.GrantOperator(ctx, operator, operator)))
	require.NoError(t, f.reg.ConfirmNFT(ctx, owner, id))
}

func TestBurnFilesRejectedRecordUnderCurrentOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 5000, nil)
	id, err := f.reg.Mint(ctx, alice, "ipfs://x", []chain.Address{alice}, []uint32{500}, nil)
	require.NoError(t, err)
	require.NoError(t, f.reg.ConfirmNFT(ctx, operator, id))
	require.NoError(t, f.reg.Transfer(ctx, alice, bob, id))

	assert.ErrorIs(t, f.reg.Burn(ctx, alice, id), ErrNotAssetOwner)
	require.NoError(t, f.reg.Burn(ctx, bob, id))

	_, err = f.reg.OwnerOf(ctx, id)
	assert.ErrorIs(t, err, ErrAssetNotFound)
	assert.EqualValues(t, 0, f.reg.TotalSupply(ctx))
	assert.Equal(t, []uint64{id}, f.reg.UserRejectedIDs(ctx, bob))
	assert.Empty(t, f.reg.UserRejectedIDs(ctx, alice))

	req, err := f.reg.RejectedRequest(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ipfs://x", req.ContentRef)
	assert.Equal(t, asset.RoyaltySpec{{Beneficiary: alice, ShareBp: 500}}, req.Royalties)

	require.NoError(t, f.reg.MintTo(ctx, operator, id))
	require.NoError(t, f.reg.ConfirmNFT(ctx, operator, id))
	got, err := f.reg.OwnerOf(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, bob, got)
}

// =============================================================================
// Custody
// =============================================================================

func TestTransferChecksOwnerAndTarget(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000, nil)
	id := f.mintConfirmed(t, alice)

	assert.ErrorIs(t, f.reg.Transfer(ctx, bob, bob, id), ErrIncorrectOwner)
	assert.ErrorIs(t, f.reg.Transfer(ctx, alice, chain.ZeroAddress, id), ErrTransferToZero)
	assert.ErrorIs(t, f.reg.Transfer(ctx, alice, bob, 404), ErrAssetNotFound)

	require.NoError(t, f.reg.Transfer(ctx, alice, bob, id))
	assert.EqualValues(t, 0, f.reg.BalanceOf(ctx, alice))
	assert.Equal(t, []uint64{id}, f.reg.TokensOf(ctx, bob))
}

func TestApprovalsAuthoriseMoves(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000, nil)
	id := f.mintConfirmed(t, alice)
	const market chain.Address = "0xmarket"

	err := f.reg.MoveCustody(ctx, market, alice, market, id)
	assert.ErrorIs(t, err, ErrNotApprovedOrOwner)

	assert.ErrorIs(t, f.reg.Approve(ctx, bob, market, id), ErrNotApprovedOrOwner)
	assert.ErrorIs(t, f.reg.Approve(ctx, alice, alice, id), ErrApproveToOwner)
	require.NoError(t, f.reg.Approve(ctx, alice, market, id))
	approved, err := f.reg.GetApproved(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, market, approved)

	require.NoError(t, f.reg.MoveCustody(ctx, market, alice, market, id))
	approved, _ = f.reg.GetApproved(ctx, id)
	assert.Empty(t, approved)

	require.NoError(t, f.reg.MoveCustody(ctx, market, market, alice, id))
	require.NoError(t, f.reg.SetApprovalForAll(ctx, alice, market, true))
	assert.True(t, f.reg.IsApprovedForAll(ctx, alice, market))
	require.NoError(t, f.reg.TransferFrom(ctx, market, alice, bob, id))
	assert.ErrorIs(t, f.reg.SetApprovalForAll(ctx, bob, bob, true), ErrApproveToCaller)
}

func TestMoveCustodyIsUndoneByJournal(t *testing.T) {
	f := newFixture(t, 1000, nil)
	id := f.mintConfirmed(t, alice)
	require.NoError(t, f.reg.Approve(context.Background(), alice, "0xmarket", id))

	ctx, journal := txn.Begin(context.Background())
	require.NoError(t, f.reg.MoveCustody(ctx, "0xmarket", alice, bob, id))
	journal.Rollback()

	bg := context.Background()
	got, err := f.reg.OwnerOf(bg, id)
	require.NoError(t, err)
	assert.Equal(t, alice, got)
	assert.Equal(t, []uint64{id}, f.reg.TokensOf(bg, alice))
	assert.Empty(t, f.reg.TokensOf(bg, bob))
	approved, _ := f.reg.GetApproved(bg, id)
	assert.Equal(t, chain.Address("0xmarket"), approved)
	assert.Empty(t, f.journal.List(bg, events.Filter{Type: events.AssetTransferred}))
}

func TestInitializeOnce(t *testing.T) {
	f := newFixture(t, 1000, nil)
	err := f.reg.Initialize(context.Background(), alice, Settings{Address: nft})
	assert.True(t, errors.IsStateConflict(err))
	assert.Equal(t, owner, f.reg.Owner())
	assert.Equal(t, "LQRNFT", f.reg.Symbol())

	fresh := New(nil, nil, logger.NewDiscard())
	_, err = fresh.Mint(context.Background(), alice, "ref", nil, nil, nil)
	assert.True(t, errors.IsStateConflict(err))
	assert.ErrorIs(t, fresh.Initialize(context.Background(), owner, Settings{Address: nft, MintingFee: big.NewInt(1)}), ErrZeroFeeCollector)
}
