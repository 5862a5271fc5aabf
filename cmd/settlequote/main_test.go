package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteSplitsPrice(t *testing.T) {
	q := quote{
		Price:     "1",
		Decimals:  18,
		Fees:      "0xfees:250",
		Royalties: "0xartist:500, 0xlabel:100",
		Seller:    "0xseller",
		Royalty:   true,
	}
	plan, err := q.plan()
	require.NoError(t, err)
	require.Len(t, plan.Payouts, 4)
	assert.Equal(t, "25000000000000000", plan.Payouts[0].Amount.String())
	assert.Equal(t, "50000000000000000", plan.Payouts[1].Amount.String())
	assert.Equal(t, "10000000000000000", plan.Payouts[2].Amount.String())
	assert.Equal(t, "915000000000000000", plan.SellerProceeds().String())

	var out bytes.Buffer
	render(&out, plan, 18)
	assert.Contains(t, out.String(), "0.025")
	assert.Contains(t, out.String(), "0.915")
}

func TestQuoteWithoutRoyaltyRegistry(t *testing.T) {
	q := quote{Price: "100", Decimals: 0, Royalties: "0xartist:500", Seller: "0xseller"}
	plan, err := q.plan()
	require.NoError(t, err)
	require.Len(t, plan.Payouts, 1)
	assert.Equal(t, "100", plan.SellerProceeds().String())
}

func TestParseFeesRejectsBadInput(t *testing.T) {
	_, err := parseFees("0xfees")
	assert.Error(t, err)
	_, err = parseFees("0xfees:10001")
	assert.Error(t, err)
	_, err = parseFees("0xfees:10:keep")
	assert.Error(t, err)

	fees, err := parseFees("0xa:10:burn,0xb:20")
	require.NoError(t, err)
	require.Len(t, fees, 2)
	assert.True(t, fees[0].Burn)
	assert.Equal(t, uint32(20), fees[1].ShareBp)
}

func TestQuoteRejectsOverAllocation(t *testing.T) {
	q := quote{Price: "100", Decimals: 0, Fees: "0xa:6000", Royalties: "0xb:5000", Seller: "0xs", Royalty: true}
	_, err := q.plan()
	assert.Error(t, err)
}
