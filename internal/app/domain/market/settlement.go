package market

import (
	"fmt"
	"math/big"

	"github.com/R3E-Network/nft_exchange/internal/app/domain/asset"
	"github.com/R3E-Network/nft_exchange/internal/app/domain/chain"
)

// PayoutKind tags a settlement leg.
type PayoutKind string

const (
	PayoutFee     PayoutKind = "fee"
	PayoutRoyalty PayoutKind = "royalty"
	PayoutSeller  PayoutKind = "seller"
)

// Payout is one leg of a settlement.
type Payout struct {
	Kind      PayoutKind    `json:"kind"`
	Recipient chain.Address `json:"recipient"`
	Amount    *big.Int      `json:"amount"`
	Burn      bool          `json:"burn"`
}

// Settlement is the full split of a sale price.
type Settlement struct {
	Price        *big.Int      `json:"price"`
	Denomination chain.Address `json:"denomination"`
	Payouts      []Payout      `json:"payouts"`
}

// SellerProceeds returns the seller leg, or zero.
func (s Settlement) SellerProceeds() *big.Int {
	for _, p := range s.Payouts {
		if p.Kind == PayoutSeller {
			return chain.Amount(p.Amount)
		}
	}
	return new(big.Int)
}

// Total sums all legs. It equals Price for every plan produced by
// PlanSettlement.
func (s Settlement) Total() *big.Int {
	total := new(big.Int)
	for _, p := range s.Payouts {
		total.Add(total, p.Amount)
	}
	return total
}

// PlanSettlement splits price into fee legs (table order), royalty legs
// (mint order, only when the rule names a royalty registry) and the seller
// remainder. Every share is floor(price*bp/10000) of the original price.
func PlanSettlement(price *big.Int, rule FeeRule, royalties asset.RoyaltySpec, seller chain.Address) (Settlement, error) {
	if !chain.IsPositive(price) {
		return Settlement{}, fmt.Errorf("price must be positive")
	}
	plan := Settlement{Price: chain.Amount(price), Denomination: rule.Denomination}
	remaining := chain.Amount(price)

	for _, fee := range rule.Fees {
		amt := chain.ShareOf(price, fee.ShareBp)
		plan.Payouts = append(plan.Payouts, Payout{Kind: PayoutFee, Recipient: fee.Recipient, Amount: amt, Burn: fee.Burn})
		remaining.Sub(remaining, amt)
	}

	if len(royalties) > 0 && rule.PaysRoyalties() {
		for _, royalty := range royalties {
			amt := chain.ShareOf(price, royalty.ShareBp)
			plan.Payouts = append(plan.Payouts, Payout{Kind: PayoutRoyalty, Recipient: royalty.Beneficiary, Amount: amt, Burn: rule.RoyaltyBurn})
			remaining.Sub(remaining, amt)
		}
	}

	if remaining.Sign() < 0 {
		return Settlement{}, fmt.Errorf("fees and royalties exceed price by %s", new(big.Int).Neg(remaining))
	}
	plan.Payouts = append(plan.Payouts, Payout{Kind: PayoutSeller, Recipient: seller, Amount: remaining})
	return plan, nil
}
