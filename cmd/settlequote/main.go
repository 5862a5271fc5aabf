// Command settlequote prints how a sale price would be split between fee
// recipients, royalty beneficiaries and the seller.
//
//	settlequote -price 1.5 -fees 0xfees:250 -royalties 0xartist:500,0xlabel:100 -seller 0xseller
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/R3E-Network/nft_exchange/internal/app/domain/asset"
	"github.com/R3E-Network/nft_exchange/internal/app/domain/chain"
	"github.com/R3E-Network/nft_exchange/internal/app/domain/market"
)

func main() {
	price := flag.String("price", "", "Sale price in whole units, e.g. 1.5")
	decimals := flag.Int("decimals", 18, "Decimals of the denomination")
	fees := flag.String("fees", "", "Fee table as recipient:bp[:burn],...")
	royalties := flag.String("royalties", "", "Royalties in mint order as beneficiary:bp,...")
	seller := flag.String("seller", "0xseller", "Seller address")
	noRoyalty := flag.Bool("no-royalty", false, "Quote without a royalty registry")
	burnRoyalty := flag.Bool("burn-royalty", false, "Mark royalty legs as burned")
	flag.Parse()

	if *price == "" {
		flag.Usage()
		os.Exit(1)
	}

	q := quote{
		Price:       *price,
		Decimals:    int32(*decimals),
		Fees:        *fees,
		Royalties:   *royalties,
		Seller:      chain.Address(*seller),
		Royalty:     !*noRoyalty,
		BurnRoyalty: *burnRoyalty,
	}
	plan, err := q.plan()
	if err != nil {
		log.Fatalf("plan settlement: %v", err)
	}
	render(os.Stdout, plan, q.Decimals)
}

type quote struct {
	Price       string
	Decimals    int32
	Fees        string
	Royalties   string
	Seller      chain.Address
	Royalty     bool
	BurnRoyalty bool
}

func (q quote) plan() (market.Settlement, error) {
	price, err := chain.ParseUnits(q.Price, q.Decimals)
	if err != nil {
		return market.Settlement{}, fmt.Errorf("parse price: %w", err)
	}
	fees, err := parseFees(q.Fees)
	if err != nil {
		return market.Settlement{}, err
	}
	royalties, err := parseRoyalties(q.Royalties)
	if err != nil {
		return market.Settlement{}, err
	}
	rule := market.FeeRule{
		Denomination: chain.NativeCurrency,
		Enabled:      true,
		QuoteEnabled: true,
		Fees:         fees,
		RoyaltyBurn:  q.BurnRoyalty,
	}
	if q.Royalty {
		rule.RoyaltyRegistry = "0xroyalty"
	}
	return market.PlanSettlement(price, rule, royalties, q.Seller)
}

func parseFees(raw string) ([]market.FeeEntry, error) {
	var out []market.FeeEntry
	for _, part := range splitList(raw) {
		fields := strings.Split(part, ":")
		if len(fields) < 2 || len(fields) > 3 {
			return nil, fmt.Errorf("invalid fee %q", part)
		}
		bp, err := parseBp(fields[1])
		if err != nil {
			return nil, fmt.Errorf("invalid fee %q: %w", part, err)
		}
		entry := market.FeeEntry{Recipient: chain.Address(fields[0]), ShareBp: bp}
		if len(fields) == 3 {
			if fields[2] != "burn" {
				return nil, fmt.Errorf("invalid fee flag %q", fields[2])
			}
			entry.Burn = true
		}
		out = append(out, entry)
	}
	return out, nil
}

func parseRoyalties(raw string) (asset.RoyaltySpec, error) {
	var out asset.RoyaltySpec
	for _, part := range splitList(raw) {
		addr, share, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("invalid royalty %q", part)
		}
		bp, err := parseBp(share)
		if err != nil {
			return nil, fmt.Errorf("invalid royalty %q: %w", part, err)
		}
		out = append(out, asset.Royalty{Beneficiary: chain.Address(addr), ShareBp: bp})
	}
	return out, nil
}

func parseBp(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, err
	}
	if v > chain.BasisPointsDenominator {
		return 0, fmt.Errorf("%d bp exceeds %d", v, chain.BasisPointsDenominator)
	}
	return uint32(v), nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func render(w io.Writer, plan market.Settlement, decimals int32) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "price\t%s\t\n", chain.FormatUnits(plan.Price, decimals))
	for _, p := range plan.Payouts {
		kind := string(p.Kind)
		if p.Burn {
			kind += " (burn)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", kind, p.Recipient, chain.FormatUnits(p.Amount, decimals))
	}
	tw.Flush()
}
