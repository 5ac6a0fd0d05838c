package mathutil

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// SatsPerBTC is the number of satoshis in one bitcoin.
var SatsPerBTC = decimal.NewFromInt(100_000_000)

// FeeShare calculates the per-peer fee share of a pool given the total fee in
// satoshis. The share is the ceiling division fee/peers: all peers must
// compute the same split, and any remainder is paid rather than dropped so
// the transaction never underpays the advertised fee.
func FeeShare(fee uint64, peers int) uint64 {
	if peers <= 0 {
		return fee
	}
	return (fee + uint64(peers) - 1) / uint64(peers)
}

// BTCToSats converts an amount expressed in BTC, as returned by electrum
// servers, to integer satoshis. Amounts on the signing path are never kept as
// floats; the decimal conversion happens once at the query boundary.
func BTCToSats(btc float64) uint64 {
	sats := decimal.NewFromFloat(btc).Mul(SatsPerBTC).Round(0)
	return new(big.Int).Set(sats.BigInt()).Uint64()
}

// BTCPerKvBToSatsPerVByte converts a fee estimate in BTC/kvB, the electrum
// wire unit, to sats/vB.
func BTCPerKvBToSatsPerVByte(btcPerKvB float64) decimal.Decimal {
	return decimal.NewFromFloat(btcPerKvB).
		Mul(SatsPerBTC).
		Div(decimal.NewFromInt(1000))
}
