package mathutil_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/joinstr-network/joinstr-daemon/pkg/mathutil"
)

func TestFeeShare(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		fee   uint64
		peers int
		want  uint64
	}{
		{"exact_split", 1000, 4, 250},
		{"remainder_rounds_up", 1000, 3, 334},
		{"zero_fee", 0, 5, 0},
		{"single_sat", 1, 2, 1},
		{"more_peers_than_sats", 3, 10, 1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, mathutil.FeeShare(tt.fee, tt.peers))
		})
	}
}

func TestBTCToSats(t *testing.T) {
	t.Parallel()

	require.Equal(t, uint64(100_000_000), mathutil.BTCToSats(1))
	require.Equal(t, uint64(100_334), mathutil.BTCToSats(0.00100334))
	require.Equal(t, uint64(1), mathutil.BTCToSats(0.00000001))
	require.Zero(t, mathutil.BTCToSats(0))
}

func TestBTCPerKvBToSatsPerVByte(t *testing.T) {
	t.Parallel()

	rate := mathutil.BTCPerKvBToSatsPerVByte(0.00001)
	require.True(t, rate.Equal(decimal.NewFromInt(1)), rate.String())
}
