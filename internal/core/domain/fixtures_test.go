package domain_test

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/joinstr-network/joinstr-daemon/internal/core/domain"
)

// testPeer is one simulated participant: an ephemeral relay key plus the
// bitcoin key controlling its committed input.
type testPeer struct {
	relayKey   string
	inputKey   *btcec.PrivateKey
	prevScript []byte
	commitment domain.Commitment
}

func testConfig(peers int) domain.PoolConfig {
	return domain.PoolConfig{
		Denomination: 100_000,
		Fee:          1000,
		MaxDuration:  600,
		Peers:        peers,
		Network:      domain.NetworkRegtest,
	}
}

func testPool(t *testing.T, cfg domain.PoolConfig) domain.Pool {
	t.Helper()
	creator := newRelayKey(t)
	pool, err := domain.NewPool(cfg, creator, time.Now())
	require.NoError(t, err)
	return *pool
}

func newRelayKey(t *testing.T) string {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return hex.EncodeToString(schnorr.SerializePubKey(priv.PubKey()))
}

// p2wpkhScript builds a segwit v0 keyhash script for the given key.
func p2wpkhScript(t *testing.T, pubKey *btcec.PublicKey) []byte {
	t.Helper()
	addr, err := btcutil.NewAddressWitnessPubKeyHash(
		btcutil.Hash160(pubKey.SerializeCompressed()),
		&chaincfg.RegressionNetParams,
	)
	require.NoError(t, err)
	script, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)
	return script
}

// newTestPeers builds one valid commitment per peer, each spending a distinct
// p2wpkh outpoint funded with exactly denomination plus fee share.
func newTestPeers(t *testing.T, cfg domain.PoolConfig) []testPeer {
	t.Helper()
	peers := make([]testPeer, 0, cfg.Peers)
	for i := 0; i < cfg.Peers; i++ {
		inputKey, err := btcec.NewPrivateKey()
		require.NoError(t, err)
		outputKey, err := btcec.NewPrivateKey()
		require.NoError(t, err)

		prevScript := p2wpkhScript(t, inputKey.PubKey())
		outputScript := p2wpkhScript(t, outputKey.PubKey())

		txid := sha256.Sum256([]byte(fmt.Sprintf("funding-%d", i)))
		relayKey := newRelayKey(t)
		peers = append(peers, testPeer{
			relayKey:   relayKey,
			inputKey:   inputKey,
			prevScript: prevScript,
			commitment: domain.Commitment{
				PublicKey:    relayKey,
				Txid:         hex.EncodeToString(txid[:]),
				Vout:         uint32(i),
				Value:        cfg.Denomination + cfg.FeeShare(),
				OutputScript: hex.EncodeToString(outputScript),
				InputScript:  hex.EncodeToString(prevScript),
			},
		})
	}
	return peers
}

// signOwnInput produces the witness for the peer's input of the given draft,
// the way a participant's wallet would.
func (p testPeer) signOwnInput(t *testing.T, draft *domain.Draft) wire.TxWitness {
	t.Helper()
	idx, ok := draft.InputIndex(p.commitment.OutPoint())
	require.True(t, ok)

	fetcher := txscript.NewCannedPrevOutputFetcher(
		p.prevScript, int64(p.commitment.Value),
	)
	sigHashes := txscript.NewTxSigHashes(draft.UnsignedTx, fetcher)
	witness, err := txscript.WitnessSignature(
		draft.UnsignedTx, sigHashes, idx, int64(p.commitment.Value),
		p.prevScript, txscript.SigHashAll, p.inputKey, true,
	)
	require.NoError(t, err)
	return witness
}
