package wallet_test

import (
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/joinstr-network/joinstr-daemon/pkg/explorer"
	"github.com/joinstr-network/joinstr-daemon/pkg/wallet"
)

// Test vectors from the BIP84 reference.
const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestDerive(t *testing.T) {
	t.Parallel()

	w, err := wallet.NewFromMnemonic(testMnemonic, "mainnet")
	require.NoError(t, err)

	addr0, script0, err := w.Derive(0)
	require.NoError(t, err)
	require.Equal(t, "bc1qcr8te4kr609gcawutmrza0j4xv80jy8z306fyu", addr0)
	require.True(t, txscript.IsPayToWitnessPubKeyHash(script0))

	addr1, _, err := w.Derive(1)
	require.NoError(t, err)
	require.Equal(t, "bc1qnjg0jd8228aq7egyzacy8cys3knf9xvrerkf9g", addr1)
}

func TestFailingNewFromMnemonic(t *testing.T) {
	t.Parallel()

	_, err := wallet.NewFromMnemonic("not a mnemonic", "mainnet")
	require.ErrorIs(t, err, wallet.ErrInvalidMnemonic)

	_, err = wallet.NewFromMnemonic(testMnemonic, "liquid")
	require.ErrorIs(t, err, wallet.ErrUnknownNetwork)
}

func TestSignInput(t *testing.T) {
	t.Parallel()

	w, err := wallet.NewFromMnemonic(testMnemonic, "regtest")
	require.NoError(t, err)

	_, prevScript, err := w.Derive(0)
	require.NoError(t, err)

	value := uint64(100_334)
	prevHash := chainhash.DoubleHashH([]byte("funding"))
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: prevHash, Index: 1}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(int64(value)-334, prevScript))

	witness, err := w.SignInput(tx, 0, value, prevScript)
	require.NoError(t, err)
	require.Len(t, witness, 2)

	tx.TxIn[0].Witness = witness
	fetcher := txscript.NewCannedPrevOutputFetcher(prevScript, int64(value))
	vm, err := txscript.NewEngine(
		prevScript, tx, 0, txscript.StandardVerifyFlags, nil,
		txscript.NewTxSigHashes(tx, fetcher), int64(value), fetcher,
	)
	require.NoError(t, err)
	require.NoError(t, vm.Execute())
}

func TestSignInputUnknownScript(t *testing.T) {
	t.Parallel()

	w, err := wallet.NewFromMnemonic(testMnemonic, "regtest")
	require.NoError(t, err)

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{}, nil, nil))

	foreignScript, _ := hex.DecodeString("0014aabbccddeeff00112233445566778899aabbccdd")
	_, err = w.SignInput(tx, 0, 1000, foreignScript)
	require.ErrorIs(t, err, wallet.ErrUnknownScript)
}

func TestListCoins(t *testing.T) {
	t.Parallel()

	w, err := wallet.NewFromMnemonic(testMnemonic, "regtest")
	require.NoError(t, err)

	addr1, script1, err := w.Derive(1)
	require.NoError(t, err)

	svc := &stubExplorer{unspents: []explorer.Utxo{
		stubUtxo{
			hash:    "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
			index:   0,
			value:   100_334,
			script:  script1,
			address: addr1,
		},
	}}

	coins, err := w.ListCoins(svc, 0, 5)
	require.NoError(t, err)
	require.Len(t, coins, 1)
	require.Equal(t, addr1, coins[0].Address)
	require.Equal(t, uint64(100_334), coins[0].Value)
	require.Equal(t, uint32(1), coins[0].Index)

	_, err = w.ListCoins(svc, 5, 5)
	require.Error(t, err)
}

type stubExplorer struct {
	unspents []explorer.Utxo
}

func (s *stubExplorer) GetUnspentsForAddresses(addresses []string) ([]explorer.Utxo, error) {
	return s.unspents, nil
}

func (s *stubExplorer) GetOutpointStatus(txid string, vout uint32) (*explorer.OutpointStatus, error) {
	return nil, nil
}

func (s *stubExplorer) EstimateFeeRate(blocksTarget int) (decimal.Decimal, error) {
	return decimal.NewFromInt(1), nil
}

func (s *stubExplorer) BroadcastTransaction(txHex string) (string, error) {
	return "", nil
}

type stubUtxo struct {
	hash    string
	index   uint32
	value   uint64
	script  []byte
	address string
}

func (u stubUtxo) Hash() string      { return u.hash }
func (u stubUtxo) Index() uint32     { return u.index }
func (u stubUtxo) Value() uint64     { return u.value }
func (u stubUtxo) Script() []byte    { return u.script }
func (u stubUtxo) Address() string   { return u.address }
func (u stubUtxo) IsConfirmed() bool { return true }
