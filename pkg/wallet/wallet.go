package wallet

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/tyler-smith/go-bip39"

	"github.com/joinstr-network/joinstr-daemon/pkg/explorer"
)

var (
	// ErrInvalidMnemonic ...
	ErrInvalidMnemonic = errors.New("mnemonic is not a valid bip39 sentence")
	// ErrUnknownNetwork ...
	ErrUnknownNetwork = errors.New("unknown network")
	// ErrUnknownScript is thrown when signing is requested for a script whose
	// key has not been derived.
	ErrUnknownScript = errors.New("no derived key for the given script")
)

// NetworkParams maps a network name to btcd chain parameters.
func NetworkParams(network string) (*chaincfg.Params, error) {
	switch network {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet":
		return &chaincfg.TestNet3Params, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, ErrUnknownNetwork
	}
}

// Coin is one unspent output owned by the wallet.
type Coin struct {
	Txid      string `json:"txid"`
	Vout      uint32 `json:"vout"`
	Value     uint64 `json:"value"`
	Address   string `json:"address"`
	Script    string `json:"script"`
	Confirmed bool   `json:"confirmed"`
	Index     uint32 `json:"derivation_index"`
}

// Wallet derives BIP84 (wpkh) addresses and keys from a seed and signs
// coinjoin inputs. Key material never leaves this package.
type Wallet struct {
	params   *chaincfg.Params
	external *hdkeychain.ExtendedKey

	keysByScript map[string]*btcec.PrivateKey
}

// NewFromMnemonic builds a wallet on the external chain of the BIP84 account
// m/84'/coin'/0'/0.
func NewFromMnemonic(mnemonic, network string) (*Wallet, error) {
	params, err := NetworkParams(network)
	if err != nil {
		return nil, err
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return nil, ErrInvalidMnemonic
	}
	master, err := hdkeychain.NewMaster(seed, params)
	if err != nil {
		return nil, err
	}
	coinType := uint32(1)
	if params.Name == chaincfg.MainNetParams.Name {
		coinType = 0
	}
	path := []uint32{
		hdkeychain.HardenedKeyStart + 84,
		hdkeychain.HardenedKeyStart + coinType,
		hdkeychain.HardenedKeyStart + 0,
		0,
	}
	key := master
	for _, child := range path {
		if key, err = key.Derive(child); err != nil {
			return nil, err
		}
	}
	return &Wallet{
		params:       params,
		external:     key,
		keysByScript: make(map[string]*btcec.PrivateKey),
	}, nil
}

// Derive returns the address and scriptPubKey at the given index and caches
// the signing key for later use.
func (w *Wallet) Derive(index uint32) (string, []byte, error) {
	child, err := w.external.Derive(index)
	if err != nil {
		return "", nil, err
	}
	privKey, err := child.ECPrivKey()
	if err != nil {
		return "", nil, err
	}
	pubKey, err := child.ECPubKey()
	if err != nil {
		return "", nil, err
	}
	addr, err := btcutil.NewAddressWitnessPubKeyHash(
		btcutil.Hash160(pubKey.SerializeCompressed()), w.params,
	)
	if err != nil {
		return "", nil, err
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return "", nil, err
	}
	w.keysByScript[hex.EncodeToString(script)] = privKey
	return addr.EncodeAddress(), script, nil
}

// ListCoins resolves the unspent outputs of the derivation indexes in
// [indexMin, indexMax) through the given chain backend.
func (w *Wallet) ListCoins(
	svc explorer.Service, indexMin, indexMax uint32,
) ([]Coin, error) {
	if indexMax <= indexMin {
		return nil, fmt.Errorf("invalid index range [%d, %d)", indexMin, indexMax)
	}
	addresses := make([]string, 0, indexMax-indexMin)
	indexByAddress := make(map[string]uint32)
	for i := indexMin; i < indexMax; i++ {
		addr, _, err := w.Derive(i)
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, addr)
		indexByAddress[addr] = i
	}
	utxos, err := svc.GetUnspentsForAddresses(addresses)
	if err != nil {
		return nil, err
	}
	coins := make([]Coin, 0, len(utxos))
	for _, u := range utxos {
		coins = append(coins, Coin{
			Txid:      u.Hash(),
			Vout:      u.Index(),
			Value:     u.Value(),
			Address:   u.Address(),
			Script:    hex.EncodeToString(u.Script()),
			Confirmed: u.IsConfirmed(),
			Index:     indexByAddress[u.Address()],
		})
	}
	return coins, nil
}

// SignInput signs the input at the given index of tx spending a wpkh prevout
// of the given value and script, and returns the final witness.
func (w *Wallet) SignInput(
	tx *wire.MsgTx, index int, value uint64, prevScript []byte,
) (wire.TxWitness, error) {
	privKey, ok := w.keysByScript[hex.EncodeToString(prevScript)]
	if !ok {
		return nil, ErrUnknownScript
	}
	fetcher := txscript.NewCannedPrevOutputFetcher(prevScript, int64(value))
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	return txscript.WitnessSignature(
		tx, sigHashes, index, int64(value), prevScript,
		txscript.SigHashAll, privKey, true,
	)
}
