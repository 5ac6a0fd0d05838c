package application

import (
	"fmt"

	"github.com/joinstr-network/joinstr-daemon/pkg/wallet"
)

// ListCoins derives the external BIP84 addresses of the wallet in
// [indexMin, indexMax) and resolves their unspent outputs against the chain
// backend. The backend endpoint and the network are the ones this service
// was configured with, not per-call parameters. The mnemonic never leaves
// the process.
func (s *Service) ListCoins(
	mnemonic string, indexMin, indexMax uint32,
) ([]wallet.Coin, error) {
	w, err := wallet.NewFromMnemonic(mnemonic, s.network)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}
	coins, err := w.ListCoins(s.explorerSvc, indexMin, indexMax)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTransport, err)
	}
	return coins, nil
}
