package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/joinstr-network/joinstr-daemon/internal/config"
	"github.com/joinstr-network/joinstr-daemon/internal/core/application"
	"github.com/joinstr-network/joinstr-daemon/internal/core/domain"
	"github.com/joinstr-network/joinstr-daemon/internal/core/ports"
	"github.com/joinstr-network/joinstr-daemon/internal/infrastructure/relay/nostr"
	dbbadger "github.com/joinstr-network/joinstr-daemon/internal/infrastructure/storage/db/badger"
	"github.com/joinstr-network/joinstr-daemon/internal/infrastructure/storage/db/inmemory"
	"github.com/joinstr-network/joinstr-daemon/pkg/explorer/electrum"
	"github.com/joinstr-network/joinstr-daemon/pkg/wallet"
)

// getService assembles the application service from the environment
// configuration. The signer may be nil for read-only commands.
func getService(
	ctx context.Context, signer ports.Signer,
) (*application.Service, func(), error) {
	if err := config.InitConfig(); err != nil {
		return nil, nil, err
	}
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	network := config.GetString(config.NetworkKey)
	params, err := wallet.NetworkParams(network)
	if err != nil {
		return nil, nil, err
	}

	relayClient, err := nostr.NewClient(ctx, config.GetString(config.RelayKey))
	if err != nil {
		return nil, nil, err
	}

	explorerSvc, err := electrum.NewService(
		config.GetString(config.ElectrumAddressKey),
		config.GetInt(config.ElectrumPortKey),
		params,
	)
	if err != nil {
		relayClient.Close()
		return nil, nil, err
	}

	var poolRepo domain.PoolRepository
	var sessionRepo domain.SessionRepository
	var closeDb func()
	if config.GetBool(config.NoDbKey) {
		poolRepo = inmemory.NewPoolRepositoryImpl()
		sessionRepo = inmemory.NewSessionRepositoryImpl()
		closeDb = func() {}
	} else {
		dbManager, err := dbbadger.NewDbManager(
			filepath.Join(config.GetDatadir(), config.DbLocation), nil,
		)
		if err != nil {
			relayClient.Close()
			return nil, nil, err
		}
		poolRepo = dbbadger.NewPoolRepositoryImpl(dbManager)
		sessionRepo = dbbadger.NewSessionRepositoryImpl(dbManager)
		closeDb = func() {
			if err := dbManager.Close(); err != nil {
				log.WithError(err).Warn("failed to close db")
			}
		}
	}

	svc, err := application.NewService(
		relayClient, explorerSvc, signer, network, sessionRepo, poolRepo,
	)
	if err != nil {
		relayClient.Close()
		closeDb()
		return nil, nil, err
	}

	cleanup := func() {
		relayClient.Close()
		closeDb()
	}
	return svc, cleanup, nil
}

// getWallet derives the wallet for the configured network and warms up the
// key cache over [0, indexMax) so the signer can resolve any of its scripts.
func getWallet(mnemonic string, indexMax uint32) (*wallet.Wallet, error) {
	if err := config.InitConfig(); err != nil {
		return nil, err
	}
	w, err := wallet.NewFromMnemonic(mnemonic, config.GetString(config.NetworkKey))
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < indexMax; i++ {
		if _, _, err := w.Derive(i); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// interruptContext returns a context canceled on SIGINT/SIGTERM.
func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
}
