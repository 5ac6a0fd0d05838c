package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/spf13/viper"

	"github.com/joinstr-network/joinstr-daemon/internal/core/domain"
)

const (
	// RelayKey is the websocket url of the relay used for pool coordination
	RelayKey = "RELAY"
	// ElectrumAddressKey is the host of the electrum server used as chain backend
	ElectrumAddressKey = "ELECTRUM_ADDRESS"
	// ElectrumPortKey is the port of the electrum server
	ElectrumPortKey = "ELECTRUM_PORT"
	// NetworkKey is the bitcoin network, one of mainnet|testnet|signet|regtest
	NetworkKey = "NETWORK"
	// DatadirKey is the local data directory to store the internal state of the daemon
	DatadirKey = "DATADIR"
	// LogLevelKey are the different logging levels. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// NoDbKey is used to run without the on-disk store, keeping history in memory only
	NoDbKey = "NO_DB"
	// PoolLookbackKey is how far back in seconds discovery looks for pool advertisements
	PoolLookbackKey = "POOL_LOOKBACK"
	// DiscoveryTimeoutKey is how long in seconds a discovery run listens on the relay
	DiscoveryTimeoutKey = "DISCOVERY_TIMEOUT"

	// DbLocation is the subdirectory of the datadir holding the badger stores
	DbLocation = "db"
)

var vip *viper.Viper
var defaultDatadir = btcutil.AppDataDir("joinstr-daemon", false)

// InitConfig loads the configuration from the JOINSTR_ prefixed environment,
// applies defaults, validates and prepares the datadir.
func InitConfig() error {
	vip = viper.New()
	vip.SetEnvPrefix("JOINSTR")
	vip.AutomaticEnv()

	vip.SetDefault(RelayKey, "wss://nostr.fmt.wiz.biz")
	vip.SetDefault(ElectrumAddressKey, "blockstream.info")
	vip.SetDefault(ElectrumPortKey, 110)
	vip.SetDefault(NetworkKey, domain.NetworkSignet)
	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(NoDbKey, false)
	vip.SetDefault(PoolLookbackKey, 3600)
	vip.SetDefault(DiscoveryTimeoutKey, 10)

	if err := validate(); err != nil {
		return fmt.Errorf("error while validating config: %s", err)
	}

	if err := initDatadir(); err != nil {
		return fmt.Errorf("error while creating datadir: %s", err)
	}

	return nil
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetDuration(key string) time.Duration {
	return vip.GetDuration(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

func GetDatadir() string {
	return GetString(DatadirKey)
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("missing datadir")
	}

	if len(GetString(RelayKey)) <= 0 {
		return fmt.Errorf("missing relay url")
	}

	if len(GetString(ElectrumAddressKey)) <= 0 {
		return fmt.Errorf("missing electrum address")
	}
	if port := GetInt(ElectrumPortKey); port <= 0 || port > 65535 {
		return fmt.Errorf("invalid electrum port")
	}

	switch network := GetString(NetworkKey); network {
	case domain.NetworkMainnet, domain.NetworkTestnet, domain.NetworkSignet,
		domain.NetworkRegtest:
	default:
		return fmt.Errorf("unknown network %s", network)
	}

	return nil
}

func initDatadir() error {
	if GetBool(NoDbKey) {
		return nil
	}
	return makeDirectoryIfNotExists(filepath.Join(GetDatadir(), DbLocation))
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
