package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/joinstr-network/joinstr-daemon/pkg/mathutil"
)

// PoolConfig holds the immutable parameters of a pool. Amounts are integer
// satoshis, never floats, since they end up in the signing path.
type PoolConfig struct {
	// Denomination is the exact per-peer output value in satoshis.
	Denomination uint64 `json:"denomination"`
	// Fee is the total transaction fee of the pool in satoshis, split across
	// peers with a ceiling division.
	Fee uint64 `json:"fee"`
	// MaxDuration is the wall-clock lifetime of the pool in seconds.
	MaxDuration uint64 `json:"max_duration"`
	// Peers is the target number of participants.
	Peers int `json:"peers"`
	// Network is one of mainnet|testnet|signet|regtest.
	Network string `json:"network"`
}

// Validate checks the config against protocol bounds.
func (c PoolConfig) Validate() error {
	if c.Denomination == 0 {
		return ErrPoolInvalidDenomination
	}
	if c.Peers < 2 {
		return ErrPoolInvalidPeers
	}
	if c.MaxDuration == 0 {
		return ErrPoolInvalidDuration
	}
	switch c.Network {
	case NetworkMainnet, NetworkTestnet, NetworkSignet, NetworkRegtest:
	default:
		return ErrPoolInvalidNetwork
	}
	return nil
}

// FeeShare returns the per-peer fee share in satoshis (ceiling division, all
// peers must compute the same split).
func (c PoolConfig) FeeShare() uint64 {
	return mathutil.FeeShare(c.Fee, c.Peers)
}

// Pool is the advertisement of a coinjoin round as observed on the relay.
// It is immutable once published.
type Pool struct {
	Versions     []string `json:"versions,omitempty"`
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	PublicKey    string   `json:"public_key"`
	Network      string   `json:"network"`
	Denomination uint64   `json:"denomination"`
	Peers        int      `json:"peers"`
	// Timeout is the absolute unix timestamp after which the pool is expired.
	Timeout int64    `json:"timeout"`
	Fee     uint64   `json:"fee"`
	Relays  []string `json:"relays,omitempty"`
}

// PoolTypeCreate is the only advertised pool type of protocol version 1.
const PoolTypeCreate = "new_pool"

// NewPool builds the advertisement of a new pool. The id is content-addressed:
// sha256 over the canonical config encoding, the creator's ephemeral public
// key and the creation time in microseconds.
func NewPool(cfg PoolConfig, publicKey string, createdAt time.Time) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := hex.DecodeString(publicKey); err != nil || len(publicKey) != 64 {
		return nil, ErrCommitmentInvalidKey
	}

	rawCfg, _ := json.Marshal(cfg)
	h := sha256.New()
	h.Write(rawCfg)
	rawKey, _ := hex.DecodeString(publicKey)
	h.Write(rawKey)
	var micros [8]byte
	binary.BigEndian.PutUint64(micros[:], uint64(createdAt.UnixMicro()))
	h.Write(micros[:])

	return &Pool{
		Versions:     []string{ProtocolVersion},
		ID:           hex.EncodeToString(h.Sum(nil)),
		Type:         PoolTypeCreate,
		PublicKey:    publicKey,
		Network:      cfg.Network,
		Denomination: cfg.Denomination,
		Peers:        cfg.Peers,
		Timeout:      createdAt.Unix() + int64(cfg.MaxDuration),
		Fee:          cfg.Fee,
	}, nil
}

// Config returns the pool parameters as a PoolConfig. MaxDuration is
// reconstructed from the advertised absolute timeout.
func (p *Pool) Config(now time.Time) PoolConfig {
	maxDuration := p.Timeout - now.Unix()
	if maxDuration < 0 {
		maxDuration = 0
	}
	return PoolConfig{
		Denomination: p.Denomination,
		Fee:          p.Fee,
		MaxDuration:  uint64(maxDuration),
		Peers:        p.Peers,
		Network:      p.Network,
	}
}

// Validate checks an advertisement observed on the relay. Malformed
// advertisements are skipped by discovery, never fatal.
func (p *Pool) Validate() error {
	if len(p.ID) != 64 {
		return ErrPoolInvalidID
	}
	if _, err := hex.DecodeString(p.ID); err != nil {
		return ErrPoolInvalidID
	}
	if _, err := hex.DecodeString(p.PublicKey); err != nil || len(p.PublicKey) != 64 {
		return ErrCommitmentInvalidKey
	}
	if p.Denomination == 0 {
		return ErrPoolInvalidDenomination
	}
	if p.Peers < 2 {
		return ErrPoolInvalidPeers
	}
	switch p.Network {
	case NetworkMainnet, NetworkTestnet, NetworkSignet, NetworkRegtest:
	default:
		return ErrPoolInvalidNetwork
	}
	return nil
}

// IsExpired returns whether the pool deadline has passed.
func (p *Pool) IsExpired(now time.Time) bool {
	return now.Unix() >= p.Timeout
}
