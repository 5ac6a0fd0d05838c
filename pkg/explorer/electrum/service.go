package electrum

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/joinstr-network/joinstr-daemon/pkg/circuitbreaker"
	"github.com/joinstr-network/joinstr-daemon/pkg/explorer"
	"github.com/joinstr-network/joinstr-daemon/pkg/mathutil"
)

const (
	clientName      = "joinstr-daemon"
	protocolVersion = "1.4"
	requestTimeout  = 30 * time.Second
)

type service struct {
	conn   net.Conn
	reader *bufio.Reader
	params *chaincfg.Params
	cb     *gobreaker.CircuitBreaker

	lock   sync.Mutex
	lastID uint64
}

// NewService connects to an electrum server over TCP and returns it as an
// explorer.Service. The connection is validated with a protocol handshake.
func NewService(addr string, port int, params *chaincfg.Params) (explorer.Service, error) {
	conn, err := net.DialTimeout(
		"tcp", fmt.Sprintf("%s:%d", addr, port), requestTimeout,
	)
	if err != nil {
		return nil, fmt.Errorf("electrum connect: %w", err)
	}
	svc := &service{
		conn:   conn,
		reader: bufio.NewReader(conn),
		params: params,
		cb:     circuitbreaker.NewCircuitBreaker("electrum"),
	}
	if _, err := svc.call(
		"server.version", []interface{}{clientName, protocolVersion},
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("electrum handshake: %w", err)
	}
	return svc, nil
}

func (s *service) GetUnspentsForAddresses(addresses []string) ([]explorer.Utxo, error) {
	utxos := make([]explorer.Utxo, 0)
	for _, addr := range addresses {
		decoded, err := btcutil.DecodeAddress(addr, s.params)
		if err != nil {
			return nil, fmt.Errorf("invalid address %s: %w", addr, err)
		}
		script, err := txscript.PayToAddrScript(decoded)
		if err != nil {
			return nil, err
		}
		unspents, err := s.listUnspent(script)
		if err != nil {
			return nil, err
		}
		for _, u := range unspents {
			utxos = append(utxos, utxo{
				UHash:      u.TxHash,
				UIndex:     u.TxPos,
				UValue:     u.Value,
				UScript:    script,
				UAddress:   addr,
				UConfirmed: u.Height > 0,
			})
		}
	}
	return utxos, nil
}

func (s *service) GetOutpointStatus(txid string, vout uint32) (*explorer.OutpointStatus, error) {
	rawTx, err := s.getRawTransaction(txid)
	if err != nil {
		return nil, err
	}
	if rawTx == nil {
		return nil, nil
	}
	if int(vout) >= len(rawTx.TxOut) {
		return nil, nil
	}
	out := rawTx.TxOut[vout]

	unspents, err := s.listUnspent(out.PkScript)
	if err != nil {
		return nil, err
	}
	status := &explorer.OutpointStatus{
		Value:  uint64(out.Value),
		Script: out.PkScript,
		Spent:  true,
	}
	for _, u := range unspents {
		if u.TxHash == txid && u.TxPos == vout {
			status.Spent = false
			status.Confirmed = u.Height > 0
			break
		}
	}
	return status, nil
}

func (s *service) EstimateFeeRate(blocksTarget int) (decimal.Decimal, error) {
	res, err := s.call("blockchain.estimatefee", []interface{}{blocksTarget})
	if err != nil {
		return decimal.Zero, err
	}
	var btcPerKvB float64
	if err := json.Unmarshal(res, &btcPerKvB); err != nil {
		return decimal.Zero, ErrMalformedResponse
	}
	if btcPerKvB < 0 {
		return decimal.Zero, fmt.Errorf("electrum server has no fee estimate for target %d", blocksTarget)
	}
	return mathutil.BTCPerKvBToSatsPerVByte(btcPerKvB), nil
}

func (s *service) BroadcastTransaction(txHex string) (string, error) {
	res, err := s.call("blockchain.transaction.broadcast", []interface{}{txHex})
	if err != nil {
		// Another participant may have broadcast the same transaction first.
		// That is a success for this session: the txid is derived locally.
		if isAlreadyKnownErr(err) {
			return txidFromHex(txHex)
		}
		return "", err
	}
	var txid string
	if err := json.Unmarshal(res, &txid); err != nil {
		return "", ErrMalformedResponse
	}
	return txid, nil
}

func (s *service) listUnspent(script []byte) ([]unspent, error) {
	res, err := s.call(
		"blockchain.scripthash.listunspent", []interface{}{scriptHash(script)},
	)
	if err != nil {
		return nil, err
	}
	unspents := make([]unspent, 0)
	if err := json.Unmarshal(res, &unspents); err != nil {
		return nil, ErrMalformedResponse
	}
	return unspents, nil
}

// getRawTransaction returns nil without error if the server does not know the
// transaction.
func (s *service) getRawTransaction(txid string) (*wire.MsgTx, error) {
	res, err := s.call("blockchain.transaction.get", []interface{}{txid})
	if err != nil {
		if respErr, ok := err.(*responseError); ok && respErr.Code != 0 {
			return nil, nil
		}
		return nil, err
	}
	var txHex string
	if err := json.Unmarshal(res, &txHex); err != nil {
		return nil, ErrMalformedResponse
	}
	raw, err := hex.DecodeString(txHex)
	if err != nil {
		return nil, ErrMalformedResponse
	}
	tx := &wire.MsgTx{}
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, ErrMalformedResponse
	}
	return tx, nil
}

// call performs one JSON-RPC round trip over the line protocol. Requests are
// serialized: the electrum protocol answers on the same connection and
// responses are matched by id, skipping subscription notifications.
func (s *service) call(method string, params []interface{}) (json.RawMessage, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		s.lock.Lock()
		defer s.lock.Unlock()

		s.lastID++
		req := request{ID: s.lastID, Method: method, Params: params}
		raw, err := json.Marshal(req)
		if err != nil {
			return nil, err
		}
		raw = append(raw, '\n')

		deadline := time.Now().Add(requestTimeout)
		if err := s.conn.SetDeadline(deadline); err != nil {
			return nil, err
		}
		if _, err := s.conn.Write(raw); err != nil {
			return nil, fmt.Errorf("electrum send: %w", err)
		}

		for {
			line, err := s.reader.ReadBytes('\n')
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					return nil, ErrRequestTimeout
				}
				return nil, fmt.Errorf("electrum recv: %w", err)
			}
			var resp response
			if err := json.Unmarshal(line, &resp); err != nil {
				return nil, ErrMalformedResponse
			}
			if resp.ID == nil || *resp.ID != req.ID {
				// Notification or stale response, not ours.
				continue
			}
			if resp.Error != nil {
				return nil, resp.Error
			}
			return resp.Result, nil
		}
	})
	if err != nil {
		return nil, err
	}
	return res.(json.RawMessage), nil
}

// scriptHash returns the electrum scripthash of a scriptPubKey: the sha256
// digest in reversed byte order, hex-encoded.
func scriptHash(script []byte) string {
	digest := sha256.Sum256(script)
	for i, j := 0, len(digest)-1; i < j; i, j = i+1, j-1 {
		digest[i], digest[j] = digest[j], digest[i]
	}
	return hex.EncodeToString(digest[:])
}

func isAlreadyKnownErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already known") ||
		strings.Contains(msg, "already in mempool") ||
		strings.Contains(msg, "txn-already-known")
}

func txidFromHex(txHex string) (string, error) {
	raw, err := hex.DecodeString(txHex)
	if err != nil {
		return "", ErrMalformedResponse
	}
	tx := &wire.MsgTx{}
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return "", ErrMalformedResponse
	}
	return tx.TxHash().String(), nil
}
