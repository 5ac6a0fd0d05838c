package electrum

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrRequestTimeout is thrown when the server did not answer in time.
	ErrRequestTimeout = errors.New("electrum request timed out")
	// ErrMalformedResponse ...
	ErrMalformedResponse = errors.New("malformed response from electrum server")
)

// request is the JSON-RPC request envelope of the electrum line protocol.
type request struct {
	ID     uint64        `json:"id"`
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

// response is the JSON-RPC response envelope.
type response struct {
	ID     *uint64         `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *responseError  `json:"error"`
}

type responseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *responseError) Error() string {
	return fmt.Sprintf("electrum server error %d: %s", e.Code, e.Message)
}

// unspent is one entry of a blockchain.scripthash.listunspent response.
type unspent struct {
	TxHash string `json:"tx_hash"`
	TxPos  uint32 `json:"tx_pos"`
	Height int64  `json:"height"`
	Value  uint64 `json:"value"`
}

// utxo is the implementation of the explorer's Utxo interface.
type utxo struct {
	UHash      string
	UIndex     uint32
	UValue     uint64
	UScript    []byte
	UAddress   string
	UConfirmed bool
}

func (u utxo) Hash() string      { return u.UHash }
func (u utxo) Index() uint32     { return u.UIndex }
func (u utxo) Value() uint64     { return u.UValue }
func (u utxo) Script() []byte    { return u.UScript }
func (u utxo) Address() string   { return u.UAddress }
func (u utxo) IsConfirmed() bool { return u.UConfirmed }
