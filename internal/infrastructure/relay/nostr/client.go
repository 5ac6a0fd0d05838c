package nostr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/thanhpk/randstr"
	"go.uber.org/ratelimit"

	"github.com/joinstr-network/joinstr-daemon/internal/core/ports"
)

const (
	// publishRatePerSecond caps outgoing events so a busy session does not get
	// throttled by the relay.
	publishRatePerSecond = 4
	// publishAckTimeout bounds the wait for a command result. Relays are not
	// required to send one.
	publishAckTimeout = 5 * time.Second

	subscriptionBuffer = 128
)

// Client is a relay bus over a single websocket connection. Every client owns
// a fresh ephemeral keypair, so relay-visible identities never outlive a
// session.
type Client struct {
	conn    *websocket.Conn
	privKey *btcec.PrivateKey
	pubKey  string
	limiter ratelimit.Limiter

	writeMtx sync.Mutex

	subsMtx sync.Mutex
	subs    map[string]*subscription

	pendingMtx sync.Mutex
	pending    map[string]chan error

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient connects to the relay at the given websocket url and generates an
// ephemeral identity for the connection lifetime.
func NewClient(ctx context.Context, relayURL string) (*Client, error) {
	privKey, pubKey, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, relayURL, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to relay %s: %w", relayURL, err)
	}

	c := &Client{
		conn:    conn,
		privKey: privKey,
		pubKey:  pubKey,
		limiter: ratelimit.New(publishRatePerSecond),
		subs:    make(map[string]*subscription),
		pending: make(map[string]chan error),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) PublicKey() string {
	return c.pubKey
}

// Publish signs and sends an event, then waits for the relay's command result
// if one arrives within the ack timeout.
func (c *Client) Publish(
	ctx context.Context, kind int, tags [][]string, content string,
) error {
	ev, err := NewEvent(c.privKey, kind, tags, content, time.Now())
	if err != nil {
		return err
	}

	ack := make(chan error, 1)
	c.pendingMtx.Lock()
	c.pending[ev.ID] = ack
	c.pendingMtx.Unlock()
	defer func() {
		c.pendingMtx.Lock()
		delete(c.pending, ev.ID)
		c.pendingMtx.Unlock()
	}()

	c.limiter.Take()
	if err := c.write([]interface{}{"EVENT", ev}); err != nil {
		return err
	}

	select {
	case err := <-ack:
		return err
	case <-time.After(publishAckTimeout):
		// No command result, assume accepted.
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return errors.New("relay connection closed")
	}
}

// Subscribe opens a relay subscription for the given filter. The subscription
// is torn down when ctx is done or Close is called on it.
func (c *Client) Subscribe(
	ctx context.Context, filter ports.Filter,
) (ports.Subscription, error) {
	sub := &subscription{
		id:     randstr.Hex(16),
		client: c,
		ch:     make(chan ports.SignedEvent, subscriptionBuffer),
	}
	c.subsMtx.Lock()
	c.subs[sub.id] = sub
	c.subsMtx.Unlock()

	if err := c.write([]interface{}{
		"REQ", sub.id, newWireFilter(filter),
	}); err != nil {
		c.subsMtx.Lock()
		delete(c.subs, sub.id)
		c.subsMtx.Unlock()
		return nil, err
	}

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-c.done:
		}
	}()
	return sub, nil
}

// Close tears down the connection and every open subscription.
func (c *Client) Close() error {
	err := c.conn.Close()
	c.teardown()
	return err
}

func (c *Client) write(payload interface{}) error {
	c.writeMtx.Lock()
	defer c.writeMtx.Unlock()
	return c.conn.WriteJSON(payload)
}

func (c *Client) readLoop() {
	defer c.teardown()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var frame []json.RawMessage
		if err := json.Unmarshal(raw, &frame); err != nil || len(frame) < 2 {
			continue
		}
		var label string
		if err := json.Unmarshal(frame[0], &label); err != nil {
			continue
		}

		switch label {
		case "EVENT":
			if len(frame) < 3 {
				continue
			}
			var subID string
			if err := json.Unmarshal(frame[1], &subID); err != nil {
				continue
			}
			var ev Event
			if err := json.Unmarshal(frame[2], &ev); err != nil {
				continue
			}
			if err := ev.Verify(); err != nil {
				log.WithError(err).Debug("dropping relay event with bad signature")
				continue
			}
			c.dispatch(subID, ev)

		case "OK":
			if len(frame) < 3 {
				continue
			}
			var eventID string
			var accepted bool
			if err := json.Unmarshal(frame[1], &eventID); err != nil {
				continue
			}
			if err := json.Unmarshal(frame[2], &accepted); err != nil {
				continue
			}
			reason := ""
			if len(frame) >= 4 {
				json.Unmarshal(frame[3], &reason) // nolint
			}
			c.resolveAck(eventID, accepted, reason)

		case "EOSE":
			// End of stored events, live events follow on the same sub.

		case "NOTICE":
			var notice string
			json.Unmarshal(frame[1], &notice) // nolint
			log.WithField("notice", notice).Debug("relay notice")
		}
	}
}

func (c *Client) dispatch(subID string, ev Event) {
	c.subsMtx.Lock()
	defer c.subsMtx.Unlock()
	sub, ok := c.subs[subID]
	if !ok {
		return
	}
	select {
	case sub.ch <- ports.SignedEvent{
		ID:        ev.ID,
		PubKey:    ev.PubKey,
		CreatedAt: ev.CreatedAt,
		Kind:      ev.Kind,
		Tags:      ev.Tags,
		Content:   ev.Content,
		Sig:       ev.Sig,
	}:
	default:
		log.WithField("subscription", subID).Warn("subscription buffer full, dropping event")
	}
}

func (c *Client) resolveAck(eventID string, accepted bool, reason string) {
	c.pendingMtx.Lock()
	ack, ok := c.pending[eventID]
	c.pendingMtx.Unlock()
	if !ok {
		return
	}
	var err error
	if !accepted {
		err = fmt.Errorf("relay rejected event: %s", reason)
	}
	select {
	case ack <- err:
	default:
	}
}

func (c *Client) teardown() {
	c.closeOnce.Do(func() {
		close(c.done)

		c.subsMtx.Lock()
		for id, sub := range c.subs {
			delete(c.subs, id)
			close(sub.ch)
		}
		c.subsMtx.Unlock()

		c.pendingMtx.Lock()
		for id, ack := range c.pending {
			delete(c.pending, id)
			select {
			case ack <- errors.New("relay connection closed"):
			default:
			}
		}
		c.pendingMtx.Unlock()
	})
}

type subscription struct {
	id     string
	client *Client
	ch     chan ports.SignedEvent
	once   sync.Once
}

func (s *subscription) Events() <-chan ports.SignedEvent {
	return s.ch
}

func (s *subscription) Close() {
	s.once.Do(func() {
		s.client.subsMtx.Lock()
		_, open := s.client.subs[s.id]
		delete(s.client.subs, s.id)
		if open {
			close(s.ch)
		}
		s.client.subsMtx.Unlock()

		select {
		case <-s.client.done:
		default:
			// Best effort, the connection may be gone already.
			s.client.write([]interface{}{"CLOSE", s.id}) // nolint
		}
	})
}

// wireFilter is the NIP-01 filter shape for a REQ frame.
type wireFilter struct {
	Kinds []int    `json:"kinds,omitempty"`
	Since int64    `json:"since,omitempty"`
	ETags []string `json:"#e,omitempty"`
}

func newWireFilter(f ports.Filter) wireFilter {
	wf := wireFilter{Kinds: f.Kinds, Since: f.Since}
	if f.PoolID != "" {
		wf.ETags = []string{f.PoolID}
	}
	return wf
}
