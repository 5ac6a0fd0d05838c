package ports

import "context"

// Event kinds used by the coinjoin protocol on the relay network.
const (
	// KindPoolAdvertisement carries a pool advertisement (protocol kind 2022).
	KindPoolAdvertisement = 2022
	// KindPoolMessage carries a pool message (commitment, freeze, signature),
	// tagged with the pool id it refers to.
	KindPoolMessage = 2023
)

// PoolTagName is the event tag binding a pool message to its pool id.
const PoolTagName = "e"

// SignedEvent is an opaque signed payload observed on, or published to, the
// relay network. Signature creation and verification belong to the transport
// implementation; the core only relies on the content schema.
type SignedEvent struct {
	ID        string
	PubKey    string
	CreatedAt int64
	Kind      int
	Tags      [][]string
	Content   string
	Sig       string
}

// PoolID extracts the pool id tag of the event, if any.
func (e SignedEvent) PoolID() string {
	for _, tag := range e.Tags {
		if len(tag) >= 2 && tag[0] == PoolTagName {
			return tag[1]
		}
	}
	return ""
}

// Filter selects the events a subscription delivers.
type Filter struct {
	Kinds []int
	// Since is the lower bound (unix seconds) on event creation time.
	Since int64
	// PoolID, if set, restricts delivery to events tagged with this pool.
	PoolID string
}

// Subscription is a stream of events matching a filter. The channel is closed
// when the subscription terminates.
type Subscription interface {
	Events() <-chan SignedEvent
	Close()
}

// RelayBus is the publish/subscribe primitive over the signed-event relay
// network. Implementations own an ephemeral identity used to sign published
// events.
type RelayBus interface {
	// PublicKey returns the hex-encoded ephemeral public key of this bus.
	PublicKey() string
	// Publish signs and publishes an event.
	Publish(ctx context.Context, kind int, tags [][]string, content string) error
	// Subscribe delivers events matching the filter until ctx is done or the
	// subscription is closed.
	Subscribe(ctx context.Context, filter Filter) (Subscription, error)
	// Close tears down the relay connection.
	Close() error
}

// PoolTag builds the tag list binding a pool message to its pool.
func PoolTag(poolID string) [][]string {
	return [][]string{{PoolTagName, poolID}}
}
