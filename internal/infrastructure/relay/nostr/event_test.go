package nostr_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joinstr-network/joinstr-daemon/internal/infrastructure/relay/nostr"
)

func TestNewEvent(t *testing.T) {
	t.Parallel()

	privKey, pubKey, err := nostr.GenerateKey()
	require.NoError(t, err)
	require.Len(t, pubKey, 64)

	ev, err := nostr.NewEvent(
		privKey, 2022, [][]string{{"e", "abc"}}, `{"hello":"world"}`, time.Now(),
	)
	require.NoError(t, err)
	require.Equal(t, pubKey, ev.PubKey)
	require.Len(t, ev.ID, 64)
	require.Len(t, ev.Sig, 128)
	require.NoError(t, ev.Verify())
}

func TestEventVerifyRejectsTampering(t *testing.T) {
	t.Parallel()

	privKey, _, err := nostr.GenerateKey()
	require.NoError(t, err)

	ev, err := nostr.NewEvent(privKey, 2023, nil, "payload", time.Now())
	require.NoError(t, err)
	require.NoError(t, ev.Verify())

	t.Run("tampered_content", func(t *testing.T) {
		tampered := *ev
		tampered.Content = "other payload"
		require.ErrorIs(t, tampered.Verify(), nostr.ErrInvalidEvent)
	})

	t.Run("tampered_created_at", func(t *testing.T) {
		tampered := *ev
		tampered.CreatedAt++
		require.ErrorIs(t, tampered.Verify(), nostr.ErrInvalidEvent)
	})

	t.Run("foreign_author", func(t *testing.T) {
		_, otherPub, err := nostr.GenerateKey()
		require.NoError(t, err)
		tampered := *ev
		tampered.PubKey = otherPub
		require.ErrorIs(t, tampered.Verify(), nostr.ErrInvalidEvent)
	})

	t.Run("garbage_signature", func(t *testing.T) {
		tampered := *ev
		tampered.Sig = "zz"
		require.ErrorIs(t, tampered.Verify(), nostr.ErrInvalidEvent)
	})
}

func TestEventIDIgnoresSignature(t *testing.T) {
	t.Parallel()

	privKey, _, err := nostr.GenerateKey()
	require.NoError(t, err)

	at := time.Unix(1700000000, 0)
	ev1, err := nostr.NewEvent(privKey, 2022, nil, "same", at)
	require.NoError(t, err)
	ev2, err := nostr.NewEvent(privKey, 2022, nil, "same", at)
	require.NoError(t, err)

	// The content-addressed id depends only on the event fields.
	require.Equal(t, ev1.ID, ev2.ID)
}
