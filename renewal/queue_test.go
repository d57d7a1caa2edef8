package renewal_test

import (
	"errors"
	"testing"

	"github.com/jrsteele09/go-session-client/renewal"
	"github.com/stretchr/testify/require"
)

func TestPendingQueue_Drain(t *testing.T) {
	t.Run("resolves in arrival order", func(t *testing.T) {
		var q renewal.PendingQueue
		var order []string
		for _, name := range []string{"a", "b", "c"} {
			q.Enqueue(
				func(token string) { order = append(order, name+":"+token) },
				func(err error) { t.Fatalf("unexpected reject: %v", err) },
			)
		}
		require.Equal(t, 3, q.Len())

		q.Drain("tok", nil)

		require.Equal(t, []string{"a:tok", "b:tok", "c:tok"}, order)
		require.Zero(t, q.Len())
	})

	t.Run("rejects everyone with the same error", func(t *testing.T) {
		var q renewal.PendingQueue
		boom := errors.New("boom")
		var got []error
		for range 2 {
			q.Enqueue(
				func(string) { t.Fatal("unexpected resolve") },
				func(err error) { got = append(got, err) },
			)
		}

		q.Drain("", boom)

		require.Equal(t, []error{boom, boom}, got)
		require.Zero(t, q.Len())
	})

	t.Run("empty queue", func(t *testing.T) {
		var q renewal.PendingQueue
		require.NotPanics(t, func() { q.Drain("tok", nil) })
	})
}
