package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueGetInOrder(t *testing.T) {
	q := NewQueue[string]()
	q.Put("a")
	q.Put("b")
	q.Put("c")

	ctx := context.Background()
	for _, want := range []string{"a", "b", "c"} {
		got, err := q.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueueGetBlocksUntilPut(t *testing.T) {
	q := NewQueue[int]()

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Put(42)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := q.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestQueueGetCancelled(t *testing.T) {
	q := NewQueue[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := q.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueReadyAndDrain(t *testing.T) {
	q := NewQueue[int]()
	q.Put(1)
	q.Put(2)

	select {
	case <-q.Ready():
	case <-time.After(time.Second):
		t.Fatal("ready signal not raised")
	}
	assert.Equal(t, []int{1, 2}, q.Drain())
	assert.Nil(t, q.Drain())
}

func TestQueueClose(t *testing.T) {
	q := NewQueue[int]()
	q.Put(1)
	q.Close()
	q.Put(2)
	assert.Equal(t, 0, q.Len())
	assert.Nil(t, q.Drain())
}
