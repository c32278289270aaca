package cluster

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedFetcher struct {
	nodes []Node
	err   error
}

func (f *fixedFetcher) Fetch() ([]Node, error) { return f.nodes, f.err }

func TestFetchCronPublishesSnapshots(t *testing.T) {
	ch := make(chan []Node, 1)
	f := &fixedFetcher{nodes: NewIdNodes(2)}
	c := NewFetchCron(f, 5*time.Millisecond, ch)
	defer c.Close()

	select {
	case nodes := <-ch:
		assert.Len(t, nodes, 2)
	case <-time.After(time.Second):
		t.Fatal("expected a snapshot before timeout")
	}
}

func TestFetchCronSkipsOnFetchError(t *testing.T) {
	ch := make(chan []Node)
	f := &fixedFetcher{err: errors.New("boom")}
	c := NewFetchCron(f, 5*time.Millisecond, ch)
	defer c.Close()

	select {
	case <-ch:
		t.Fatal("a failed fetch must not publish")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFetchCronCloseStopsPolling(t *testing.T) {
	ch := make(chan []Node, 10)
	f := &fixedFetcher{nodes: NewIdNodes(1)}
	c := NewFetchCron(f, 5*time.Millisecond, ch)
	require.NoError(t, c.Close())

	time.Sleep(20 * time.Millisecond)
	for len(ch) > 0 {
		<-ch
	}
	select {
	case <-ch:
		t.Fatal("no further snapshots after Close")
	case <-time.After(20 * time.Millisecond):
	}
}
