package cluster

// Cluster represents a cluster of Nodes and lets callers observe membership
// changes.
type Cluster interface {
	// Members returns the current members.
	Members() []Node
	// Subscribe subscribes to changes to the cluster.
	Subscribe() Subscription
	// Close stops monitoring this cluster.
	Close() error
}

type simpleCluster struct {
	state    *State
	reqCh    chan interface{}
	updateCh chan []NodeUpdate
	stateCh  chan []Node
	subs     []chan []NodeUpdate
}

// NewCluster starts a Cluster seeded with the given initial membership.
// updateCh delivers incremental adds/removes directly; stateCh delivers full
// membership snapshots (as produced by a FetchCron) which NewCluster diffs
// against its current view itself. Either channel may be nil if that source
// of updates isn't used.
func NewCluster(initial []Node, updateCh chan []NodeUpdate, stateCh chan []Node) Cluster {
	c := &simpleCluster{
		state:    MakeState(initial),
		reqCh:    make(chan interface{}),
		updateCh: updateCh,
		stateCh:  stateCh,
	}
	go c.loop()
	return c
}

func (c *simpleCluster) Members() []Node {
	ch := make(chan []Node)
	c.reqCh <- ch
	return <-ch
}

func (c *simpleCluster) Subscribe() Subscription {
	ch := make(chan Subscription)
	c.reqCh <- ch
	return <-ch
}

func (c *simpleCluster) Close() error {
	close(c.reqCh)
	return nil
}

func (c *simpleCluster) done() bool {
	return c.updateCh == nil && c.stateCh == nil && c.reqCh == nil
}

func (c *simpleCluster) loop() {
	for !c.done() {
		select {
		case updates, ok := <-c.updateCh:
			if !ok {
				c.updateCh = nil
				continue
			}
			c.state.FilterAndUpdate(updates)
			c.broadcast(updates)
		case nodes, ok := <-c.stateCh:
			if !ok {
				c.stateCh = nil
				continue
			}
			if updates := c.state.SetAndDiff(nodes); len(updates) > 0 {
				c.broadcast(updates)
			}
		case req, ok := <-c.reqCh:
			if !ok {
				c.reqCh = nil
				continue
			}
			c.handleReq(req)
		}
	}
	for _, sub := range c.subs {
		close(sub)
	}
}

func (c *simpleCluster) broadcast(updates []NodeUpdate) {
	for _, sub := range c.subs {
		sub <- updates
	}
}

func (c *simpleCluster) handleReq(req interface{}) {
	switch req := req.(type) {
	case chan []Node:
		// Members()
		req <- c.state.Current()
	case chan Subscription:
		// Subscribe()
		ch := make(chan []NodeUpdate)
		s := makeSubscription(c.state.Current(), c, ch)
		c.subs = append(c.subs, ch)
		req <- s
	case chan []NodeUpdate:
		// a Subscription's Closer ran
		for i, sub := range c.subs {
			if sub == req {
				c.subs = append(c.subs[0:i], c.subs[i+1:]...)
				close(req)
				break
			}
		}
	}
}

func (c *simpleCluster) closeSubscription(s *subscriber) {
	c.reqCh <- s.inCh
}
