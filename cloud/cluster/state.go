package cluster

import (
	"sort"

	log "github.com/sirupsen/logrus"
)

// State is a Cluster's membership at a point in time, plus the diffing
// logic that turns one snapshot into the NodeUpdates needed to bring a
// subscriber that last saw the previous snapshot up to date.
type State struct {
	Nodes       map[NodeId]Node
	nopCheckCnt int
}

func MakeState(nodes []Node) *State {
	s := &State{Nodes: make(map[NodeId]Node)}
	for _, n := range nodes {
		s.Nodes[n.Id()] = n
	}
	return s
}

// SetAndDiff replaces the state's membership with newNodes and returns the
// NodeUpdates needed to reconcile a subscriber that last saw the old
// membership.
func (s *State) SetAndDiff(newNodes []Node) []NodeUpdate {
	oldLen := len(s.Nodes)
	next := make(map[NodeId]Node, len(newNodes))
	added := []Node{}
	for _, n := range newNodes {
		next[n.Id()] = n
		if _, ok := s.Nodes[n.Id()]; !ok {
			added = append(added, n)
		}
	}
	removed := []Node{}
	for id, n := range s.Nodes {
		if _, ok := next[id]; !ok {
			removed = append(removed, n)
		}
	}
	sort.Sort(NodeSorter(added))
	sort.Sort(NodeSorter(removed))

	updates := make([]NodeUpdate, 0, len(added)+len(removed))
	for _, n := range added {
		log.Infof("node added: %s", n)
		updates = append(updates, NewAdd(n))
	}
	for _, n := range removed {
		log.Infof("node removed: %s", n)
		updates = append(updates, NewRemove(n.Id()))
	}

	// mirrors the teacher's own debugging aid for diagnosing a cluster
	// fetch loop that's stalled silently: a run of no-op checks shows up
	// as nopCheckCnt climbing instead of simply looking idle.
	if len(added) > 0 || len(removed) > 0 {
		log.Infof("cluster membership changed: %d added, %d removed (was %d nodes, now %d; %d no-op checks before this one)",
			len(added), len(removed), oldLen, len(newNodes), s.nopCheckCnt)
		s.nopCheckCnt = 0
	} else {
		s.nopCheckCnt++
	}

	s.Nodes = next
	return updates
}

// FilterAndUpdate applies a batch of incremental updates, as delivered on a
// Subscription's Updates channel, to the state's membership in order.
func (s *State) FilterAndUpdate(updates []NodeUpdate) {
	for _, u := range updates {
		switch u.UpdateType {
		case NodeAdded:
			s.Nodes[u.Id] = u.Node
		case NodeRemoved:
			delete(s.Nodes, u.Id)
		}
	}
}

// Current returns a defensive, deterministically-ordered copy of the
// membership.
func (s *State) Current() []Node {
	r := make([]Node, 0, len(s.Nodes))
	for _, n := range s.Nodes {
		r = append(r, n)
	}
	sort.Sort(NodeSorter(r))
	return r
}
