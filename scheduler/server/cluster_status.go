package server

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	cc "github.com/capshare/scheduler/cloud/cluster"
	"github.com/capshare/scheduler/scheduler/domain"
)

// WorkerSlotConfig is the uniform per-worker slot capacity every task
// tracker in the cluster is assumed to offer; a real deployment would
// read this per-node, but the spec's Worker data model only asks for
// the counts themselves, not per-node heterogeneity.
type WorkerSlotConfig struct {
	MaxMapSlots    int
	MaxReduceSlots int
}

// ClusterStatus is this port's ClusterStatus collaborator (§6 outbound
// interface): it tracks task tracker membership from a cloud/cluster
// Cluster and layers on the operator-facing offline/reinstate bookkeeping
// from SPEC_FULL §12, grounded on the teacher's clusterState subscriber
// loop.
type ClusterStatus struct {
	mu sync.Mutex

	slots WorkerSlotConfig

	workers  map[cc.NodeId]*domain.Worker // healthy, schedulable
	offlined map[cc.NodeId]*domain.Worker // administratively blacklisted

	sub  cc.Subscription
	done chan struct{}
}

func NewClusterStatus(cluster cc.Cluster, slots WorkerSlotConfig) (*ClusterStatus, error) {
	sub := cluster.Subscribe()
	cs := &ClusterStatus{
		slots:    slots,
		workers:  make(map[cc.NodeId]*domain.Worker),
		offlined: make(map[cc.NodeId]*domain.Worker),
		sub:      sub,
		done:     make(chan struct{}),
	}
	for _, n := range sub.InitialMembers {
		cs.addNode(n)
	}
	go cs.loop()
	return cs, nil
}

func (cs *ClusterStatus) loop() {
	for {
		select {
		case updates, ok := <-cs.sub.Updates:
			if !ok {
				return
			}
			cs.mu.Lock()
			for _, u := range updates {
				switch u.UpdateType {
				case cc.NodeAdded:
					cs.addNode(u.Node)
				case cc.NodeRemoved:
					cs.removeNode(u.Id)
				}
			}
			cs.mu.Unlock()
		case <-cs.done:
			cs.sub.Closer.Close()
			return
		}
	}
}

func (cs *ClusterStatus) addNode(n cc.Node) {
	w := &domain.Worker{
		ID:             string(n.Id()),
		Host:           n.Status(),
		MaxMapSlots:    cs.slots.MaxMapSlots,
		MaxReduceSlots: cs.slots.MaxReduceSlots,
	}
	if w.Host == "" {
		w.Host = string(n.Id())
	}
	cs.workers[n.Id()] = w
	log.WithFields(log.Fields{"worker": w.ID}).Info("worker joined cluster")
}

func (cs *ClusterStatus) removeNode(id cc.NodeId) {
	delete(cs.workers, id)
	delete(cs.offlined, id)
	log.WithFields(log.Fields{"worker": id}).Info("worker left cluster")
}

// Close stops the membership subscription.
func (cs *ClusterStatus) Close() error {
	close(cs.done)
	return nil
}

// GetTaskTrackers returns every schedulable (non-offlined) worker.
func (cs *ClusterStatus) GetTaskTrackers() []*domain.Worker {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	workers := make([]*domain.Worker, 0, len(cs.workers))
	for _, w := range cs.workers {
		workers = append(workers, w)
	}
	return workers
}

// GetMaxMapTasks returns the cluster-wide map slot capacity, summed over
// schedulable workers.
func (cs *ClusterStatus) GetMaxMapTasks() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	total := 0
	for _, w := range cs.workers {
		total += w.MaxMapSlots
	}
	return total
}

// GetMaxReduceTasks returns the cluster-wide reduce slot capacity,
// summed over schedulable workers.
func (cs *ClusterStatus) GetMaxReduceTasks() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	total := 0
	for _, w := range cs.workers {
		total += w.MaxReduceSlots
	}
	return total
}

// GetNumberOfUniqueHosts returns the distinct Host count across
// schedulable workers. The Dispatcher does not use it to size the
// off-switch opportunity budget; it passes len(GetTaskTrackers()).
func (cs *ClusterStatus) GetNumberOfUniqueHosts() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	hosts := make(map[string]struct{}, len(cs.workers))
	for _, w := range cs.workers {
		hosts[w.Host] = struct{}{}
	}
	return len(hosts)
}

// OfflineWorker administratively removes a worker from scheduling
// without waiting for the cluster to report it gone (SPEC_FULL §12).
func (cs *ClusterStatus) OfflineWorker(req domain.OfflineWorkerReq) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	id := cc.NodeId(req.ID)
	w, ok := cs.workers[id]
	if !ok {
		return fmt.Errorf("no such worker: %s", req.ID)
	}
	delete(cs.workers, id)
	cs.offlined[id] = w
	log.WithFields(log.Fields{"worker": req.ID, "requestor": req.Requestor}).Info("worker taken offline")
	return nil
}

// ReinstateWorker restores a previously offlined worker to scheduling.
func (cs *ClusterStatus) ReinstateWorker(req domain.ReinstateWorkerReq) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	id := cc.NodeId(req.ID)
	w, ok := cs.offlined[id]
	if !ok {
		return fmt.Errorf("worker not offline: %s", req.ID)
	}
	delete(cs.offlined, id)
	cs.workers[id] = w
	log.WithFields(log.Fields{"worker": req.ID, "requestor": req.Requestor}).Info("worker reinstated")
	return nil
}
