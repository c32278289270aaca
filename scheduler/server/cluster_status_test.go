package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cc "github.com/capshare/scheduler/cloud/cluster"
	"github.com/capshare/scheduler/scheduler/domain"
)

func TestClusterStatusReflectsInitialMembers(t *testing.T) {
	nodes := cc.NewIdNodes(3)
	cluster := cc.NewCluster(nodes, nil, nil)
	defer cluster.Close()

	cs, err := NewClusterStatus(cluster, WorkerSlotConfig{MaxMapSlots: 2, MaxReduceSlots: 1})
	require.NoError(t, err)
	defer cs.Close()

	assert.Equal(t, 6, cs.GetMaxMapTasks())
	assert.Equal(t, 3, cs.GetMaxReduceTasks())
	assert.Len(t, cs.GetTaskTrackers(), 3)
}

func TestClusterStatusTracksMembershipUpdates(t *testing.T) {
	updateCh := make(chan []cc.NodeUpdate)
	cluster := cc.NewCluster(nil, updateCh, nil)
	defer cluster.Close()

	cs, err := NewClusterStatus(cluster, WorkerSlotConfig{MaxMapSlots: 1, MaxReduceSlots: 1})
	require.NoError(t, err)
	defer cs.Close()

	node := cc.NewIdNode("node1")
	updateCh <- []cc.NodeUpdate{cc.NewAdd(node)}
	require.Eventually(t, func() bool { return cs.GetMaxMapTasks() == 1 }, time.Second, 5*time.Millisecond)

	updateCh <- []cc.NodeUpdate{cc.NewRemove(node.Id())}
	require.Eventually(t, func() bool { return cs.GetMaxMapTasks() == 0 }, time.Second, 5*time.Millisecond)
}

func TestClusterStatusOfflineAndReinstateWorker(t *testing.T) {
	nodes := cc.NewIdNodes(1)
	cluster := cc.NewCluster(nodes, nil, nil)
	defer cluster.Close()

	cs, err := NewClusterStatus(cluster, WorkerSlotConfig{MaxMapSlots: 1, MaxReduceSlots: 1})
	require.NoError(t, err)
	defer cs.Close()

	id := string(nodes[0].Id())
	require.NoError(t, cs.OfflineWorker(domain.OfflineWorkerReq{ID: id, Requestor: "op"}))
	assert.Equal(t, 0, cs.GetMaxMapTasks())

	require.NoError(t, cs.ReinstateWorker(domain.ReinstateWorkerReq{ID: id, Requestor: "op"}))
	assert.Equal(t, 1, cs.GetMaxMapTasks())

	assert.Error(t, cs.OfflineWorker(domain.OfflineWorkerReq{ID: "nonexistent"}))
	assert.Error(t, cs.ReinstateWorker(domain.ReinstateWorkerReq{ID: "nonexistent"}))
}
