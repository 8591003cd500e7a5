package reconcile

import (
	"sort"

	"github.com/wangxicoding/edl/pkg/cluster"
)

// Canonicalize orders next for comparison with prev. Pods that prev already has keep their
// relative order from prev; pods that joined since follow in the order next lists them. The
// result shares next's pods.
func Canonicalize(prev, next *cluster.Cluster) (*cluster.Cluster, error) {
	position := make(map[cluster.PodID]int)
	if prev != nil {
		for i, p := range prev.Pods() {
			position[p.ID()] = i
		}
	}

	var known, joined []*cluster.Pod
	for _, p := range next.Pods() {
		if _, ok := position[p.ID()]; ok {
			known = append(known, p)
		} else {
			joined = append(joined, p)
		}
	}
	sort.SliceStable(known, func(i, j int) bool {
		return position[known[i].ID()] < position[known[j].ID()]
	})
	return cluster.NewCluster(append(known, joined...), next.JobStage())
}

// membership returns the pods of next that prev lacks and the pods of prev that next lacks.
func membership(prev, next *cluster.Cluster) (joined, left []cluster.PodID) {
	for _, p := range next.Pods() {
		if _, ok := prev.FindPodByID(p.ID()); !ok {
			joined = append(joined, p.ID())
		}
	}
	for _, p := range prev.Pods() {
		if _, ok := next.FindPodByID(p.ID()); !ok {
			left = append(left, p.ID())
		}
	}
	return joined, left
}
