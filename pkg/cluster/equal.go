package cluster

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// differ collects differences between two snapshots. With first set it stops at the first
// difference, which is all equality needs.
type differ struct {
	first bool
	diffs []string
}

func (d *differ) done() bool {
	return d.first && len(d.diffs) > 0
}

func (d *differ) addf(format string, args ...interface{}) {
	d.diffs = append(d.diffs, fmt.Sprintf(format, args...))
}

func (d *differ) trainers(path string, a, b *Trainer) {
	if !slices.Equal(a.accelerators, b.accelerators) {
		d.addf("%s: gpus %v != %v", path, a.accelerators, b.accelerators)
	}
	if a.endpoint != b.endpoint {
		d.addf("%s: endpoint %s != %s", path, a.endpoint, b.endpoint)
	}
	if a.rankInPod != b.rankInPod {
		d.addf("%s: rank_in_pod %d != %d", path, a.rankInPod, b.rankInPod)
	}
	if !equalOptional(a.globalRank, b.globalRank) {
		d.addf("%s: global_rank %s != %s", path, optionalInt(a.globalRank), optionalInt(b.globalRank))
	}
}

func (d *differ) pods(path string, a, b *Pod) {
	if !equalOptional(a.rank, b.rank) {
		d.addf("%s: rank %s != %s", path, optionalInt(a.rank), optionalInt(b.rank))
	}
	if a.id != b.id {
		d.addf("%s: id %s != %s", path, a.id, b.id)
	}
	if !slices.Equal(a.accelerators, b.accelerators) {
		d.addf("%s: gpus %v != %v", path, a.accelerators, b.accelerators)
	}
	if !slices.Equal(a.trainerPorts, b.trainerPorts) {
		d.addf("%s: trainer_ports %v != %v", path, a.trainerPorts, b.trainerPorts)
	}
	if a.addr != b.addr {
		d.addf("%s: addr %s != %s", path, a.addr, b.addr)
	}
	if a.port != b.port {
		d.addf("%s: port %d != %d", path, a.port, b.port)
	}
	if len(a.trainers) != len(b.trainers) {
		d.addf("%s: %d trainers != %d trainers", path, len(a.trainers), len(b.trainers))
		return
	}
	for i := range a.trainers {
		if d.done() {
			return
		}
		d.trainers(fmt.Sprintf("%s trainer %d", path, i), a.trainers[i], b.trainers[i])
	}
}

func (d *differ) clusters(a, b *Cluster) {
	if len(a.pods) != len(b.pods) {
		d.addf("%d pods != %d pods", len(a.pods), len(b.pods))
	} else {
		for i := range a.pods {
			if d.done() {
				return
			}
			d.pods(fmt.Sprintf("pod %d", i), a.pods[i], b.pods[i])
		}
	}
	if a.jobStage != b.jobStage {
		d.addf("job_stage %q != %q", a.jobStage, b.jobStage)
	}
}

func equalOptional(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Equal reports whether two trainers have the same accelerators, endpoint, rank_in_pod and
// global rank. Trainer ids are not compared.
func (t *Trainer) Equal(other *Trainer) bool {
	if t == nil || other == nil {
		return t == other
	}
	d := differ{first: true}
	d.trainers("trainer", t, other)
	return len(d.diffs) == 0
}

// Equal reports whether two pods have the same rank, id, accelerators, trainer ports, address,
// port and trainers. Status and stage are not compared.
func (p *Pod) Equal(other *Pod) bool {
	if p == nil || other == nil {
		return p == other
	}
	d := differ{first: true}
	d.pods("pod", p, other)
	return len(d.diffs) == 0
}

// Equal reports whether two clusters have the same job stage and pairwise equal pods. Pods are
// compared by position, so both clusters must already be in a canonical order.
func (c *Cluster) Equal(other *Cluster) bool {
	if c == nil || other == nil {
		return c == other
	}
	d := differ{first: true}
	d.clusters(c, other)
	return len(d.diffs) == 0
}

// Diff lists, in order, every difference Equal would find between c and other. It is empty
// exactly when the clusters are equal. A nil cluster compares as an empty one.
func (c *Cluster) Diff(other *Cluster) []string {
	if c == nil {
		c = &Cluster{}
	}
	if other == nil {
		other = &Cluster{}
	}
	var d differ
	d.clusters(c, other)
	return d.diffs
}
