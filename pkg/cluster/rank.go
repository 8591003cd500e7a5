package cluster

import (
	"github.com/pkg/errors"
)

// RankPolicy selects how trainer global ranks are derived when a whole cluster is ranked.
type RankPolicy string

const (
	// CumulativeRanks numbers trainers consecutively across pods: a trainer's global rank is the
	// number of trainers on all preceding pods plus its rank_in_pod. Ranks are cluster-unique.
	CumulativeRanks RankPolicy = "cumulative"
	// LiteralRanks gives a trainer the global rank pod rank + rank_in_pod, as AssignPodRank
	// does. Ranks collide once more than one pod runs several trainers; it exists for registries
	// that expect this numbering.
	LiteralRanks RankPolicy = "literal"
)

// ParseRankPolicy parses a RankPolicy name.
func ParseRankPolicy(s string) (RankPolicy, error) {
	switch p := RankPolicy(s); p {
	case CumulativeRanks, LiteralRanks:
		return p, nil
	default:
		return "", errors.Errorf("unknown rank policy %q (expected %q or %q)",
			s, CumulativeRanks, LiteralRanks)
	}
}

// AssignPodRank sets the pod's rank and gives the trainer at position i the global rank
// rank+i. Only the pod and its own trainers are modified.
func AssignPodRank(p *Pod, rank int) {
	assignRanks(p, rank, rank)
}

func assignRanks(p *Pod, rank, base int) {
	r := rank
	p.rank = &r
	for i, t := range p.trainers {
		g := base + i
		t.globalRank = &g
	}
}

// AssignRanks ranks every pod by its position in the cluster and derives trainer global ranks
// with the given policy.
func (c *Cluster) AssignRanks(policy RankPolicy) {
	offset := 0
	for i, p := range c.pods {
		switch policy {
		case LiteralRanks:
			assignRanks(p, i, i)
		default:
			assignRanks(p, i, offset)
		}
		offset += len(p.trainers)
	}
}
