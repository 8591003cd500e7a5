// Package registry aggregates the pods of a job into cluster snapshots.
package registry

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/wangxicoding/edl/pkg/cluster"
)

// Registry tracks the pods that joined a job, in join order. Every mutation publishes a new
// immutable snapshot; readers never observe a partially updated cluster.
type Registry struct {
	mu       sync.Mutex
	members  *linkedhashmap.Map // cluster.PodID -> *cluster.Pod
	jobStage string

	published atomic.Pointer[cluster.Cluster]
	syslog    *log.Entry
}

// New returns an empty registry.
func New() *Registry {
	r := &Registry{
		members: linkedhashmap.New(),
		syslog:  log.WithField("component", "registry"),
	}
	empty, _ := cluster.NewCluster(nil, "")
	r.published.Store(empty)
	return r
}

// Register adds a pod, or replaces the member with the same id in place. It fails if the pod is
// invalid, lacks an address or port, or one of its trainer endpoints is used by another member.
// Members always have a complete endpoint, which launch plans rely on.
func (r *Registry) Register(p *cluster.Pod) error {
	if _, err := cluster.NewCluster([]*cluster.Pod{p}, ""); err != nil {
		return errors.Wrapf(err, "pod %s is invalid", p.ID())
	}
	if _, err := p.Endpoint(); err != nil {
		return errors.Wrapf(err, "pod %s cannot be registered", p.ID())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkEndpoints(p); err != nil {
		return err
	}
	_, replaced := r.members.Get(p.ID())
	r.members.Put(p.ID(), p.Clone())
	if err := r.publish(); err != nil {
		return err
	}

	r.syslog.WithField("pod-id", p.ID()).
		WithField("replaced", replaced).
		Infof("pod registered: %s", p)
	return nil
}

func (r *Registry) checkEndpoints(p *cluster.Pod) error {
	owners := make(map[string]cluster.PodID)
	for _, v := range r.members.Values() {
		member := v.(*cluster.Pod)
		if member.ID() == p.ID() {
			continue
		}
		for _, ep := range endpoints(member) {
			owners[ep] = member.ID()
		}
	}
	for _, ep := range endpoints(p) {
		if owner, ok := owners[ep]; ok {
			return cluster.DuplicateEndpointError{Endpoint: ep, Pods: [2]cluster.PodID{owner, p.ID()}}
		}
	}
	return nil
}

func endpoints(p *cluster.Pod) []string {
	eps := make([]string, 0, p.TrainerCount())
	for _, t := range p.Trainers() {
		eps = append(eps, t.Endpoint())
	}
	return eps
}

// Deregister removes a pod. It reports whether the pod was a member.
func (r *Registry) Deregister(id cluster.PodID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members.Get(id); !ok {
		return false, nil
	}
	r.members.Remove(id)
	if err := r.publish(); err != nil {
		return true, err
	}
	r.syslog.WithField("pod-id", id).Info("pod deregistered")
	return true, nil
}

// SetJobStage sets the job-wide stage of future snapshots.
func (r *Registry) SetJobStage(stage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobStage = stage
	return r.publish()
}

// Len returns the number of members.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members.Size()
}

// Snapshot returns a copy of the current membership as a cluster, pods in join order and
// unranked as registered.
func (r *Registry) Snapshot() *cluster.Cluster {
	return r.published.Load().Clone()
}

// Fetch implements reconcile.Source.
func (r *Registry) Fetch(ctx context.Context) (*cluster.Cluster, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.Snapshot(), nil
}

// publish must be called with mu held.
func (r *Registry) publish() error {
	pods := make([]*cluster.Pod, 0, r.members.Size())
	for _, v := range r.members.Values() {
		pods = append(pods, v.(*cluster.Pod).Clone())
	}
	c, err := cluster.NewCluster(pods, r.jobStage)
	if err != nil {
		return errors.Wrap(err, "registry membership is inconsistent")
	}
	r.published.Store(c)
	return nil
}
