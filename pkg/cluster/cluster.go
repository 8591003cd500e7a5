package cluster

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/exp/slices"
)

// Cluster is a snapshot of a job's topology: its pods in rank order and a job-wide stage marker.
// A Cluster is rebuilt on every membership change rather than patched; the only in-place
// mutations are rank assignment and status or stage updates.
type Cluster struct {
	pods     []*Pod
	jobStage string
}

// NewCluster assembles pods, in the given order, into a validated cluster. The cluster takes
// ownership of the pods.
func NewCluster(pods []*Pod, jobStage string) (*Cluster, error) {
	c := &Cluster{pods: slices.Clone(pods), jobStage: jobStage}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Pods returns the cluster's pods in order. The slice is a copy; the pods are shared.
func (c *Cluster) Pods() []*Pod {
	return slices.Clone(c.pods)
}

// JobStage returns the job-wide coordination marker.
func (c *Cluster) JobStage() string {
	return c.jobStage
}

// SetJobStage sets the job-wide coordination marker.
func (c *Cluster) SetJobStage(stage string) {
	c.jobStage = stage
}

// WorldSize returns the number of trainers across all pods.
func (c *Cluster) WorldSize() int {
	n := 0
	for _, p := range c.pods {
		n += len(p.trainers)
	}
	return n
}

// PodCount returns the number of pods.
func (c *Cluster) PodCount() int {
	return len(c.pods)
}

// TrainerEndpoints returns every trainer endpoint, pod by pod.
func (c *Cluster) TrainerEndpoints() []string {
	var eps []string
	for _, p := range c.pods {
		for _, t := range p.trainers {
			eps = append(eps, t.endpoint)
		}
	}
	return eps
}

// PodEndpoints returns the address:port of every pod. It fails with IncompletePodError if any
// pod lacks an address or a port.
func (c *Cluster) PodEndpoints() ([]string, error) {
	eps := make([]string, 0, len(c.pods))
	for _, p := range c.pods {
		ep, err := p.Endpoint()
		if err != nil {
			return nil, err
		}
		eps = append(eps, ep)
	}
	return eps, nil
}

// FindPodByID returns the pod with the given id, if the cluster has one.
func (c *Cluster) FindPodByID(id PodID) (*Pod, bool) {
	for _, p := range c.pods {
		if p.id == id {
			return p, true
		}
	}
	return nil, false
}

// MasterEndpoint returns the endpoint of the first pod. This is positional: callers that need
// the same master across snapshots must keep the pod order stable by identity.
func (c *Cluster) MasterEndpoint() (string, error) {
	if len(c.pods) == 0 {
		return "", ErrEmptyCluster
	}
	return c.pods[0].Endpoint()
}

// Clone returns a deep copy of the cluster.
func (c *Cluster) Clone() *Cluster {
	pods := make([]*Pod, 0, len(c.pods))
	for _, p := range c.pods {
		pods = append(pods, p.Clone())
	}
	return &Cluster{pods: pods, jobStage: c.jobStage}
}

// Validate checks every pod and that no two trainers in the cluster share an endpoint.
func (c *Cluster) Validate() error {
	var errs *multierror.Error
	owners := make(map[string]PodID)
	for _, p := range c.pods {
		if err := p.Validate(); err != nil {
			errs = multierror.Append(errs, err)
		}
		for _, t := range p.trainers {
			if owner, ok := owners[t.endpoint]; ok {
				errs = multierror.Append(errs, DuplicateEndpointError{
					Endpoint: t.endpoint,
					Pods:     [2]PodID{owner, p.id},
				})
				continue
			}
			owners[t.endpoint] = p.id
		}
	}
	return errs.ErrorOrNil()
}

func (c *Cluster) String() string {
	pods := make([]string, 0, len(c.pods))
	for _, p := range c.pods {
		pods = append(pods, "{"+p.String()+"}")
	}
	return fmt.Sprintf("pods:[%s] job_stage:%s", strings.Join(pods, " "), c.jobStage)
}

// Details is like String but lists every trainer of every pod.
func (c *Cluster) Details() string {
	pods := make([]string, 0, len(c.pods))
	for _, p := range c.pods {
		pods = append(pods, "{"+p.Details()+"}")
	}
	return fmt.Sprintf("pods:[%s] job_stage:%s", strings.Join(pods, " "), c.jobStage)
}
