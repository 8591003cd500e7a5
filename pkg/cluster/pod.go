package cluster

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/wangxicoding/edl/pkg/device"
	"github.com/wangxicoding/edl/pkg/set"
)

// PodID identifies a pod across snapshots. It is independent of the pod's rank, which is only
// its current position in the cluster.
type PodID string

// JobEnvironment describes the local node as configured by the job.
type JobEnvironment interface {
	AcceleratorIDs() []device.ID
	TrainerCount() int
	CandidatePorts() []int
}

// HostResolver looks up the local host name and the address peers should dial.
type HostResolver interface {
	Resolve() (hostname string, addr string, err error)
}

// Pod is one node of a training job together with the trainers it runs.
type Pod struct {
	id           PodID
	rank         *int
	addr         string
	port         int
	trainerPorts []int
	accelerators []device.ID
	status       PodStatus
	stage        string
	trainers     []*Trainer
}

// NewPod builds the local pod: its accelerators are partitioned across the requested number of
// trainers and trainer i listens on the i-th candidate port of the resolved host address. The
// pod starts unranked, with no port and status PodInitial.
func NewPod(env JobEnvironment, resolver HostResolver) (*Pod, error) {
	accelerators := slices.Clone(env.AcceleratorIDs())
	ports := slices.Clone(env.CandidatePorts())
	n := env.TrainerCount()

	parts, err := Partition(accelerators, n)
	if err != nil {
		return nil, err
	}
	if len(ports) < n {
		return nil, InvalidPortsError{Ports: len(ports), Trainers: n}
	}

	_, addr, err := resolver.Resolve()
	if err != nil {
		return nil, errors.Wrap(err, "resolving host address")
	}

	p := &Pod{
		id:           PodID(uuid.New().String()),
		addr:         addr,
		trainerPorts: ports,
		accelerators: accelerators,
		status:       PodInitial,
	}
	if addr == "" {
		return nil, IncompletePodError{ID: p.id, Missing: "address"}
	}
	for i, part := range parts {
		p.trainers = append(p.trainers, newTrainer(joinHostPort(addr, ports[i]), i, part))
	}
	return p, nil
}

func joinHostPort(addr string, port int) string {
	return net.JoinHostPort(addr, strconv.Itoa(port))
}

// ID returns the pod's stable identifier.
func (p *Pod) ID() PodID {
	return p.id
}

// Rank returns the pod's position in the cluster, which is unset until the pod is ranked.
func (p *Pod) Rank() (int, bool) {
	if p.rank == nil {
		return 0, false
	}
	return *p.rank, true
}

// Address returns the pod's network address.
func (p *Pod) Address() string {
	return p.addr
}

// Port returns the pod's port, or 0 when unset.
func (p *Pod) Port() int {
	return p.port
}

// SetPort sets the port the pod serves coordination traffic on.
func (p *Pod) SetPort(port int) {
	p.port = port
}

// Endpoint returns the pod's address:port.
func (p *Pod) Endpoint() (string, error) {
	switch {
	case p.addr == "":
		return "", IncompletePodError{ID: p.id, Missing: "address"}
	case p.port == 0:
		return "", IncompletePodError{ID: p.id, Missing: "port"}
	}
	return joinHostPort(p.addr, p.port), nil
}

// TrainerPorts returns a copy of the ports the pod's trainers may listen on.
func (p *Pod) TrainerPorts() []int {
	return slices.Clone(p.trainerPorts)
}

// Accelerators returns a copy of the pod's full accelerator set.
func (p *Pod) Accelerators() []device.ID {
	return slices.Clone(p.accelerators)
}

// Status returns the pod's lifecycle status.
func (p *Pod) Status() PodStatus {
	return p.status
}

// SetStatus records a lifecycle transition reported by the pod's supervisor.
func (p *Pod) SetStatus(s PodStatus) {
	p.status = s
}

// Stage returns the pod's coordination marker.
func (p *Pod) Stage() string {
	return p.stage
}

// SetStage sets the pod's coordination marker.
func (p *Pod) SetStage(stage string) {
	p.stage = stage
}

// Trainers returns the pod's trainers in rank_in_pod order. The slice is a copy; the trainers
// are shared.
func (p *Pod) Trainers() []*Trainer {
	return slices.Clone(p.trainers)
}

// TrainerCount returns the number of trainers on the pod.
func (p *Pod) TrainerCount() int {
	return len(p.trainers)
}

// Clone returns a deep copy of the pod and its trainers.
func (p *Pod) Clone() *Pod {
	c := *p
	if p.rank != nil {
		r := *p.rank
		c.rank = &r
	}
	c.trainerPorts = slices.Clone(p.trainerPorts)
	c.accelerators = slices.Clone(p.accelerators)
	c.trainers = make([]*Trainer, 0, len(p.trainers))
	for _, t := range p.trainers {
		c.trainers = append(c.trainers, t.Clone())
	}
	return &c
}

// Validate checks the pod's structural invariants: at least one trainer, rank_in_pod values
// 0..n-1 in order, every trainer owning at least one accelerator, and the trainers' accelerator
// sets being pairwise disjoint with the pod's set as their union.
func (p *Pod) Validate() error {
	var errs *multierror.Error
	if p.id == "" {
		errs = multierror.Append(errs, errors.New("pod id is empty"))
	}
	if len(p.trainers) == 0 {
		errs = multierror.Append(errs, errors.Errorf("pod %s has no trainers", p.id))
	}

	owned := set.New[device.ID]()
	for i, t := range p.trainers {
		if t.rankInPod != i {
			errs = multierror.Append(errs, errors.Errorf(
				"trainer %d of pod %s has rank_in_pod %d", i, p.id, t.rankInPod))
		}
		if len(t.accelerators) == 0 {
			errs = multierror.Append(errs, errors.Errorf(
				"trainer %d of pod %s owns no accelerators", i, p.id))
		}
		for _, a := range t.accelerators {
			if !owned.Add(a) {
				errs = multierror.Append(errs, errors.Errorf(
					"accelerator %s of pod %s is owned by more than one trainer", a, p.id))
			}
		}
	}
	if len(p.trainers) > 0 && !owned.Equal(set.FromSlice(p.accelerators)) {
		errs = multierror.Append(errs, errors.Errorf(
			"trainers of pod %s own accelerators %v, pod has %v",
			p.id, set.Sorted(owned), p.accelerators))
	}
	return errs.ErrorOrNil()
}

func (p *Pod) String() string {
	return fmt.Sprintf("rank:%s id:%s addr:%s port:%d gpus:%v status:%s trainers_num:%d",
		optionalInt(p.rank), p.id, p.addr, p.port, p.accelerators, p.status, len(p.trainers))
}

// Details is like String but lists every trainer.
func (p *Pod) Details() string {
	trainers := make([]string, 0, len(p.trainers))
	for _, t := range p.trainers {
		trainers = append(trainers, "{"+t.String()+"}")
	}
	return fmt.Sprintf("rank:%s id:%s addr:%s port:%d visible_gpu:%v status:%s trainers:[%s]",
		optionalInt(p.rank), p.id, p.addr, p.port, p.accelerators, p.status,
		strings.Join(trainers, " "))
}
