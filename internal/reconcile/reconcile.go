// Package reconcile turns registry membership into ranked cluster snapshots and hands every
// changed snapshot to a launcher.
package reconcile

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/wangxicoding/edl/internal/prom"
	"github.com/wangxicoding/edl/pkg/cluster"
)

const (
	defaultInterval   = 5 * time.Second
	defaultMaxRetries = 3
)

// Source provides the current, unranked cluster membership.
type Source interface {
	Fetch(ctx context.Context) (*cluster.Cluster, error)
}

// Launcher (re)starts the job's trainers for a ranked cluster.
type Launcher interface {
	Launch(ctx context.Context, c *cluster.Cluster) error
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithClock sets the clock that drives Run.
func WithClock(c clockwork.Clock) Option {
	return func(r *Reconciler) { r.clock = c }
}

// WithInterval sets the time between steps of Run.
func WithInterval(d time.Duration) Option {
	return func(r *Reconciler) { r.interval = d }
}

// WithMaxRetries sets how often a failed fetch is retried within one step.
func WithMaxRetries(n int) Option {
	return func(r *Reconciler) { r.maxRetries = uint64(n) }
}

// WithBackOff sets the backoff policy between fetch retries.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(r *Reconciler) { r.newBackOff = f }
}

// WithPolicy sets how trainer global ranks are assigned.
func WithPolicy(p cluster.RankPolicy) Option {
	return func(r *Reconciler) { r.policy = p }
}

// WithMetrics records published snapshots and step outcomes.
func WithMetrics(m *prom.Metrics) Option {
	return func(r *Reconciler) { r.metrics = m }
}

// Reconciler periodically ranks the membership reported by a Source and launches it when the
// topology changed.
type Reconciler struct {
	source   Source
	launcher Launcher

	clock      clockwork.Clock
	interval   time.Duration
	maxRetries uint64
	newBackOff func() backoff.BackOff
	policy     cluster.RankPolicy
	metrics    *prom.Metrics

	published atomic.Pointer[cluster.Cluster]
	syslog    *log.Entry
}

// New returns a Reconciler. Until the first change it publishes an empty cluster.
func New(source Source, launcher Launcher, opts ...Option) *Reconciler {
	r := &Reconciler{
		source:     source,
		launcher:   launcher,
		clock:      clockwork.NewRealClock(),
		interval:   defaultInterval,
		maxRetries: defaultMaxRetries,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		policy:     cluster.CumulativeRanks,
		syslog:     log.WithField("component", "reconciler"),
	}
	for _, opt := range opts {
		opt(r)
	}
	empty, _ := cluster.NewCluster(nil, "")
	r.published.Store(empty)
	return r
}

// Published returns a copy of the last launched cluster.
func (r *Reconciler) Published() *cluster.Cluster {
	return r.published.Load().Clone()
}

// Step fetches the membership, ranks it and, if it differs from the published cluster,
// launches and publishes it. It reports whether a new cluster was published. A failed launch
// leaves the published cluster unchanged so the next step tries again.
func (r *Reconciler) Step(ctx context.Context) (changed bool, err error) {
	if r.metrics != nil {
		defer prom.ErrCount(r.metrics.StepErrors, &err)
		defer prom.Time(r.metrics.StepSeconds, time.Now())
	}

	var snapshot *cluster.Cluster
	fetch := func() error {
		var ferr error
		snapshot, ferr = r.source.Fetch(ctx)
		if ferr != nil {
			r.syslog.WithError(ferr).Debug("fetching cluster membership")
		}
		return ferr
	}
	b := backoff.WithContext(backoff.WithMaxRetries(r.newBackOff(), r.maxRetries), ctx)
	if err := backoff.Retry(fetch, b); err != nil {
		return false, errors.Wrap(err, "fetching cluster membership")
	}

	prev := r.published.Load()
	next, err := Canonicalize(prev, snapshot)
	if err != nil {
		return false, errors.Wrap(err, "ordering cluster membership")
	}
	next.AssignRanks(r.policy)

	diffs := prev.Diff(next)
	if len(diffs) == 0 {
		return false, nil
	}

	joined, left := membership(prev, next)
	logger := r.syslog.WithField("world-size", next.WorldSize()).
		WithField("pods", next.PodCount())
	if len(joined) > 0 {
		logger = logger.WithField("joined", joined)
	}
	if len(left) > 0 {
		logger = logger.WithField("left", left)
	}
	logger.Info("cluster topology changed")
	for _, d := range diffs {
		r.syslog.Debug(d)
	}

	if err := r.launcher.Launch(ctx, next.Clone()); err != nil {
		return false, errors.Wrap(err, "launching cluster")
	}
	if r.metrics != nil {
		r.metrics.Observe(next)
	}
	r.published.Store(next)
	return true, nil
}

// Run steps immediately and then once per interval until ctx ends. Step errors are logged and
// do not stop the loop.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.Step(ctx); err != nil && ctx.Err() == nil {
			r.syslog.WithError(err).Warn("reconcile step failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}
	}
}
