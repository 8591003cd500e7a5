package config

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/wangxicoding/edl/pkg/check"
	"github.com/wangxicoding/edl/pkg/cluster"
	"github.com/wangxicoding/edl/pkg/logger"
)

const (
	// DefaultTrainerPortBase is the first trainer port used when none are configured.
	DefaultTrainerPortBase = 6170
	// DefaultPodPort is the port pods serve coordination traffic on.
	DefaultPodPort = 6070
	// DefaultRegistryBind is the listen address of the registry API.
	DefaultRegistryBind = ":8090"
)

// JobConfig describes how the local node takes part in the job.
type JobConfig struct {
	// GPUs is a comma separated accelerator list. When empty, CUDA_VISIBLE_DEVICES is used.
	GPUs string `json:"gpus"`
	// NProcPerNode is the number of trainers on this node. Zero means one per accelerator.
	NProcPerNode int `json:"nproc_per_node"`
	// TrainerPorts is a comma separated list of candidate trainer ports. When empty,
	// consecutive ports from DefaultTrainerPortBase are used.
	TrainerPorts string `json:"trainer_ports"`
}

// Ports parses TrainerPorts.
func (c JobConfig) Ports() ([]int, error) {
	var ports []int
	for _, field := range strings.Split(c.TrainerPorts, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		port, err := strconv.Atoi(field)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid trainer port %q", field)
		}
		ports = append(ports, port)
	}
	return ports, nil
}

// Validate implements the check.Validatable interface.
func (c JobConfig) Validate() []error {
	errs := []error{
		check.GreaterThanOrEqualTo(c.NProcPerNode, 0, "nproc_per_node must not be negative"),
	}
	ports, err := c.Ports()
	if err != nil {
		return append(errs, err)
	}
	for _, port := range ports {
		errs = append(errs, validPort(port, "trainer port"))
	}
	return errs
}

// PodConfig configures the local pod.
type PodConfig struct {
	// Addr overrides the address resolved from the host name.
	Addr  string `json:"addr"`
	Port  int    `json:"port"`
	Stage string `json:"stage"`
}

// Validate implements the check.Validatable interface.
func (c PodConfig) Validate() []error {
	return []error{validPort(c.Port, "pod port")}
}

// RegistryConfig configures the registry API.
type RegistryConfig struct {
	Bind string `json:"bind"`
}

// ReconcileConfig configures the reconcile loop of the registry.
type ReconcileConfig struct {
	Interval   Duration `json:"interval"`
	MaxRetries int      `json:"max_retries"`
}

// Validate implements the check.Validatable interface.
func (c ReconcileConfig) Validate() []error {
	return []error{
		check.GreaterThan(int(time.Duration(c.Interval).Milliseconds()), 0,
			"reconcile interval must be positive"),
		check.GreaterThanOrEqualTo(c.MaxRetries, 0, "reconcile max_retries must not be negative"),
	}
}

// Config is the configuration of edl-topology.
//
// It is populated, in the following order, by the configuration file,
// environment variables and command line arguments.
type Config struct {
	ConfigFile string          `json:"config_file"`
	Log        logger.Config   `json:"log"`
	Job        JobConfig       `json:"job"`
	Pod        PodConfig       `json:"pod"`
	Registry   RegistryConfig  `json:"registry"`
	Reconcile  ReconcileConfig `json:"reconcile"`
	RankPolicy string          `json:"rank_policy"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: *logger.DefaultConfig(),
		Pod: PodConfig{
			Port: DefaultPodPort,
		},
		Registry: RegistryConfig{
			Bind: DefaultRegistryBind,
		},
		Reconcile: ReconcileConfig{
			Interval:   Duration(5 * time.Second),
			MaxRetries: 3,
		},
		RankPolicy: string(cluster.CumulativeRanks),
	}
}

// Resolve fills in dynamic defaults.
func (c *Config) Resolve() error {
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.RankPolicy = strings.ToLower(strings.TrimSpace(c.RankPolicy))
	if c.RankPolicy == "" {
		c.RankPolicy = string(cluster.CumulativeRanks)
	}
	if c.Registry.Bind == "" {
		c.Registry.Bind = DefaultRegistryBind
	}
	return nil
}

// Validate implements the check.Validatable interface.
func (c Config) Validate() []error {
	_, err := cluster.ParseRankPolicy(c.RankPolicy)
	return []error{
		err,
		check.NotEmpty(c.Registry.Bind, "registry bind address must be provided"),
	}
}

// Policy returns the parsed rank policy.
func (c Config) Policy() cluster.RankPolicy {
	p, err := cluster.ParseRankPolicy(c.RankPolicy)
	if err != nil {
		return cluster.CumulativeRanks
	}
	return p
}

// Printable returns a printable string.
func (c Config) Printable() ([]byte, error) {
	optJSON, err := json.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "unable to convert config to JSON")
	}
	return optJSON, nil
}

func validPort(port int, what string) error {
	if port < 1 || port > 65535 {
		return errors.Errorf("%s %d is out of range [1, 65535]", what, port)
	}
	return nil
}
