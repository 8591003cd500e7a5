package main

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/wangxicoding/edl/internal/config"
)

var v *viper.Viper

// viperKeyDelimiter marks nested values in the configuration, so `job.gpus` is reached as
// `job..gpus`. A single "." stays usable inside keys.
const viperKeyDelimiter = ".."

type configKey []string

func (c configKey) EnvName() string {
	return "EDL_" + strings.ReplaceAll(strings.ToUpper(c.FlagName()), "-", "_")
}

func (c configKey) AccessPath() string {
	return strings.ReplaceAll(strings.Join(c, viperKeyDelimiter), "-", "_")
}

func (c configKey) FlagName() string {
	return strings.Join(c, "-")
}

func registerString(flags *pflag.FlagSet, name configKey, value string, usage string) {
	flags.String(name.FlagName(), value, usage)
	_ = v.BindEnv(name.AccessPath(), name.EnvName())
	_ = v.BindPFlag(name.AccessPath(), flags.Lookup(name.FlagName()))
	v.SetDefault(name.AccessPath(), value)
}

func registerBool(flags *pflag.FlagSet, name configKey, value bool, usage string) {
	flags.Bool(name.FlagName(), value, usage)
	_ = v.BindEnv(name.AccessPath(), name.EnvName())
	_ = v.BindPFlag(name.AccessPath(), flags.Lookup(name.FlagName()))
	v.SetDefault(name.AccessPath(), value)
}

func registerInt(flags *pflag.FlagSet, name configKey, value int, usage string) {
	flags.Int(name.FlagName(), value, usage)
	_ = v.BindEnv(name.AccessPath(), name.EnvName())
	_ = v.BindPFlag(name.AccessPath(), flags.Lookup(name.FlagName()))
	v.SetDefault(name.AccessPath(), value)
}

// registerConfig resets the viper instance and binds every configuration key to a flag of
// flags and to an EDL_ environment variable.
func registerConfig(flags *pflag.FlagSet) {
	v = viper.NewWithOptions(viper.KeyDelimiter(viperKeyDelimiter))
	v.SetTypeByDefaultValue(true)

	defaults := config.DefaultConfig()
	name := func(components ...string) configKey { return components }

	registerString(flags, name("config-file"),
		defaults.ConfigFile, "location of config file")

	registerString(flags, name("log", "level"),
		defaults.Log.Level, "choose logging level from [trace, debug, info, warn, error, fatal]")
	registerBool(flags, name("log", "color"),
		defaults.Log.Color, "output logs in color")
	registerBool(flags, name("log", "json"),
		defaults.Log.JSON, "output logs as JSON objects")
	registerString(flags, name("log", "node"),
		defaults.Log.Node, "node name attached to every log entry")

	registerString(flags, name("job", "gpus"),
		defaults.Job.GPUs, "comma separated accelerator ids (default from CUDA_VISIBLE_DEVICES)")
	registerInt(flags, name("job", "nproc-per-node"),
		defaults.Job.NProcPerNode, "trainers per node (0 means one per accelerator)")
	registerString(flags, name("job", "trainer-ports"),
		defaults.Job.TrainerPorts, "comma separated candidate trainer ports")

	registerString(flags, name("pod", "addr"),
		defaults.Pod.Addr, "address peers use to reach this pod (default resolved from hostname)")
	registerInt(flags, name("pod", "port"),
		defaults.Pod.Port, "pod coordination port")
	registerString(flags, name("pod", "stage"),
		defaults.Pod.Stage, "pod stage marker")

	registerString(flags, name("registry", "bind"),
		defaults.Registry.Bind, "listen address of the registry api")
	registerString(flags, name("reconcile", "interval"),
		time.Duration(defaults.Reconcile.Interval).String(), "time between reconcile steps")
	registerInt(flags, name("reconcile", "max-retries"),
		defaults.Reconcile.MaxRetries, "retries of a failed membership fetch per step")

	registerString(flags, name("rank-policy"),
		defaults.RankPolicy, "trainer rank policy, one of [cumulative, literal]")
}
