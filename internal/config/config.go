// Package config centralizes the handful of environment-tunable knobs the
// connection and server layers read at startup, the way phenix's root
// command binds flags and environment variables through viper before any
// subcommand runs.
package config

import (
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sandia-minimega/boxrpc/pkg/rpclog"
)

const (
	envPrefix = "BOXRPC"

	defaultFragmentQueue = 64
	defaultCallTimeout   = 30 * time.Second
)

// defaultWorkers mirrors GOMAXPROCS*4, the teacher's own rule of thumb
// for a handler pool that's CPU-bound in bursts but mostly waiting on
// the caller's code.
func defaultWorkers() int {
	return runtime.GOMAXPROCS(0) * 4
}

func init() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("fragment-queue", defaultFragmentQueue)
	viper.SetDefault("call-timeout", defaultCallTimeout)
	viper.SetDefault("workers", defaultWorkers())
	viper.SetDefault("logging", "")

	viper.SetConfigName("boxrpc")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/boxrpc")
	_ = viper.ReadInConfig() // absence of a config file is not an error

	if v := Logging(); v != "" {
		rpclog.SetLevel(rpclog.ParseLevel(v))
	}
}

// FragmentQueueSize bounds how many outgoing envelopes (fragments included)
// a Connection buffers in its single send queue before a sender blocks, and
// sizes a Context's handler job queue. Read from BOXRPC_FRAGMENT_QUEUE.
func FragmentQueueSize() int {
	return viper.GetInt("fragment-queue")
}

// CallTimeout is the default deadline for a synchronous Call when the
// caller doesn't supply one. Read from BOXRPC_CALL_TIMEOUT (accepts any
// duration string "10s", "1m", ...).
func CallTimeout() time.Duration {
	return viper.GetDuration("call-timeout")
}

// Workers is the size of the handler worker pool a Server starts.
// Read from BOXRPC_WORKERS.
func Workers() int {
	n := viper.GetInt("workers")
	if n <= 0 {
		return defaultWorkers()
	}
	return n
}

// Logging is the raw value of BOXRPC_LOGGING, applied to pkg/rpclog's
// level at package init above. When unset we fall back to the plain
// LIBRPC_LOGGING variable pkg/rpclog also reads directly on import, so
// either name works; BOXRPC_LOGGING (and a boxrpc config file) win when
// both are set, since this init runs after rpclog's.
func Logging() string {
	if v := viper.GetString("logging"); v != "" {
		return v
	}
	return os.Getenv("LIBRPC_LOGGING")
}
