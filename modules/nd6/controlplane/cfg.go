package nd6

import (
	"fmt"
	"time"

	"github.com/c2h5oh/datasize"
)

// approxNexthopFootprint estimates one arena slot's resident size
// (the record itself plus its hold queue's steady-state backing),
// used by Validate to catch a NumNexthops/NexthopMemory mismatch
// before the pool is allocated.
const approxNexthopFootprint = 128 * datasize.B

// Config is the control thread's tunable configuration, loaded from
// YAML at startup.
type Config struct {
	// NumNexthops bounds the next-hop arena's capacity.
	NumNexthops int `yaml:"num_nexthops"`
	// NexthopMemory bounds the memory the arena is allowed to occupy;
	// Validate rejects a NumNexthops that would overrun it.
	NexthopMemory datasize.ByteSize `yaml:"nexthop_memory"`
	// MaxHeldPkts bounds each next-hop's pending-packet queue.
	MaxHeldPkts int `yaml:"max_held_pkts"`
	// UcastProbes and BcastProbes are the unicast and
	// solicited-multicast probe budgets.
	UcastProbes uint8 `yaml:"ucast_probes"`
	BcastProbes uint8 `yaml:"bcast_probes"`
	// ProbeInterval is the delay between successive probes for one
	// next-hop.
	ProbeInterval time.Duration `yaml:"probe_interval"`
	// ReachableLifetime is how long a next-hop stays REACHABLE after its
	// last confirming advertisement before decaying to STALE; forwarded
	// traffic does not extend it.
	ReachableLifetime time.Duration `yaml:"reachable_lifetime"`
	// RingCapacity bounds the control ring's depth.
	RingCapacity int `yaml:"ring_capacity"`
}

// DefaultConfig returns the tunables' documented typical values.
func DefaultConfig() *Config {
	return &Config{
		NumNexthops:       1 << 16,
		NexthopMemory:     8 * datasize.MB,
		MaxHeldPkts:       256,
		UcastProbes:       3,
		BcastProbes:       3,
		ProbeInterval:     time.Second,
		ReachableLifetime: 30 * time.Second,
		RingCapacity:      4096,
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.NumNexthops <= 0 {
		return fmt.Errorf("num_nexthops must be positive")
	}
	if want := approxNexthopFootprint * datasize.ByteSize(c.NumNexthops); c.NexthopMemory < want {
		return fmt.Errorf("nexthop_memory %s too small for %d next-hops (need at least %s)", c.NexthopMemory, c.NumNexthops, want)
	}
	if c.RingCapacity <= 0 {
		return fmt.Errorf("ring_capacity must be positive")
	}
	if c.ProbeInterval <= 0 {
		return fmt.Errorf("probe_interval must be positive")
	}
	if c.ReachableLifetime <= 0 {
		return fmt.Errorf("reachable_lifetime must be positive")
	}
	return nil
}
