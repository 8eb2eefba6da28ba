// Package nd6 wires the next-hop pool, resolution FSM, route table,
// interface inventory and NDP codec into a single control thread: the
// Controller. It is the only piece of this repository permitted to
// mutate next-hop state; everything else either reads concurrently or
// hands events to it through the ring.
package nd6

import (
	"context"
	"net/netip"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yanet-platform/nd6/modules/nd6/internal/clock"
	"github.com/yanet-platform/nd6/modules/nd6/internal/datapath"
	"github.com/yanet-platform/nd6/modules/nd6/internal/fsm"
	"github.com/yanet-platform/nd6/modules/nd6/internal/iface"
	"github.com/yanet-platform/nd6/modules/nd6/internal/nexthop"
	"github.com/yanet-platform/nd6/modules/nd6/internal/packet"
	"github.com/yanet-platform/nd6/modules/nd6/internal/ring"
	"github.com/yanet-platform/nd6/modules/nd6/internal/rtable"
)

// Controller is the single control thread for one address family's
// resolution subsystem.
type Controller struct {
	cfg *Config
	log *zap.SugaredLogger

	pool   *nexthop.Pool
	routes *rtable.Table
	ifaces *iface.Inventory
	clk    clock.Clock
	timers *timerWheel
	dp     *datapath.Deps

	// probeBackoff supplies the delay before the next probe retransmit.
	// A constant policy today, but routed through a retry-scheduler
	// abstraction so a future change to exponential or jittered probe
	// spacing is a one-line edit.
	probeBackoff *backoff.ConstantBackOff

	ring *ring.Ring

	tickInterval time.Duration
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides the Controller's time source, for tests.
func WithClock(c clock.Clock) Option {
	return func(m *Controller) { m.clk = c }
}

// WithTransmit overrides how the Controller emits raw NDP payloads.
func WithTransmit(fn func(iface uint16, dst netip.Addr, payload []byte) error) Option {
	return func(m *Controller) { m.dp.Transmit = fn }
}

// WithOutput overrides how the Controller re-posts a resolved packet.
func WithOutput(fn func(pkt *packet.Packet) error) Option {
	return func(m *Controller) { m.dp.Output = fn }
}

// NewController constructs a Controller. routes and ifaces are the
// route-table and interface-inventory collaborators this subsystem
// depends on but does not own.
func NewController(cfg *Config, routes *rtable.Table, ifaces *iface.Inventory, log *zap.SugaredLogger) *Controller {
	log = log.With(zap.String("module", "nd6"))

	pool := nexthop.New(nexthop.Opts{Family: nexthop.FamilyIPv6, NumNexthops: cfg.NumNexthops})

	c := &Controller{
		cfg:          cfg,
		log:          log,
		pool:         pool,
		routes:       routes,
		ifaces:       ifaces,
		clk:          clock.Monotonic{},
		timers:       newTimerWheel(),
		ring:         ring.New(cfg.RingCapacity),
		tickInterval: 50 * time.Millisecond,
		probeBackoff: &backoff.ConstantBackOff{Interval: cfg.ProbeInterval},
	}

	c.dp = &datapath.Deps{
		Pool:   pool,
		Routes: routes,
		Ifaces: ifaces,
		Clock:  c.clk,
		Tunables: fsm.Tunables{
			UcastProbes:       cfg.UcastProbes,
			BcastProbes:       cfg.BcastProbes,
			ProbeInterval:     clock.Tick(cfg.ProbeInterval),
			ReachableLifetime: clock.Tick(cfg.ReachableLifetime),
		},
		Timers: c,
		Transmit: func(iface uint16, dst netip.Addr, payload []byte) error {
			log.Debugw("would transmit NDP payload", zap.Uint16("iface", iface), zap.Stringer("dst", dst), zap.Int("bytes", len(payload)))
			return nil
		},
		Output: func(pkt *packet.Packet) error {
			log.Debugw("would forward resolved packet", zap.Stringer("dst", pkt.Dst))
			return nil
		},
		MaxHeldPkts: cfg.MaxHeldPkts,
	}

	return c
}

// Apply applies options after construction, for tests that need to
// override Transmit/Output/Clock before Run starts.
func (c *Controller) Apply(opts ...Option) {
	for _, o := range opts {
		o(c)
	}
	c.dp.Clock = c.clk
}

// ArmProbeTimer implements datapath.Timers. The caller's interval is the
// fallback used only if the backoff policy refuses to produce one.
func (c *Controller) ArmProbeTimer(nh *nexthop.Nexthop, interval clock.Tick) {
	d := c.probeBackoff.NextBackOff()
	if d == backoff.Stop {
		d = time.Duration(interval)
	}
	c.timers.arm(nh, timerProbe, c.clk.Now()+clock.Tick(d))
}

// ArmReachableTimer implements datapath.Timers.
func (c *Controller) ArmReachableTimer(nh *nexthop.Nexthop, lifetime clock.Tick) {
	c.timers.arm(nh, timerReachable, c.clk.Now()+lifetime)
}

// Run drives the control thread until ctx is canceled: draining the
// ring of datapath-originated events and firing due timers.
func (c *Controller) Run(ctx context.Context) error {
	c.log.Debugf("starting nd6 control thread")
	defer c.log.Debugf("stopped nd6 control thread")

	wg, ctx := errgroup.WithContext(ctx)
	wg.Go(func() error { return c.runRing(ctx) })
	wg.Go(func() error { return c.runTimers(ctx) })
	return wg.Wait()
}

func (c *Controller) runRing(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, ok := c.ring.Pop()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		c.dispatchRingMessage(msg)
	}
}

func (c *Controller) runTimers(ctx context.Context) error {
	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.fireDueTimers()
		}
	}
}

func (c *Controller) fireDueTimers() {
	now := c.clk.Now()
	for _, e := range c.timers.due(now) {
		switch e.kind {
		case timerProbe:
			if err := c.dp.ProcessProbeTimer(e.nh); err != nil {
				c.log.Warnw("probe timer handling failed", zap.Error(err))
			}
		case timerReachable:
			c.dp.ProcessReachableTimer(e.nh)
		}
	}
}

// Ring message handler ids.
const (
	handlerUnreachable uint8 = iota
	handlerNSInput
	handlerNAInput
)

type unreachableEvent struct {
	pkt *packet.Packet
}

type nsInputEvent struct {
	vrf, iface         uint16
	src, dst, ourAddr  netip.Addr
	hopLimit           uint8
	payload            []byte
}

type naInputEvent struct {
	vrf, iface uint16
	hopLimit   uint8
	payload    []byte
}

// PostUnreachable enqueues a packet with no resolved next-hop for the
// control thread to handle. It is safe to call concurrently from any
// number of datapath workers.
func (c *Controller) PostUnreachable(pkt *packet.Packet) error {
	return c.ring.Push(ring.Message{Handler: handlerUnreachable, Payload: unreachableEvent{pkt: pkt}})
}

// PostNSInput enqueues a received Neighbor Solicitation.
func (c *Controller) PostNSInput(vrf, iface uint16, src, dst, ourAddr netip.Addr, hopLimit uint8, payload []byte) error {
	return c.ring.Push(ring.Message{Handler: handlerNSInput, Payload: nsInputEvent{vrf, iface, src, dst, ourAddr, hopLimit, payload}})
}

// PostNAInput enqueues a received Neighbor Advertisement.
func (c *Controller) PostNAInput(vrf, iface uint16, hopLimit uint8, payload []byte) error {
	return c.ring.Push(ring.Message{Handler: handlerNAInput, Payload: naInputEvent{vrf, iface, hopLimit, payload}})
}

func (c *Controller) dispatchRingMessage(msg ring.Message) {
	var err error
	switch msg.Handler {
	case handlerUnreachable:
		ev := msg.Payload.(unreachableEvent)
		err = c.dp.HandleUnreachable(ev.pkt)
	case handlerNSInput:
		ev := msg.Payload.(nsInputEvent)
		var edge datapath.Edge
		edge, err = c.dp.ProcessNSInput(ev.vrf, ev.iface, ev.src, ev.dst, ev.hopLimit, ev.payload, ev.ourAddr)
		if edge == datapath.EdgeInval {
			c.log.Debugw("dropped invalid neighbor solicitation", zap.Uint16("iface", ev.iface))
		}
	case handlerNAInput:
		ev := msg.Payload.(naInputEvent)
		err = c.dp.ProcessNAInput(ev.vrf, ev.iface, ev.hopLimit, ev.payload)
	}
	if err != nil {
		c.log.Warnw("control event handling failed", zap.Uint8("handler", msg.Handler), zap.Error(err))
	}
}
