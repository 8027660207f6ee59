// Package beacon announces this kernel's transport endpoint over a
// memberlist cluster and records the endpoints of its peers in the
// Hostess endpoint table.
package beacon

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/memberlist"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gezibash/arc-kernel/internal/names"
	"github.com/gezibash/arc-kernel/internal/observability"
	"github.com/gezibash/arc-kernel/pkg/logging"
)

// Beacon manages the memberlist cluster.
type Beacon struct {
	list      *memberlist.Memberlist
	localName string
	config    Config
	meta      *delegate
	pings     *pingDelegate
	log       *logging.Logger

	closed     atomic.Bool
	wg         sync.WaitGroup
	cancelFunc context.CancelFunc
}

// MemberInfo describes a cluster member.
type MemberInfo struct {
	Name        string
	Addr        string
	Kind        string
	Coordinates string
	Status      string
	Version     string
	Uptime      uint64
	LatencyNs   int64
	IsLocal     bool
}

// DefaultNodeName derives a stable petname from the hostname and the
// advertised coordinates, so two kernels on one host get distinct names.
func DefaultNodeName(coordinates string) (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("get hostname: %w", err)
	}
	return names.Petname(hostname + "/" + coordinates), nil
}

// New creates a beacon that reports peers to sink. Call Start to join the
// cluster.
func New(cfg Config, sink Sink) (*Beacon, error) {
	if sink == nil {
		return nil, fmt.Errorf("beacon: sink is required")
	}
	if cfg.NodeName == "" {
		name, err := DefaultNodeName(cfg.Coordinates)
		if err != nil {
			return nil, err
		}
		cfg.NodeName = name
	}
	if cfg.BindAddr == "" {
		cfg.BindAddr = "0.0.0.0"
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 5 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New(nil)
	}
	log = log.WithComponent("beacon")

	meta := &delegate{
		meta: Meta{Kind: cfg.Kind, Coordinates: cfg.Coordinates, Version: cfg.Version},
		log:  log,
	}
	if n := len(meta.meta.Encode()); n > memberlist.MetaMaxSize {
		return nil, fmt.Errorf("beacon: node meta is %d bytes, limit %d", n, memberlist.MetaMaxSize)
	}
	pings := newPingDelegate()

	mlConfig := memberlist.DefaultLANConfig()
	mlConfig.Name = cfg.NodeName
	mlConfig.BindAddr = cfg.BindAddr
	mlConfig.BindPort = cfg.BindPort
	if cfg.AdvertiseAddr != "" {
		mlConfig.AdvertiseAddr = cfg.AdvertiseAddr
	}
	if cfg.AdvertisePort != 0 {
		mlConfig.AdvertisePort = cfg.AdvertisePort
	}
	mlConfig.Delegate = meta
	mlConfig.Events = &eventDelegate{
		local: cfg.NodeName,
		sink:  sink,
		pings: pings,
		log:   log,
	}
	mlConfig.Ping = pings
	mlConfig.LogOutput = &slogWriter{log: log.WithComponent("memberlist")}

	list, err := memberlist.Create(mlConfig)
	if err != nil {
		return nil, fmt.Errorf("create memberlist: %w", err)
	}

	return &Beacon{
		list:      list,
		localName: cfg.NodeName,
		config:    cfg,
		meta:      meta,
		pings:     pings,
		log:       log,
	}, nil
}

// Start joins the seeds (if any) and starts the metadata refresher.
// A failed join is logged, not returned: peers may join us later.
func (b *Beacon) Start(ctx context.Context) error {
	ctx, b.cancelFunc = context.WithCancel(ctx)

	if len(b.config.Seeds) > 0 {
		op, _ := observability.StartOperation(ctx, b.config.Metrics, b.log.Slog(), "beacon.join",
			attribute.Int("beacon.seeds", len(b.config.Seeds)))
		n, err := b.list.Join(b.config.Seeds)
		_ = op.End(err)
		if err != nil {
			b.log.Warn("partial join", "joined", n, "seeds", b.config.Seeds, "error", err)
		} else {
			b.log.Info("joined cluster", "joined", n, "seeds", b.config.Seeds)
		}
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.refresh(ctx)
	}()

	b.log.Info("beacon started",
		"name", b.localName,
		"addr", b.Addr(),
		"kind", b.config.Kind,
		"members", b.list.NumMembers(),
	)
	return nil
}

// refresh periodically re-gossips node metadata so peers see fresh uptime
// and RTT.
func (b *Beacon) refresh(ctx context.Context) {
	startTime := time.Now()
	ticker := time.NewTicker(b.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.meta.setUptime(uint64(time.Since(startTime).Nanoseconds()))
			if err := b.list.UpdateNode(b.config.RefreshInterval); err != nil {
				b.log.Debug("update node meta failed", "error", err)
			}
		}
	}
}

// Join adds peers to the cluster at runtime.
func (b *Beacon) Join(peers []string) (int, error) {
	return b.list.Join(peers)
}

// Addr returns the gossip address other nodes can use as a seed.
func (b *Beacon) Addr() string {
	n := b.list.LocalNode()
	return net.JoinHostPort(n.Addr.String(), fmt.Sprint(n.Port))
}

// LocalName returns this node's name.
func (b *Beacon) LocalName() string {
	return b.localName
}

// Members returns information about all cluster members.
func (b *Beacon) Members() []MemberInfo {
	members := b.list.Members()
	infos := make([]MemberInfo, 0, len(members))

	for _, m := range members {
		info := MemberInfo{
			Name:    m.Name,
			Addr:    m.Address(),
			Status:  memberStatusString(m.State),
			IsLocal: m.Name == b.localName,
		}
		if !info.IsLocal {
			info.LatencyNs = b.pings.RTT(m.Name).Nanoseconds()
		}
		if meta, err := DecodeMeta(m.Meta); err == nil {
			info.Kind = meta.Kind
			info.Coordinates = resolveCoordinates(meta.Coordinates, m.Addr)
			info.Version = meta.Version
			info.Uptime = meta.Uptime
		}
		infos = append(infos, info)
	}
	return infos
}

// Leave gracefully leaves the cluster.
func (b *Beacon) Leave() error {
	return b.list.Leave(5 * time.Second)
}

// Close leaves the cluster and shuts memberlist down.
func (b *Beacon) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	if b.cancelFunc != nil {
		b.cancelFunc()
	}
	if err := b.list.Leave(5 * time.Second); err != nil {
		b.log.Warn("leave failed during close", "error", err)
	}
	err := b.list.Shutdown()
	b.wg.Wait()
	return err
}

func memberStatusString(state memberlist.NodeStateType) string {
	switch state {
	case memberlist.StateAlive:
		return "alive"
	case memberlist.StateSuspect:
		return "suspect"
	case memberlist.StateDead:
		return "dead"
	case memberlist.StateLeft:
		return "left"
	default:
		return "unknown"
	}
}

// slogWriter adapts memberlist's log.Logger output to the kernel logger.
type slogWriter struct {
	log *logging.Logger
}

func (w *slogWriter) Write(p []byte) (int, error) {
	msg := strings.TrimSuffix(string(p), "\n")

	switch {
	case strings.Contains(msg, "[ERR]"):
		w.log.Warn(stripMemberlistPrefix(msg, "[ERR]"))
	case strings.Contains(msg, "[WARN]"):
		w.log.Warn(stripMemberlistPrefix(msg, "[WARN]"))
	case strings.Contains(msg, "[INFO]"):
		w.log.Info(stripMemberlistPrefix(msg, "[INFO]"))
	default:
		w.log.Debug(stripMemberlistPrefix(msg, "[DEBUG]"))
	}
	return len(p), nil
}

// stripMemberlistPrefix removes memberlist's timestamp and level prefix.
// Input: "2026/02/04 14:13:51 [ERR] memberlist: Failed to send..."
// Output: "memberlist: Failed to send..."
func stripMemberlistPrefix(msg, level string) string {
	if idx := strings.Index(msg, level); idx != -1 {
		msg = strings.TrimSpace(msg[idx+len(level):])
	}
	return msg
}
