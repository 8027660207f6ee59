package beacon

import (
	"time"

	"github.com/gezibash/arc-kernel/internal/observability"
	"github.com/gezibash/arc-kernel/pkg/logging"
)

// Config holds beacon configuration.
type Config struct {
	// NodeName is this kernel's unique name in the cluster.
	// Defaults to a petname derived from the hostname and Coordinates.
	NodeName string

	// BindAddr is the address to bind for gossip (default: "0.0.0.0").
	BindAddr string

	// BindPort is the port for gossip. 0 lets the OS pick one.
	BindPort int

	// AdvertiseAddr is the address to advertise to other nodes (for containers/NAT).
	AdvertiseAddr string

	// AdvertisePort is the port to advertise (0 = same as BindPort).
	AdvertisePort int

	// Seeds are the addresses of peers to join on startup.
	Seeds []string

	// Kind and Coordinates describe how peers reach this kernel's
	// transport, e.g. "tcp" and ":9000". A bare port is completed with the
	// node's gossip IP on the receiving side.
	Kind        string
	Coordinates string

	// Version is advertised in node metadata.
	Version string

	// RefreshInterval is how often node metadata is re-gossiped (default 5s).
	RefreshInterval time.Duration

	// Logger receives beacon and memberlist output. Defaults to slog.Default.
	Logger *logging.Logger

	// Metrics records the seed join operation. May be nil.
	Metrics *observability.Metrics
}
