package beacon

import (
	"net"
	"strconv"

	"github.com/hashicorp/memberlist"

	"github.com/gezibash/arc-kernel/pkg/hostess"
	"github.com/gezibash/arc-kernel/pkg/logging"
)

// Sink receives endpoints learned from the cluster. *hostess.Hostess
// satisfies it.
type Sink interface {
	RegisterEndpoint(id string, ep hostess.Endpoint) error
}

// Endpoint metadata keys written by the beacon.
const (
	MetaStatus  = "status"
	MetaNode    = "node"
	MetaAddr    = "addr"
	MetaVersion = "version"
	MetaRTT     = "rtt_ns"
)

// resolveCoordinates returns routable coordinates for a peer.
// If the advertised coordinates are just a port (e.g., ":9000"), they are
// combined with the node's memberlist IP.
func resolveCoordinates(advertised string, nodeAddr net.IP) string {
	if advertised == "" {
		return ""
	}
	host, port, err := net.SplitHostPort(advertised)
	if err != nil {
		return advertised
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		return net.JoinHostPort(nodeAddr.String(), port)
	}
	return advertised
}

// eventDelegate mirrors cluster membership into a Sink.
type eventDelegate struct {
	local string
	sink  Sink
	pings *pingDelegate
	log   *logging.Logger
}

var _ memberlist.EventDelegate = (*eventDelegate)(nil)

func (e *eventDelegate) endpoint(node *memberlist.Node, status string) (hostess.Endpoint, bool) {
	meta, err := DecodeMeta(node.Meta)
	if err != nil {
		e.log.Warn("decode node meta failed", "node", node.Name, "error", err)
		return hostess.Endpoint{}, false
	}
	if meta.Kind == "" {
		// Peer does not advertise a transport.
		return hostess.Endpoint{}, false
	}
	md := map[string]string{
		MetaStatus: status,
		MetaNode:   node.Name,
		MetaAddr:   node.Address(),
	}
	if meta.Version != "" {
		md[MetaVersion] = meta.Version
	}
	if rtt := e.pings.RTT(node.Name); rtt > 0 {
		md[MetaRTT] = strconv.FormatInt(rtt.Nanoseconds(), 10)
	}
	return hostess.Endpoint{
		Kind:        meta.Kind,
		Coordinates: resolveCoordinates(meta.Coordinates, node.Addr),
		Metadata:    md,
	}, true
}

func (e *eventDelegate) record(node *memberlist.Node, status string) {
	if node.Name == e.local {
		return
	}
	ep, ok := e.endpoint(node, status)
	if !ok {
		return
	}
	if err := e.sink.RegisterEndpoint(node.Name, ep); err != nil {
		e.log.Warn("record peer endpoint failed", "node", node.Name, "error", err)
	}
}

// NotifyJoin is called when a node joins the cluster.
func (e *eventDelegate) NotifyJoin(node *memberlist.Node) {
	e.record(node, "alive")
	e.log.Info("node joined", "node", node.Name, "addr", node.Address())
}

// NotifyLeave is called when a node leaves or is declared dead. The
// endpoint is kept and marked left so callers can still see where the
// peer used to be.
func (e *eventDelegate) NotifyLeave(node *memberlist.Node) {
	e.record(node, "left")
	e.log.Info("node left", "node", node.Name, "addr", node.Address())
}

// NotifyUpdate is called when a node's metadata is updated.
func (e *eventDelegate) NotifyUpdate(node *memberlist.Node) {
	e.record(node, "alive")
	e.log.Debug("node updated", "node", node.Name)
}
