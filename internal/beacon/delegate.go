package beacon

import (
	"sync"

	"github.com/hashicorp/memberlist"

	"github.com/gezibash/arc-kernel/pkg/logging"
)

// delegate publishes this node's Meta. The beacon gossips no user state;
// everything a peer needs is in the node metadata.
type delegate struct {
	mu   sync.Mutex
	meta Meta
	log  *logging.Logger
}

var _ memberlist.Delegate = (*delegate)(nil)

func (d *delegate) setUptime(ns uint64) {
	d.mu.Lock()
	d.meta.Uptime = ns
	d.mu.Unlock()
}

// NodeMeta returns metadata about this node (must fit in limit bytes).
func (d *delegate) NodeMeta(limit int) []byte {
	d.mu.Lock()
	data := d.meta.Encode()
	d.mu.Unlock()
	if len(data) > limit {
		d.log.Warn("node meta exceeds limit", "size", len(data), "limit", limit)
		return data[:limit]
	}
	return data
}

func (d *delegate) NotifyMsg([]byte)                   {}
func (d *delegate) GetBroadcasts(int, int) [][]byte    { return nil }
func (d *delegate) LocalState(bool) []byte             { return nil }
func (d *delegate) MergeRemoteState(buf []byte, _ bool) {}
