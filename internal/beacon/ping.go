package beacon

import (
	"sync"
	"time"

	"github.com/hashicorp/memberlist"
)

// pingDelegate records the RTT of SWIM probes per node.
type pingDelegate struct {
	mu        sync.RWMutex
	latencies map[string]time.Duration // nodeName → RTT
}

var _ memberlist.PingDelegate = (*pingDelegate)(nil)

func newPingDelegate() *pingDelegate {
	return &pingDelegate{latencies: make(map[string]time.Duration)}
}

func (p *pingDelegate) AckPayload() []byte { return nil }

func (p *pingDelegate) NotifyPingComplete(node *memberlist.Node, rtt time.Duration, _ []byte) {
	p.mu.Lock()
	p.latencies[node.Name] = rtt
	p.mu.Unlock()
}

// RTT returns the last measured RTT, or 0 if none yet.
func (p *pingDelegate) RTT(nodeName string) time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latencies[nodeName]
}
