package hostess

import (
	"fmt"
	"maps"

	"github.com/gezibash/arc-kernel/pkg/errors"
)

// RegisterEndpoint records ep under id, replacing any previous record.
// Endpoints are never evicted.
func (h *Hostess) RegisterEndpoint(id string, ep Endpoint) error {
	if id == "" {
		return fmt.Errorf("hostess: endpoint id is required: %w", errors.ErrInvalidInput)
	}
	if ep.Kind == "" {
		return fmt.Errorf("hostess: endpoint %s has no type: %w", id, errors.ErrInvalidInput)
	}
	ep.Metadata = maps.Clone(ep.Metadata)

	h.mu.Lock()
	h.endpoints[id] = ep
	h.mu.Unlock()

	h.log.Debug("endpoint recorded", "endpoint", id, "kind", ep.Kind, "coordinates", ep.Coordinates)
	return nil
}

// RemoveEndpoint drops id and reports whether it was present.
func (h *Hostess) RemoveEndpoint(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.endpoints[id]
	delete(h.endpoints, id)
	return ok
}

// ListEndpoints returns a copy of the endpoint table.
func (h *Hostess) ListEndpoints() map[string]Endpoint {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]Endpoint, len(h.endpoints))
	for id, ep := range h.endpoints {
		ep.Metadata = maps.Clone(ep.Metadata)
		out[id] = ep
	}
	return out
}
