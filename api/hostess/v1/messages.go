// Package hostessv1 defines the Hostess registry gRPC service: its messages,
// the service descriptor, and a typed client.
package hostessv1

import (
	"time"

	"github.com/gezibash/arc-kernel/pkg/hostess"
)

type Empty struct{}

type InfoResponse struct {
	HeartbeatInterval time.Duration `json:"heartbeatInterval"`
	EvictionThreshold time.Duration `json:"evictionThreshold"`
}

type RegisterRequest struct {
	Manifest hostess.Manifest `json:"manifest"`
}

type RegisterResponse struct {
	ID string `json:"id"`
}

type IDRequest struct {
	ID string `json:"id"`
}

type EntryResponse struct {
	Entry hostess.Entry `json:"entry"`
}

type ReserveRequest struct {
	ID          string              `json:"id"`
	Terminal    string              `json:"terminal"`
	Reservation string              `json:"reservation"`
	Role        hostess.ReserveRole `json:"role,omitempty"`
}

type ReleaseRequest struct {
	ID       string `json:"id"`
	Terminal string `json:"terminal"`
}

type QueryRequest struct {
	Filter *hostess.Filter `json:"filter,omitempty"`
}

type QueryExprRequest struct {
	Expr string `json:"expr"`
}

type EntriesResponse struct {
	Entries []hostess.Entry `json:"entries"`
}

type EndpointRequest struct {
	ID       string           `json:"id"`
	Endpoint hostess.Endpoint `json:"endpoint"`
}

type RemoveEndpointResponse struct {
	Removed bool `json:"removed"`
}

type EndpointsResponse struct {
	Endpoints map[string]hostess.Endpoint `json:"endpoints"`
}

// WatchRequest optionally narrows the event stream to the given types.
type WatchRequest struct {
	Types []hostess.EventType `json:"types,omitempty"`
}
