package hostess

import (
	"maps"
	"slices"
	"time"
)

// Auth is a manifest's authentication requirement.
type Auth string

const (
	AuthNone     Auth = "no"
	AuthRequired Auth = "yes"
	AuthOptional Auth = "optional"
)

// Direction is the data direction of a terminal.
type Direction string

const (
	DirectionInput       Direction = "input"
	DirectionOutput      Direction = "output"
	DirectionMultiplexer Direction = "multiplexer"
)

// TerminalKind says whether a terminal is reached in-process or remotely.
type TerminalKind string

const (
	TerminalLocal  TerminalKind = "local"
	TerminalRemote TerminalKind = "remote"
)

// Role is a node's place in a topology.
type Role string

const (
	RoleSource    Role = "source"
	RoleTransform Role = "transform"
	RoleOutput    Role = "output"
	RoleInput     Role = "input"
)

// ReserveRole is the side a reserving peer plays on a terminal.
type ReserveRole string

const (
	// AsProducer reserves a terminal to write into it.
	AsProducer ReserveRole = "producer"
	// AsConsumer reserves a terminal to read from it.
	AsConsumer ReserveRole = "consumer"
)

// Allows reports whether a peer in role may reserve a terminal with
// direction d. Inputs take producers, outputs take consumers,
// multiplexers take either.
func (d Direction) Allows(role ReserveRole) bool {
	switch d {
	case DirectionInput:
		return role == AsProducer
	case DirectionOutput:
		return role == AsConsumer
	case DirectionMultiplexer:
		return role == AsProducer || role == AsConsumer
	}
	return false
}

// Terminal is a named endpoint a node exposes.
type Terminal struct {
	Name      string       `json:"name"`
	Kind      TerminalKind `json:"type"`
	Direction Direction    `json:"direction"`
}

// Capabilities describe what a node does, for discovery.
type Capabilities struct {
	Role     Role     `json:"type,omitempty"`
	Accepts  []string `json:"accepts,omitempty"`
	Produces []string `json:"produces,omitempty"`
	Features []string `json:"features,omitempty"`
}

func (c Capabilities) clone() Capabilities {
	c.Accepts = slices.Clone(c.Accepts)
	c.Produces = slices.Clone(c.Produces)
	c.Features = slices.Clone(c.Features)
	return c
}

// Manifest describes a node instance being registered.
type Manifest struct {
	FQDN          string            `json:"fqdn,omitempty"`
	ServerName    string            `json:"servername"`
	ClassHex      string            `json:"classHex,omitempty"`
	Owner         string            `json:"owner,omitempty"`
	Auth          Auth              `json:"auth,omitempty"`
	AuthMechanism string            `json:"authMechanism,omitempty"`
	Terminals     []Terminal        `json:"terminals"`
	Capabilities  Capabilities      `json:"capabilities"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	UUID          string            `json:"uuid,omitempty"`
}

// TerminalState is a terminal plus its current reservation.
type TerminalState struct {
	Name       string       `json:"name"`
	Kind       TerminalKind `json:"type"`
	Direction  Direction    `json:"direction"`
	ReservedBy string       `json:"reservedBy,omitempty"`
}

// Available reports whether the terminal is unreserved.
func (t TerminalState) Available() bool { return t.ReservedBy == "" }

// Entry is the registry's record of one registered instance. Values handed
// out by the registry are copies.
type Entry struct {
	ID            string            `json:"id"`
	FQDN          string            `json:"fqdn,omitempty"`
	ServerName    string            `json:"servername"`
	ClassHex      string            `json:"classHex,omitempty"`
	Owner         string            `json:"owner,omitempty"`
	Auth          Auth              `json:"auth,omitempty"`
	AuthMechanism string            `json:"authMechanism,omitempty"`
	Terminals     []TerminalState   `json:"terminals"`
	Capabilities  Capabilities      `json:"capabilities"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	RegisteredAt  time.Time         `json:"registeredAt"`
	LastHeartbeat time.Time         `json:"lastHeartbeat"`
}

// Available reports whether at least one terminal is unreserved.
func (e *Entry) Available() bool {
	return slices.ContainsFunc(e.Terminals, TerminalState.Available)
}

// Terminal returns the named terminal.
func (e *Entry) Terminal(name string) (TerminalState, bool) {
	for _, t := range e.Terminals {
		if t.Name == name {
			return t, true
		}
	}
	return TerminalState{}, false
}

func (e *Entry) terminal(name string) *TerminalState {
	for i := range e.Terminals {
		if e.Terminals[i].Name == name {
			return &e.Terminals[i]
		}
	}
	return nil
}

func (e *Entry) clone() Entry {
	c := *e
	c.Terminals = slices.Clone(e.Terminals)
	c.Capabilities = e.Capabilities.clone()
	c.Metadata = maps.Clone(e.Metadata)
	return c
}

// Filter selects entries by capability. Zero fields match everything.
type Filter struct {
	Role          Role     `json:"type,omitempty"`
	Accepts       string   `json:"accepts,omitempty"`
	Produces      string   `json:"produces,omitempty"`
	Features      []string `json:"features,omitempty"`
	AvailableOnly bool     `json:"availableOnly,omitempty"`
}

// Match reports whether e satisfies every set field of f.
func (f *Filter) Match(e *Entry) bool {
	if f == nil {
		return true
	}
	if f.Role != "" && e.Capabilities.Role != f.Role {
		return false
	}
	if f.Accepts != "" && !slices.Contains(e.Capabilities.Accepts, f.Accepts) {
		return false
	}
	if f.Produces != "" && !slices.Contains(e.Capabilities.Produces, f.Produces) {
		return false
	}
	for _, feat := range f.Features {
		if !slices.Contains(e.Capabilities.Features, feat) {
			return false
		}
	}
	if f.AvailableOnly && !e.Available() {
		return false
	}
	return true
}

// Endpoint is a peer known only by transport coordinates.
type Endpoint struct {
	Kind        string            `json:"type"`
	Coordinates string            `json:"coordinates"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// EventType names a registry change.
type EventType string

const (
	EventRegistered   EventType = "registered"
	EventEvicted      EventType = "evicted"
	EventDeregistered EventType = "deregistered"
	EventReserved     EventType = "reserved"
	EventReleased     EventType = "released"
)

// Event is a registry change delivered to watchers.
type Event struct {
	Type        EventType `json:"type"`
	ID          string    `json:"id"`
	ServerName  string    `json:"servername"`
	Terminal    string    `json:"terminal,omitempty"`
	Reservation string    `json:"reservation,omitempty"`
	At          time.Time `json:"at"`
}
