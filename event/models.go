// Package event defines the structured records emitted for every committed
// state change.
package event

import (
	"time"

	"github.com/xraph/drip/id"
	"github.com/xraph/drip/types"
)

// Name identifies a logical action.
type Name string

const (
	StreamCreated          Name = "stream-created"
	StreamClaimed          Name = "stream-claimed"
	StreamCancelled        Name = "stream-cancelled"
	StreamPaused           Name = "stream-paused"
	StreamResumed          Name = "stream-resumed"
	ContractPaused         Name = "contract-paused"
	ContractUnpaused       Name = "contract-unpaused"
	FeeRateUpdated         Name = "fee-rate-updated"
	RoleGranted            Name = "role-granted"
	RoleRevoked            Name = "role-revoked"
	AdminTransferInitiated Name = "admin-transfer-initiated"
	AdminTransferAccepted  Name = "admin-transfer-accepted"
	AdminTransferCancelled Name = "admin-transfer-cancelled"
	TreasuryLocked         Name = "treasury-locked"
	TreasuryUnlocked       Name = "treasury-unlocked"
	TreasuryWithdrawn      Name = "treasury-withdrawn"
	EmergencyStateChanged  Name = "emergency-state-changed"
)

// Event is one structured record of a committed action.
type Event struct {
	ID        id.EventID     `json:"id"`
	Seq       uint64         `json:"seq"`
	Name      Name           `json:"name"`
	Height    types.Height   `json:"height"`
	StreamID  uint64         `json:"stream_id,omitempty"`
	Actor     types.Identity `json:"actor"`
	Fields    map[string]any `json:"fields,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// New returns an event stamped with a fresh id and the current time.
func New(name Name, height types.Height, actor types.Identity, fields map[string]any) *Event {
	return &Event{
		ID:        id.NewEventID(),
		Name:      name,
		Height:    height,
		Actor:     actor,
		Fields:    fields,
		Timestamp: time.Now().UTC(),
	}
}

// ForStream sets the stream the event refers to.
func (e *Event) ForStream(streamID uint64) *Event {
	e.StreamID = streamID
	return e
}

// ListOpts filters event listings. Zero fields match everything.
type ListOpts struct {
	StreamID uint64
	Name     Name
	Limit    int
	Offset   int
}

// Matches reports whether e satisfies the filter fields of o.
func (o ListOpts) Matches(e *Event) bool {
	if o.StreamID != 0 && e.StreamID != o.StreamID {
		return false
	}
	if o.Name != "" && e.Name != o.Name {
		return false
	}
	return true
}
