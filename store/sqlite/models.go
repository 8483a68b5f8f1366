package sqlite

import (
	"encoding/json"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/drip/access"
	"github.com/xraph/drip/event"
	"github.com/xraph/drip/id"
	"github.com/xraph/drip/stream"
	"github.com/xraph/drip/types"
)

// ==================== Stream models ====================

type streamModel struct {
	grove.BaseModel `grove:"table:drip_streams"`

	ID              int64     `grove:"id,pk"`
	Sender          string    `grove:"sender"`
	Recipient       string    `grove:"recipient"`
	TotalAmount     int64     `grove:"total_amount"`
	AmountPerBlock  int64     `grove:"amount_per_block"`
	StartBlock      int64     `grove:"start_block"`
	EndBlock        int64     `grove:"end_block"`
	LastClaimBlock  int64     `grove:"last_claim_block"`
	ClaimedAmount   int64     `grove:"claimed_amount"`
	Status          string    `grove:"status"`
	PauseStartBlock *int64    `grove:"pause_start_block"`
	PausedDuration  int64     `grove:"paused_duration"`
	FeeRate         int64     `grove:"fee_rate"`
	Fee             int64     `grove:"fee"`
	Metadata        string    `grove:"metadata"`
	CreatedBlock    int64     `grove:"created_block"`
	CreatedAt       time.Time `grove:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at"`
}

var streamColumns = []string{
	"sender", "recipient", "total_amount", "amount_per_block",
	"start_block", "end_block", "last_claim_block", "claimed_amount",
	"status", "pause_start_block", "paused_duration", "fee_rate", "fee",
	"metadata", "created_block", "updated_at",
}

func toStreamModel(s *stream.Stream) *streamModel {
	m := &streamModel{
		ID:             int64(s.ID),
		Sender:         string(s.Sender),
		Recipient:      string(s.Recipient),
		TotalAmount:    int64(s.TotalAmount),
		AmountPerBlock: int64(s.AmountPerBlock),
		StartBlock:     int64(s.StartBlock),
		EndBlock:       int64(s.EndBlock),
		LastClaimBlock: int64(s.LastClaimBlock),
		ClaimedAmount:  int64(s.ClaimedAmount),
		Status:         string(s.Status),
		PausedDuration: int64(s.PausedDuration),
		FeeRate:        int64(s.FeeRate),
		Fee:            int64(s.Fee),
		Metadata:       s.Metadata,
		CreatedBlock:   int64(s.CreatedBlock),
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
	if s.PauseStartBlock != nil {
		h := int64(*s.PauseStartBlock)
		m.PauseStartBlock = &h
	}
	return m
}

func fromStreamModel(m *streamModel) *stream.Stream {
	s := &stream.Stream{
		Entity:         types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:             uint64(m.ID),
		Sender:         types.Identity(m.Sender),
		Recipient:      types.Identity(m.Recipient),
		TotalAmount:    types.Amount(m.TotalAmount),
		AmountPerBlock: types.Amount(m.AmountPerBlock),
		StartBlock:     types.Height(m.StartBlock),
		EndBlock:       types.Height(m.EndBlock),
		LastClaimBlock: types.Height(m.LastClaimBlock),
		ClaimedAmount:  types.Amount(m.ClaimedAmount),
		Status:         stream.Status(m.Status),
		PausedDuration: uint64(m.PausedDuration),
		FeeRate:        uint64(m.FeeRate),
		Fee:            types.Amount(m.Fee),
		Metadata:       m.Metadata,
		CreatedBlock:   types.Height(m.CreatedBlock),
	}
	if m.PauseStartBlock != nil {
		h := types.Height(*m.PauseStartBlock)
		s.PauseStartBlock = &h
	}
	return s
}

// ==================== Aggregate models ====================

// Created and Receiving hold JSON arrays of stream ids.
type aggregateModel struct {
	grove.BaseModel `grove:"table:drip_aggregates"`

	Identity       string    `grove:"identity,pk"`
	Created        string    `grove:"created"`
	Receiving      string    `grove:"receiving"`
	CreatedCount   int64     `grove:"created_count"`
	ReceivingCount int64     `grove:"receiving_count"`
	ActiveOutgoing int64     `grove:"active_outgoing"`
	VolumeSent     int64     `grove:"volume_sent"`
	VolumeReceived int64     `grove:"volume_received"`
	CreatedAt      time.Time `grove:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"`
}

var aggregateColumns = []string{
	"created", "receiving", "created_count", "receiving_count",
	"active_outgoing", "volume_sent", "volume_received", "updated_at",
}

func encodeIDs(ids []uint64) (string, error) {
	if ids == nil {
		ids = []uint64{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeIDs(raw string) ([]uint64, error) {
	if raw == "" {
		return nil, nil
	}
	var ids []uint64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return ids, nil
}

func toAggregateModel(a *stream.Aggregate) (*aggregateModel, error) {
	created, err := encodeIDs(a.Created)
	if err != nil {
		return nil, err
	}
	receiving, err := encodeIDs(a.Receiving)
	if err != nil {
		return nil, err
	}
	return &aggregateModel{
		Identity:       string(a.Identity),
		Created:        created,
		Receiving:      receiving,
		CreatedCount:   int64(a.CreatedCount),
		ReceivingCount: int64(a.ReceivingCount),
		ActiveOutgoing: int64(a.ActiveOutgoing),
		VolumeSent:     int64(a.VolumeSent),
		VolumeReceived: int64(a.VolumeReceived),
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}, nil
}

func fromAggregateModel(m *aggregateModel) (*stream.Aggregate, error) {
	created, err := decodeIDs(m.Created)
	if err != nil {
		return nil, err
	}
	receiving, err := decodeIDs(m.Receiving)
	if err != nil {
		return nil, err
	}
	return &stream.Aggregate{
		Entity:         types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		Identity:       types.Identity(m.Identity),
		Created:        created,
		Receiving:      receiving,
		CreatedCount:   uint64(m.CreatedCount),
		ReceivingCount: uint64(m.ReceivingCount),
		ActiveOutgoing: uint64(m.ActiveOutgoing),
		VolumeSent:     types.Amount(m.VolumeSent),
		VolumeReceived: types.Amount(m.VolumeReceived),
	}, nil
}

// ==================== Globals models ====================

const globalsID = "globals"

type globalsModel struct {
	grove.BaseModel `grove:"table:drip_globals"`

	ID             string `grove:"id,pk"`
	NextID         int64  `grove:"next_id"`
	Paused         bool   `grove:"paused"`
	FeeRate        int64  `grove:"fee_rate"`
	TotalStreams   int64  `grove:"total_streams"`
	ActiveStreams  int64  `grove:"active_streams"`
	TotalVolume    int64  `grove:"total_volume"`
	TotalFees      int64  `grove:"total_fees"`
	TotalClaimed   int64  `grove:"total_claimed"`
	TotalRefunded  int64  `grove:"total_refunded"`
	EventSeq       int64  `grove:"event_seq"`
	TreasuryLocked bool   `grove:"treasury_locked"`
	EmergencyState string `grove:"emergency_state"`
}

var globalsColumns = []string{
	"next_id", "paused", "fee_rate", "total_streams", "active_streams",
	"total_volume", "total_fees", "total_claimed", "total_refunded",
	"event_seq", "treasury_locked", "emergency_state",
}

func toGlobalsModel(g *stream.Globals) *globalsModel {
	return &globalsModel{
		ID:             globalsID,
		NextID:         int64(g.NextID),
		Paused:         g.Paused,
		FeeRate:        int64(g.FeeRate),
		TotalStreams:   int64(g.TotalStreams),
		ActiveStreams:  int64(g.ActiveStreams),
		TotalVolume:    int64(g.TotalVolume),
		TotalFees:      int64(g.TotalFees),
		TotalClaimed:   int64(g.TotalClaimed),
		TotalRefunded:  int64(g.TotalRefunded),
		EventSeq:       int64(g.EventSeq),
		TreasuryLocked: g.TreasuryLocked,
		EmergencyState: g.EmergencyState,
	}
}

func fromGlobalsModel(m *globalsModel) *stream.Globals {
	return &stream.Globals{
		NextID:         uint64(m.NextID),
		Paused:         m.Paused,
		FeeRate:        uint64(m.FeeRate),
		TotalStreams:   uint64(m.TotalStreams),
		ActiveStreams:  uint64(m.ActiveStreams),
		TotalVolume:    types.Amount(m.TotalVolume),
		TotalFees:      types.Amount(m.TotalFees),
		TotalClaimed:   types.Amount(m.TotalClaimed),
		TotalRefunded:  types.Amount(m.TotalRefunded),
		EventSeq:       uint64(m.EventSeq),
		TreasuryLocked: m.TreasuryLocked,
		EmergencyState: m.EmergencyState,
	}
}

// ==================== Access models ====================

type roleModel struct {
	grove.BaseModel `grove:"table:drip_roles"`

	Identity  string    `grove:"identity,pk"`
	Roles     int32     `grove:"roles"`
	CreatedAt time.Time `grove:"created_at"`
	UpdatedAt time.Time `grove:"updated_at"`
}

func fromRoleModel(m *roleModel) *access.Assignment {
	return &access.Assignment{
		Entity:   types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		Identity: types.Identity(m.Identity),
		Roles:    access.RoleSet(m.Roles),
	}
}

type pendingModel struct {
	grove.BaseModel `grove:"table:drip_pending_transfers"`

	From        string    `grove:"from_admin,pk"`
	To          string    `grove:"to_admin"`
	InitiatedAt int64     `grove:"initiated_at"`
	CreatedAt   time.Time `grove:"created_at"`
	UpdatedAt   time.Time `grove:"updated_at"`
}

func toPendingModel(p *access.PendingTransfer) *pendingModel {
	return &pendingModel{
		From:        string(p.From),
		To:          string(p.To),
		InitiatedAt: int64(p.InitiatedAt),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func fromPendingModel(m *pendingModel) *access.PendingTransfer {
	return &access.PendingTransfer{
		Entity:      types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		From:        types.Identity(m.From),
		To:          types.Identity(m.To),
		InitiatedAt: types.Height(m.InitiatedAt),
	}
}

// ==================== Event models ====================

type eventModel struct {
	grove.BaseModel `grove:"table:drip_events"`

	ID        string    `grove:"id,pk"`
	Seq       int64     `grove:"seq"`
	Name      string    `grove:"name"`
	Height    int64     `grove:"height"`
	StreamID  int64     `grove:"stream_id"`
	Actor     string    `grove:"actor"`
	Fields    string    `grove:"fields"`
	Timestamp time.Time `grove:"timestamp"`
}

func toEventModel(e *event.Event) (*eventModel, error) {
	fields := "{}"
	if len(e.Fields) > 0 {
		data, err := json.Marshal(e.Fields)
		if err != nil {
			return nil, err
		}
		fields = string(data)
	}
	return &eventModel{
		ID:        e.ID.String(),
		Seq:       int64(e.Seq),
		Name:      string(e.Name),
		Height:    int64(e.Height),
		StreamID:  int64(e.StreamID),
		Actor:     string(e.Actor),
		Fields:    fields,
		Timestamp: e.Timestamp,
	}, nil
}

func fromEventModel(m *eventModel) (*event.Event, error) {
	eventID, err := id.ParseEventID(m.ID)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if m.Fields != "" {
		if err := json.Unmarshal([]byte(m.Fields), &fields); err != nil {
			return nil, err
		}
	}
	if len(fields) == 0 {
		fields = nil
	}
	return &event.Event{
		ID:        eventID,
		Seq:       uint64(m.Seq),
		Name:      event.Name(m.Name),
		Height:    types.Height(m.Height),
		StreamID:  uint64(m.StreamID),
		Actor:     types.Identity(m.Actor),
		Fields:    fields,
		Timestamp: m.Timestamp,
	}, nil
}
