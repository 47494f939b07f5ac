package domain

import (
	"fmt"
	"time"
)

// TransferStatus represents the lifecycle state of a transfer order
type TransferStatus string

const (
	TransferProposed  TransferStatus = "proposed"
	TransferApproved  TransferStatus = "approved"
	TransferCommitted TransferStatus = "committed"
	TransferInTransit TransferStatus = "in_transit"
	TransferReceived  TransferStatus = "received"
	TransferCancelled TransferStatus = "cancelled"
)

// transferStatuses is the closed set of valid statuses
var transferStatuses = map[TransferStatus]bool{
	TransferProposed:  true,
	TransferApproved:  true,
	TransferCommitted: true,
	TransferInTransit: true,
	TransferReceived:  true,
	TransferCancelled: true,
}

// transferTransitions encodes the forward path of the state machine.
// Cancellation is handled separately: reachable from any non-terminal state.
var transferTransitions = map[TransferStatus]TransferStatus{
	TransferProposed:  TransferApproved,
	TransferApproved:  TransferCommitted,
	TransferCommitted: TransferInTransit,
	TransferInTransit: TransferReceived,
}

// TransferPriority represents transfer urgency
type TransferPriority string

const (
	PriorityLow    TransferPriority = "low"
	PriorityNormal TransferPriority = "normal"
	PriorityHigh   TransferPriority = "high"
	PriorityUrgent TransferPriority = "urgent"
)

var transferPriorities = map[TransferPriority]bool{
	PriorityLow:    true,
	PriorityNormal: true,
	PriorityHigh:   true,
	PriorityUrgent: true,
}

// TransferLine is a single sku/quantity entry on a transfer order
type TransferLine struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// TransferOrder represents a stock movement between the warehouse hub and a store.
// Construction validates status, priority and confidence against their closed
// domains; invalid values fail construction and are never silently corrected.
type TransferOrder struct {
	TransferID string           `json:"transfer_id"`
	SourceHub  string           `json:"source_hub"`
	DestStore  string           `json:"dest_store"`
	Status     TransferStatus   `json:"status"`
	Priority   TransferPriority `json:"priority"`
	Lines      []TransferLine   `json:"lines"`
	Confidence float64          `json:"confidence"`
	Reason     string           `json:"reason"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// NewTransferOrder constructs a validated transfer order
func NewTransferOrder(
	transferID string,
	sourceHub string,
	destStore string,
	status TransferStatus,
	priority TransferPriority,
	lines []TransferLine,
	confidence float64,
	reason string,
) (*TransferOrder, error) {
	if transferID == "" {
		return nil, fmt.Errorf("transfer order requires a transfer id")
	}
	if sourceHub == "" || destStore == "" {
		return nil, fmt.Errorf("transfer order requires source hub and destination store")
	}
	if !transferStatuses[status] {
		return nil, fmt.Errorf("invalid transfer status: %q", status)
	}
	if !transferPriorities[priority] {
		return nil, fmt.Errorf("invalid transfer priority: %q", priority)
	}
	if confidence < 0 || confidence > 1 {
		return nil, fmt.Errorf("confidence must be within [0,1], got %v", confidence)
	}
	for _, line := range lines {
		if line.SKU == "" {
			return nil, fmt.Errorf("transfer line missing sku")
		}
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("transfer line for %s has non-positive quantity %d", line.SKU, line.Quantity)
		}
	}

	now := time.Now().UTC()
	return &TransferOrder{
		TransferID: transferID,
		SourceHub:  sourceHub,
		DestStore:  destStore,
		Status:     status,
		Priority:   priority,
		Lines:      lines,
		Confidence: confidence,
		Reason:     reason,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// IsTerminal reports whether the order is in a terminal state
func (o *TransferOrder) IsTerminal() bool {
	return o.Status == TransferReceived || o.Status == TransferCancelled
}

// CanTransition reports whether moving to the target status is legal
func (o *TransferOrder) CanTransition(target TransferStatus) bool {
	if !transferStatuses[target] {
		return false
	}
	if target == TransferCancelled {
		return !o.IsTerminal()
	}
	return transferTransitions[o.Status] == target
}

// TransitionTo advances the order to the target status, or fails if the
// transition is not part of the state machine
func (o *TransferOrder) TransitionTo(target TransferStatus) error {
	if !o.CanTransition(target) {
		return fmt.Errorf("illegal transfer transition %s -> %s", o.Status, target)
	}
	o.Status = target
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// TotalUnits returns the total quantity across all lines
func (o *TransferOrder) TotalUnits() int {
	total := 0
	for _, line := range o.Lines {
		total += line.Quantity
	}
	return total
}
