package resource

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// ID identifies a resource process-wide. IDs are never reused.
type ID uint64

var lastID atomic.Uint64

// Status is the backend state of a resource.
type Status int32

const (
	// StatusDisposed means the resource holds no backend memory. It is the
	// status of resources that were never realized.
	StatusDisposed Status = iota
	// StatusReady means the backend copy is current and usable.
	StatusReady
	// StatusError means the last backend update failed.
	StatusError
	// StatusUnsupported means the backend cannot represent the resource.
	// An unsupported resource never becomes ready.
	StatusUnsupported
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusDisposed:
		return "DISPOSED"
	case StatusReady:
		return "READY"
	case StatusError:
		return "ERROR"
	case StatusUnsupported:
		return "UNSUPPORTED"
	default:
		return fmt.Sprintf("Status(%d)", int32(s))
	}
}

// UpdatePolicy controls when pending edits reach the backend.
type UpdatePolicy int32

const (
	// OnDemand realizes pending edits right before the resource is used.
	OnDemand UpdatePolicy = iota
	// Manual requires an explicit update request.
	Manual
)

// String returns the policy name.
func (p UpdatePolicy) String() string {
	switch p {
	case OnDemand:
		return "ON_DEMAND"
	case Manual:
		return "MANUAL"
	default:
		return fmt.Sprintf("UpdatePolicy(%d)", int32(p))
	}
}

// ParseUpdatePolicy parses "on-demand"/"ON_DEMAND" or "manual"/"MANUAL".
func ParseUpdatePolicy(s string) (UpdatePolicy, error) {
	switch s {
	case "on-demand", "on_demand", "ON_DEMAND", "":
		return OnDemand, nil
	case "manual", "MANUAL":
		return Manual, nil
	}
	return OnDemand, fmt.Errorf("resource: unknown update policy %q", s)
}

// Resource is implemented by every GPU-resident object. Concrete types
// embed [Base].
type Resource interface {
	ID() ID
	UpdatePolicy() UpdatePolicy
	SetUpdatePolicy(UpdatePolicy)
	Status() Status

	base() *Base
}

// Base holds the bookkeeping shared by all resources. The zero value is
// ready to use; the ID is assigned on first access.
type Base struct {
	id          atomic.Uint64
	policy      atomic.Int32
	status      atomic.Int32
	dirty       atomic.Bool
	unsupported atomic.Bool

	mu      sync.Mutex
	message string
}

func (b *Base) base() *Base { return b }

// ID returns the process-wide identifier of the resource.
func (b *Base) ID() ID {
	if id := b.id.Load(); id != 0 {
		return ID(id)
	}
	b.id.CompareAndSwap(0, lastID.Add(1))
	return ID(b.id.Load())
}

// UpdatePolicy returns the current update policy.
func (b *Base) UpdatePolicy() UpdatePolicy {
	return UpdatePolicy(b.policy.Load())
}

// SetUpdatePolicy changes the update policy. Safe from any goroutine.
func (b *Base) SetUpdatePolicy(p UpdatePolicy) {
	b.policy.Store(int32(p))
}

// Status returns the last status reported by a manager.
func (b *Base) Status() Status {
	return Status(b.status.Load())
}

// StatusMessage describes the last ERROR or UNSUPPORTED status.
func (b *Base) StatusMessage() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.message
}

// MarkDirty records that the resource has edits the backend has not seen.
func (b *Base) MarkDirty() {
	b.dirty.Store(true)
}

// IsDirty reports whether edits are pending.
func (b *Base) IsDirty() bool {
	return b.dirty.Load()
}

func (b *Base) setStatus(s Status, msg string) {
	if s == StatusUnsupported {
		b.unsupported.Store(true)
	}
	if s == StatusReady && b.unsupported.Load() {
		return
	}
	b.status.Store(int32(s))
	b.mu.Lock()
	b.message = msg
	b.mu.Unlock()
}
