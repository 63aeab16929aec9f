package recording

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/scenestate/queue"
	"github.com/gogpu/scenestate/resource"
	"github.com/gogpu/scenestate/state"
)

// CommandType identifies the type of a command.
// Each command type corresponds to one call the recorder received.
type CommandType uint8

const (
	// Peer commands
	CmdValidate   CommandType = iota // Peer validated an atom
	CmdInitialize                    // Peer created a record
	CmdUpdate                        // Peer refreshed a record
	CmdCleanup                       // Peer released a record
	CmdApply                         // Peer bound an atom to a unit
	CmdRestore                       // Peer unbound a unit

	// Resource commands
	CmdUpdateResource  // Resource uploaded
	CmdCleanUpResource // Resource memory released on request
	CmdReleaseResource // Memory of a collected resource released

	// Frame commands
	CmdBeginFrame // Frame started
	CmdDraw       // Geometry drawn
	CmdEndFrame   // Frame submitted
)

// commandTypeNames maps CommandType values to their string representation.
var commandTypeNames = [...]string{
	CmdValidate:        "Validate",
	CmdInitialize:      "Initialize",
	CmdUpdate:          "Update",
	CmdCleanup:         "Cleanup",
	CmdApply:           "Apply",
	CmdRestore:         "Restore",
	CmdUpdateResource:  "UpdateResource",
	CmdCleanUpResource: "CleanUpResource",
	CmdReleaseResource: "ReleaseResource",
	CmdBeginFrame:      "BeginFrame",
	CmdDraw:            "Draw",
	CmdEndFrame:        "EndFrame",
}

// String returns the string representation of a CommandType.
func (c CommandType) String() string {
	if int(c) < len(commandTypeNames) {
		return commandTypeNames[c]
	}
	return "Unknown"
}

// Command is the interface implemented by all command types.
type Command interface {
	// Type returns the CommandType for this command.
	Type() CommandType
}

// --------------------------------------------------------------------------
// Reference Types
// --------------------------------------------------------------------------

// AtomRef is a reference to an atom in the resource pool.
type AtomRef uint32

// ResourceRef is a reference to a resource in the resource pool.
type ResourceRef uint32

// GeometryRef is a reference to a geometry in the resource pool.
type GeometryRef uint32

// InvalidRef is the sentinel value for an invalid reference.
const InvalidRef = ^uint32(0)

// IsValid returns true if the reference points to a pooled atom.
func (r AtomRef) IsValid() bool {
	return uint32(r) != InvalidRef
}

// IsValid returns true if the reference points to a pooled resource.
func (r ResourceRef) IsValid() bool {
	return uint32(r) != InvalidRef
}

// IsValid returns true if the reference points to a pooled geometry.
func (r GeometryRef) IsValid() bool {
	return uint32(r) != InvalidRef
}

// --------------------------------------------------------------------------
// Peer Commands
// --------------------------------------------------------------------------

// ValidateCommand records a validation, successful or not.
type ValidateCommand struct {
	Atom AtomRef
	// Err is the injected failure, or nil.
	Err error
}

// Type implements Command.
func (ValidateCommand) Type() CommandType { return CmdValidate }

// InitializeCommand records the creation of a record.
type InitializeCommand struct {
	Atom AtomRef
	// Payload is the payload the record was built from.
	Payload state.Payload
	Err     error
}

// Type implements Command.
func (InitializeCommand) Type() CommandType { return CmdInitialize }

// UpdateCommand records the refresh of an existing record.
type UpdateCommand struct {
	Atom    AtomRef
	Payload state.Payload
	Err     error
}

// Type implements Command.
func (UpdateCommand) Type() CommandType { return CmdUpdate }

// CleanupCommand records the release of a record.
type CleanupCommand struct {
	Atom AtomRef
}

// Type implements Command.
func (CleanupCommand) Type() CommandType { return CmdCleanup }

// ApplyCommand records the binding of Next in place of Prev.
type ApplyCommand struct {
	DynamicType state.DynamicType
	Unit        state.Unit
	// Prev is InvalidRef when the unit held nothing.
	Prev AtomRef
	Next AtomRef
	// Payload is the payload of Next's record.
	Payload state.Payload
}

// Type implements Command.
func (ApplyCommand) Type() CommandType { return CmdApply }

// RestoreCommand records a unit returning to its default state.
type RestoreCommand struct {
	DynamicType state.DynamicType
	Unit        state.Unit
	Atom        AtomRef
}

// Type implements Command.
func (RestoreCommand) Type() CommandType { return CmdRestore }

// --------------------------------------------------------------------------
// Resource Commands
// --------------------------------------------------------------------------

// UpdateResourceCommand records a resource upload.
type UpdateResourceCommand struct {
	Resource  ResourceRef
	ForceFull bool
	// Status is the status reported to the resource manager.
	Status resource.Status
}

// Type implements Command.
func (UpdateResourceCommand) Type() CommandType { return CmdUpdateResource }

// CleanUpResourceCommand records an explicit clean-up.
type CleanUpResourceCommand struct {
	Resource ResourceRef
}

// Type implements Command.
func (CleanUpResourceCommand) Type() CommandType { return CmdCleanUpResource }

// ReleaseResourceCommand records the release of a collected resource.
// Collected resources are gone, so only the ID remains.
type ReleaseResourceCommand struct {
	ID resource.ID
}

// Type implements Command.
func (ReleaseResourceCommand) Type() CommandType { return CmdReleaseResource }

// --------------------------------------------------------------------------
// Frame Commands
// --------------------------------------------------------------------------

// BeginFrameCommand starts a frame.
type BeginFrameCommand struct {
	View queue.View
}

// Type implements Command.
func (BeginFrameCommand) Type() CommandType { return CmdBeginFrame }

// DrawCommand draws a geometry with the state bound at the time.
type DrawCommand struct {
	Geometry  GeometryRef
	Transform mgl32.Mat4
	Polygons  int
}

// Type implements Command.
func (DrawCommand) Type() CommandType { return CmdDraw }

// EndFrameCommand submits a frame.
type EndFrameCommand struct{}

// Type implements Command.
func (EndFrameCommand) Type() CommandType { return CmdEndFrame }
