package recording

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/gogpu/scenestate/backend"
	"github.com/gogpu/scenestate/resource"
	"github.com/gogpu/scenestate/state"
)

// Recording is an immutable list of recorded commands together with the
// objects they reference.
type Recording struct {
	session   uuid.UUID
	commands  []Command
	resources *ResourcePool
}

// Session returns the id of the session the recording came from.
func (r *Recording) Session() uuid.UUID {
	return r.session
}

// Commands returns the recorded commands.
// The returned slice should not be modified.
func (r *Recording) Commands() []Command {
	return r.commands
}

// Resources returns the objects the commands reference.
func (r *Recording) Resources() *ResourcePool {
	return r.resources
}

// Len returns the number of commands.
func (r *Recording) Len() int {
	return len(r.commands)
}

// Count returns the number of commands of type t.
func (r *Recording) Count(t CommandType) int {
	n := 0
	for _, c := range r.commands {
		if c.Type() == t {
			n++
		}
	}
	return n
}

// Filter returns the commands whose type is one of types, in order.
func (r *Recording) Filter(types ...CommandType) []Command {
	var out []Command
	for _, c := range r.commands {
		if slices.Contains(types, c.Type()) {
			out = append(out, c)
		}
	}
	return out
}

// Frames splits the commands into frames. Each frame runs from a
// BeginFrame to its EndFrame, both included. Commands outside frames are
// skipped, as is an unterminated last frame.
func (r *Recording) Frames() [][]Command {
	var (
		frames [][]Command
		start  = -1
	)
	for i, c := range r.commands {
		switch c.Type() {
		case CmdBeginFrame:
			start = i
		case CmdEndFrame:
			if start >= 0 {
				frames = append(frames, r.commands[start:i+1])
				start = -1
			}
		}
	}
	return frames
}

// Playback replays the recording to b, which must be initialized. Atoms
// are realized on b's peers when first initialized; resources are
// uploaded through b's renderer. Validation commands are not replayed and
// failed commands are skipped.
//
// Playback stops at the first error.
func (r *Recording) Playback(b backend.Backend) error {
	p := &player{
		b:       b,
		rec:     r,
		records: make(map[*state.Atom]any),
	}
	for i, cmd := range r.commands {
		if err := p.play(cmd); err != nil {
			return fmt.Errorf("recording: playback of command %d (%s): %w", i, cmd.Type(), err)
		}
	}
	return nil
}

var errUnknownRef = errors.New("unknown reference")

type player struct {
	b       backend.Backend
	rec     *Recording
	records map[*state.Atom]any
}

func (p *player) atom(ref AtomRef) *state.Atom {
	if !ref.IsValid() {
		return nil
	}
	return p.rec.resources.GetAtom(ref)
}

// realize returns the record of a on the target backend, creating it on
// first use.
func (p *player) realize(a *state.Atom) (any, error) {
	if rec, ok := p.records[a]; ok {
		return rec, nil
	}
	rec, err := p.b.Peer(a.DynamicType()).Initialize(a)
	if err != nil {
		return nil, err
	}
	p.records[a] = rec
	return rec, nil
}

func (p *player) play(cmd Command) error {
	switch c := cmd.(type) {
	case ValidateCommand:
		return nil
	case InitializeCommand:
		if c.Err != nil {
			return nil
		}
		a := p.atom(c.Atom)
		if a == nil {
			return errUnknownRef
		}
		_, err := p.realize(a)
		return err
	case UpdateCommand:
		if c.Err != nil {
			return nil
		}
		a := p.atom(c.Atom)
		if a == nil {
			return errUnknownRef
		}
		rec, ok := p.records[a]
		if !ok {
			_, err := p.realize(a)
			return err
		}
		rec, err := p.b.Peer(a.DynamicType()).Update(a, rec)
		if err != nil {
			return err
		}
		p.records[a] = rec
		return nil
	case CleanupCommand:
		a := p.atom(c.Atom)
		if rec, ok := p.records[a]; ok {
			p.b.Peer(a.DynamicType()).Cleanup(a, rec)
			delete(p.records, a)
		}
		return nil
	case ApplyCommand:
		next := p.atom(c.Next)
		if next == nil {
			return errUnknownRef
		}
		nextRec, err := p.realize(next)
		if err != nil {
			return err
		}
		prev := p.atom(c.Prev)
		var prevRec any
		if prev != nil {
			prevRec = p.records[prev]
		}
		peer := p.b.Peer(c.DynamicType)
		peer.SetUnit(c.Unit)
		peer.Apply(prev, prevRec, next, nextRec)
		return nil
	case RestoreCommand:
		a := p.atom(c.Atom)
		peer := p.b.Peer(c.DynamicType)
		peer.SetUnit(c.Unit)
		peer.Restore(a, p.records[a])
		return nil
	case UpdateResourceCommand:
		res := p.rec.resources.GetResource(c.Resource)
		if res == nil {
			return errUnknownRef
		}
		if c.Status != resource.StatusReady {
			return nil
		}
		_, err := p.b.Resources().Update(res, c.ForceFull)
		return err
	case CleanUpResourceCommand:
		if res := p.rec.resources.GetResource(c.Resource); res != nil {
			p.b.Resources().CleanUp(res)
		}
		return nil
	case ReleaseResourceCommand:
		p.b.Resources().Release(c.ID)
		return nil
	case BeginFrameCommand:
		return p.b.BeginFrame(c.View)
	case DrawCommand:
		g := p.rec.resources.GetGeometry(c.Geometry)
		if g == nil {
			return errUnknownRef
		}
		_, err := p.b.Draw(g, c.Transform)
		return err
	case EndFrameCommand:
		return p.b.EndFrame()
	default:
		return fmt.Errorf("unsupported command %T", cmd)
	}
}
