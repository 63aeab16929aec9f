package state

import (
	"errors"
	"fmt"
	"testing"
)

// fakePeer records every call so tests can count backend work.
type fakePeer struct {
	unit     Unit
	calls    []string
	fail     map[*Atom]error
	invalid  map[*Atom]bool
	bound    map[Unit]*Atom
	nextData int
}

func newFakePeer() *fakePeer {
	return &fakePeer{
		fail:    make(map[*Atom]error),
		invalid: make(map[*Atom]bool),
		bound:   make(map[Unit]*Atom),
	}
}

func (p *fakePeer) Validate(a *Atom) error {
	if p.invalid[a] {
		return errors.New("unsupported")
	}
	return nil
}

func (p *fakePeer) Initialize(a *Atom) (any, error) {
	p.calls = append(p.calls, fmt.Sprintf("init %d", a.ID()))
	if err := p.fail[a]; err != nil {
		return nil, err
	}
	p.nextData++
	return p.nextData, nil
}

func (p *fakePeer) Update(a *Atom, record any) (any, error) {
	p.calls = append(p.calls, fmt.Sprintf("update %d", a.ID()))
	if err := p.fail[a]; err != nil {
		return nil, err
	}
	return record, nil
}

func (p *fakePeer) Cleanup(a *Atom, _ any) {
	p.calls = append(p.calls, fmt.Sprintf("cleanup %d", a.ID()))
}

func (p *fakePeer) SetUnit(u Unit) { p.unit = u }

func (p *fakePeer) Apply(_ *Atom, _ any, next *Atom, _ any) {
	p.calls = append(p.calls, fmt.Sprintf("apply %d", next.ID()))
	p.bound[p.unit] = next
}

func (p *fakePeer) Restore(a *Atom, _ any) {
	p.calls = append(p.calls, fmt.Sprintf("restore %d", a.ID()))
	delete(p.bound, p.unit)
}

func (p *fakePeer) count(prefix string) int {
	n := 0
	for _, c := range p.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (p *fakePeer) reset() { p.calls = nil }

// fakeProvider hands out one fake peer per dynamic type.
type fakeProvider map[DynamicType]*fakePeer

func (f fakeProvider) Peer(t DynamicType) Peer {
	p, ok := f[t]
	if !ok {
		p = newFakePeer()
		f[t] = p
	}
	return p
}

// newCurrentContext returns a current context backed by fake peers.
func newCurrentContext(t *testing.T) (*Context, fakeProvider) {
	t.Helper()
	c, _, peers := newOwnedContext(t, fakeProvider{})
	return c, peers
}

// newOwnedContext makes a context over peers current and returns the
// owning handle with it.
func newOwnedContext(t *testing.T, peers fakeProvider) (*Context, *Current, fakeProvider) {
	t.Helper()
	c := NewContext(WithPeerProvider(peers), WithLabel(t.Name()))
	cur, err := c.MakeCurrent()
	if err != nil {
		t.Fatalf("MakeCurrent() = %v", err)
	}
	t.Cleanup(cur.Release)
	return c, cur, peers
}

func materialAtom(shininess float32) *Atom {
	return NewAtom(Material{Shininess: shininess})
}

func textureAtom() *Atom {
	return NewAtom(Texture{})
}
