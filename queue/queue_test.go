package queue

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

type triangles int

func (t triangles) PolygonCount() int { return int(t) }

// recorder is a Renderer that remembers the draw order.
type recorder struct {
	order      []*RenderAtom
	influenced map[*RenderAtom][]float32
	ended      int
	fail       map[*RenderAtom]bool
}

func newRecorder() *recorder {
	return &recorder{influenced: make(map[*RenderAtom][]float32), fail: make(map[*RenderAtom]bool)}
}

func (r *recorder) ApplyInfluence(a *RenderAtom, _ InfluenceAtom, score float32) {
	r.influenced[a] = append(r.influenced[a], score)
}

func (r *recorder) RenderAtom(a *RenderAtom, _ *View) (int, error) {
	r.order = append(r.order, a)
	if r.fail[a] {
		return 0, errors.New("draw failed")
	}
	return a.PolygonCount(), nil
}

func (r *recorder) EndAtom(*RenderAtom) { r.ended++ }

type constInfluence float32

func (c constInfluence) Influences(*RenderAtom) float32 { return float32(c) }

func TestBasicFlushSumsPolygons(t *testing.T) {
	q := NewBasic()
	a, b := NewRenderAtom(triangles(3), nil), NewRenderAtom(triangles(4), nil)
	q.Add(a)
	q.Add(nil)
	q.Add(b)
	q.AddInfluence(constInfluence(0.5))
	q.AddInfluence(constInfluence(0))

	r := newRecorder()
	n, err := q.Flush(r, &View{})
	if err != nil {
		t.Fatal(err)
	}
	if n != 7 {
		t.Errorf("polygons = %d, want 7", n)
	}
	if q.Len() != 2 || r.ended != 2 {
		t.Errorf("Len() = %d, ended = %d", q.Len(), r.ended)
	}
	if got := r.influenced[a]; len(got) != 1 || got[0] != 0.5 {
		t.Errorf("influences on a = %v, want [0.5]", got)
	}
}

func TestBasicFlushJoinsErrors(t *testing.T) {
	q := NewBasic()
	a, b := NewRenderAtom(triangles(1), nil), NewRenderAtom(triangles(2), nil)
	q.Add(a)
	q.Add(b)
	r := newRecorder()
	r.fail[a] = true

	n, err := q.Flush(r, &View{})
	if err == nil {
		t.Fatal("expected error")
	}
	if n != 2 || len(r.order) != 2 {
		t.Errorf("polygons = %d, drawn = %d; a failure should not stop the flush", n, len(r.order))
	}
}

func TestOptimizeRunsOncePerCycle(t *testing.T) {
	calls := 0
	q := &Basic{}
	q.init(func(*View, []*RenderAtom) { calls++ })
	q.Add(NewRenderAtom(triangles(1), nil))

	for range 3 {
		if _, err := q.Flush(newRecorder(), &View{}); err != nil {
			t.Fatal(err)
		}
	}
	if calls != 1 {
		t.Errorf("optimizer ran %d times, want 1", calls)
	}
	q.Clear()
	q.Add(NewRenderAtom(triangles(1), nil))
	if _, err := q.Flush(newRecorder(), &View{}); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("optimizer ran %d times after Clear, want 2", calls)
	}
}

func TestDepthSortingOrder(t *testing.T) {
	atAt := func(z float32) *RenderAtom {
		a := NewRenderAtom(triangles(1), nil)
		a.Transform = mgl32.Translate3D(0, 0, z)
		return a
	}
	near, mid, far := atAt(1), atAt(5), atAt(10)
	view := &View{Position: mgl32.Vec3{0, 0, 0}}

	tests := []struct {
		name        string
		frontToBack bool
		want        []*RenderAtom
	}{
		{"front to back", true, []*RenderAtom{near, mid, far}},
		{"back to front", false, []*RenderAtom{far, mid, near}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewDepthSorting(tt.frontToBack)
			for _, a := range []*RenderAtom{mid, far, near} {
				q.Add(a)
			}
			r := newRecorder()
			if _, err := q.Flush(r, view); err != nil {
				t.Fatal(err)
			}
			for i := range tt.want {
				if r.order[i] != tt.want[i] {
					t.Fatalf("position %d: got atom at z=%v", i, r.order[i].WorldCenter()[2])
				}
			}
		})
	}
}

func TestQueueDataIsPerQueue(t *testing.T) {
	a := NewRenderAtom(nil, nil)
	q1, q2 := NewStateSorting(), NewStateSorting()
	q1.Add(a)
	q2.Add(a)
	if a.QueueData(q1.ID()) == nil || a.QueueData(q2.ID()) == nil {
		t.Fatal("each queue should store its own data")
	}
	if a.QueueData(q1.ID()) == a.QueueData(q2.ID()) {
		t.Error("queues share a data record")
	}
	a.SetQueueData(q1.ID(), nil)
	if a.QueueData(q1.ID()) != nil {
		t.Error("SetQueueData(nil) should remove the entry")
	}
	a.ClearQueueData()
	if a.QueueData(q2.ID()) != nil {
		t.Error("ClearQueueData left data behind")
	}
}

func TestBasicGrow(t *testing.T) {
	q := NewBasic()
	q.Grow(64)
	if cap(q.Atoms()) < 64 || q.Len() != 0 {
		t.Errorf("cap = %d, Len() = %d after Grow(64)", cap(q.Atoms()), q.Len())
	}
	q.Grow(-1)
	q.Add(NewRenderAtom(triangles(1), nil))
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1", q.Len())
	}
}
