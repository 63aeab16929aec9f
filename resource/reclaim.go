package resource

import (
	"runtime"
	"sync"
	"weak"
)

// Live managers receive the IDs of collected resources. Managers are held
// weakly so one dropped without Destroy can still be collected.
var (
	liveMu   sync.Mutex
	managers = make(map[weak.Pointer[DefaultManager]]struct{})
)

func register(m *DefaultManager) {
	wp := weak.Make(m)
	liveMu.Lock()
	managers[wp] = struct{}{}
	liveMu.Unlock()
	runtime.AddCleanup(m, forget, wp)
}

func unregister(m *DefaultManager) { forget(weak.Make(m)) }

func forget(wp weak.Pointer[DefaultManager]) {
	liveMu.Lock()
	delete(managers, wp)
	liveMu.Unlock()
}

// liveManagers returns the registered managers that are still reachable.
func liveManagers() []*DefaultManager {
	liveMu.Lock()
	defer liveMu.Unlock()
	live := make([]*DefaultManager, 0, len(managers))
	for wp := range managers {
		if m := wp.Value(); m != nil {
			live = append(live, m)
		} else {
			delete(managers, wp)
		}
	}
	return live
}

// reclaimed runs on the runtime cleanup goroutine.
func reclaimed(id ID) {
	for _, m := range liveManagers() {
		m.orphan(id)
	}
}
