// ABOUTME: Size-bounded window of recently claimed keys with a fixed lifetime
// ABOUTME: Guards message submission against client retries and double sends

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

type entry struct {
	key     string
	claimed time.Time
}

// Window tracks claimed keys. It is safe for concurrent use.
type Window struct {
	mu    sync.Mutex
	keys  map[string]*list.Element
	order *list.List // oldest claim at the front
	ttl   time.Duration
	max   int
	now   func() time.Time
}

// NewWindow returns a Window that remembers up to max keys for ttl each.
func NewWindow(ttl time.Duration, max int) *Window {
	if max <= 0 {
		max = 1
	}
	return &Window{
		keys:  make(map[string]*list.Element),
		order: list.New(),
		ttl:   ttl,
		max:   max,
		now:   time.Now,
	}
}

// Claim records key and reports true, or reports false if key was already
// claimed within the window.
func (w *Window) Claim(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.expireLocked(now)

	if _, ok := w.keys[key]; ok {
		return false
	}
	if w.order.Len() >= w.max {
		w.removeLocked(w.order.Front())
	}
	w.keys[key] = w.order.PushBack(&entry{key: key, claimed: now})
	return true
}

// Release forgets key so it can be claimed again, e.g. after the request it
// guarded was rejected.
func (w *Window) Release(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if el, ok := w.keys[key]; ok {
		w.removeLocked(el)
	}
}

// Len reports how many keys are currently held, including expired ones not
// yet dropped.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.order.Len()
}

// expireLocked drops claims older than the window. Claims are appended in
// time order, so it stops at the first live one.
func (w *Window) expireLocked(now time.Time) {
	for el := w.order.Front(); el != nil; el = w.order.Front() {
		if now.Sub(el.Value.(*entry).claimed) < w.ttl {
			return
		}
		w.removeLocked(el)
	}
}

func (w *Window) removeLocked(el *list.Element) {
	w.order.Remove(el)
	delete(w.keys, el.Value.(*entry).key)
}
