package nn

import (
	"sync"

	"gorgonia.org/tensor"
)

// ForwardHook observes a layer output during a forward pass.
type ForwardHook func(layer string, output *tensor.Dense)

// BackwardHook observes the gradient of the backpropagated scalar with
// respect to a layer output.
type BackwardHook func(layer string, gradOutput *tensor.Dense)

// HookHandle removes a registered hook. Remove may be called any number of
// times; only the first call has an effect.
type HookHandle struct {
	once   sync.Once
	remove func()
}

// NewHookHandle wraps remove for Layer implementations outside this package.
func NewHookHandle(remove func()) *HookHandle {
	return &HookHandle{remove: remove}
}

// Remove unregisters the hook.
func (h *HookHandle) Remove() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		if h.remove != nil {
			h.remove()
		}
	})
}

type forwardEntry struct {
	id int
	fn ForwardHook
}

type backwardEntry struct {
	id int
	fn BackwardHook
}

// hookSet is embedded by every layer. It owns the layer name and its capture
// points. Hooks fire in registration order.
type hookSet struct {
	name string

	mu       sync.Mutex
	nextID   int
	forward  []forwardEntry
	backward []backwardEntry
}

func (h *hookSet) Name() string { return h.name }

func (h *hookSet) RegisterForwardHook(fn ForwardHook) *HookHandle {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	h.forward = append(h.forward, forwardEntry{id: id, fn: fn})
	return &HookHandle{remove: func() { h.removeForward(id) }}
}

func (h *hookSet) RegisterBackwardHook(fn BackwardHook) *HookHandle {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	h.backward = append(h.backward, backwardEntry{id: id, fn: fn})
	return &HookHandle{remove: func() { h.removeBackward(id) }}
}

// ActiveHooks reports how many forward and backward hooks are registered.
func (h *hookSet) ActiveHooks() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.forward) + len(h.backward)
}

func (h *hookSet) removeForward(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, e := range h.forward {
		if e.id == id {
			h.forward = append(h.forward[:i], h.forward[i+1:]...)
			return
		}
	}
}

func (h *hookSet) removeBackward(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, e := range h.backward {
		if e.id == id {
			h.backward = append(h.backward[:i], h.backward[i+1:]...)
			return
		}
	}
}

func (h *hookSet) fireForward(out *tensor.Dense) {
	h.mu.Lock()
	hooks := make([]forwardEntry, len(h.forward))
	copy(hooks, h.forward)
	h.mu.Unlock()
	for _, e := range hooks {
		e.fn(h.name, out)
	}
}

func (h *hookSet) fireBackward(grad *tensor.Dense) {
	h.mu.Lock()
	hooks := make([]backwardEntry, len(h.backward))
	copy(hooks, h.backward)
	h.mu.Unlock()
	for _, e := range hooks {
		e.fn(h.name, grad)
	}
}
