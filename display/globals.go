package display

// GlobalKind is a server global the connection knows how to handle.
type GlobalKind int

const (
	// GlobalUnknown is any interface the connection ignores.
	GlobalUnknown GlobalKind = iota
	GlobalCompositor
	GlobalOutput
	GlobalSeat
	GlobalShell
	GlobalShm
)

var globalKinds = map[string]GlobalKind{
	"wl_compositor": GlobalCompositor,
	"wl_output":     GlobalOutput,
	"wl_seat":       GlobalSeat,
	"wl_shell":      GlobalShell,
	"wl_shm":        GlobalShm,
}

// ParseGlobalKind maps an interface name from a registry announcement to its
// kind. Names outside the known set are GlobalUnknown.
func ParseGlobalKind(iface string) GlobalKind {
	return globalKinds[iface]
}

func (k GlobalKind) String() string {
	switch k {
	case GlobalCompositor:
		return "compositor"
	case GlobalOutput:
		return "output"
	case GlobalSeat:
		return "seat"
	case GlobalShell:
		return "shell"
	case GlobalShm:
		return "shm"
	default:
		return "unknown"
	}
}

// arena owns values keyed by server global name and iterates them in
// insertion order.
type arena[T any] struct {
	order []uint32
	items map[uint32]T
}

func (a *arena[T]) insert(name uint32, v T) {
	if a.items == nil {
		a.items = make(map[uint32]T)
	}
	if _, ok := a.items[name]; !ok {
		a.order = append(a.order, name)
	}
	a.items[name] = v
}

func (a *arena[T]) get(name uint32) (T, bool) {
	v, ok := a.items[name]
	return v, ok
}

func (a *arena[T]) len() int {
	return len(a.order)
}

// values returns the values in insertion order.
func (a *arena[T]) values() []T {
	out := make([]T, 0, len(a.order))
	for _, name := range a.order {
		out = append(out, a.items[name])
	}
	return out
}

// drain empties the arena, calling fn on each value in insertion order.
func (a *arena[T]) drain(fn func(T)) {
	order := a.order
	items := a.items
	a.order = nil
	a.items = nil
	for _, name := range order {
		fn(items[name])
	}
}
