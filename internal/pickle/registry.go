package pickle

import "sync"

// ClassKind tells the unpickler how instances of a class are materialized.
type ClassKind int

const (
	// KindUnknown classes become opaque objects.
	KindUnknown ClassKind = iota
	// KindObject is a registered class built as a plain *Object.
	KindObject
	// KindSet and KindFrozenSet build a *Set from the first constructor argument.
	KindSet
	KindFrozenSet
	// KindList and KindDict are list / dict subclasses.
	KindList
	KindDict
	// KindReconstructor is copy_reg._reconstructor(cls, base, state).
	KindReconstructor
)

// Registry is the closed set of classes the unpickler knows about.
type Registry struct {
	mu      sync.RWMutex
	classes map[Class]ClassKind
	modules map[string]ClassKind
}

// NewRegistry returns a registry preloaded with the builtin and collection
// types compiled scripts contain.
func NewRegistry() *Registry {
	r := &Registry{
		classes: make(map[Class]ClassKind),
		modules: make(map[string]ClassKind),
	}
	for _, mod := range []string{"builtins", "__builtin__"} {
		r.Register(mod, "set", KindSet)
		r.Register(mod, "frozenset", KindFrozenSet)
		r.Register(mod, "list", KindList)
		r.Register(mod, "dict", KindDict)
		r.Register(mod, "object", KindObject)
	}
	r.Register("copy_reg", "_reconstructor", KindReconstructor)
	r.Register("copyreg", "_reconstructor", KindReconstructor)
	r.Register("collections", "OrderedDict", KindDict)
	r.Register("collections", "defaultdict", KindDict)
	r.RegisterModule("collections", KindObject)
	for _, mod := range []string{"renpy.revertable", "renpy.python"} {
		r.Register(mod, "RevertableList", KindList)
		r.Register(mod, "RevertableDict", KindDict)
		r.Register(mod, "RevertableSet", KindSet)
	}
	return r
}

// Register records the kind of module.name.
func (r *Registry) Register(module, name string, kind ClassKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes[Class{Module: module, Name: name}] = kind
}

// RegisterModule makes every class of module known with the given kind.
func (r *Registry) RegisterModule(module string, kind ClassKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[module] = kind
}

// Lookup returns the kind of module.name, KindUnknown if unregistered.
func (r *Registry) Lookup(module, name string) ClassKind {
	if r == nil {
		return KindUnknown
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if k, ok := r.classes[Class{Module: module, Name: name}]; ok {
		return k
	}
	return r.modules[module]
}
