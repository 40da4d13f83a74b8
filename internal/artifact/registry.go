package artifact

import "fmt"

// Factory creates a store instance from opaque config (store-specific).
type Factory func(any) (Store, error)

var registry = map[string]Factory{}

// Register binds a store name to its factory.
func Register(name string, f Factory) {
	registry[name] = f
}

// New returns a store instance by name.
func New(name string, cfg any) (Store, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("artifact store not found: %s", name)
	}
	return f(cfg)
}
