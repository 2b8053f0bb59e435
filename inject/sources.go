package inject

// Module is one script module pending registration in the preload table.
type Module struct {
	Name string
	Body []byte
}

// Sources supplies the modules to register on the first host compile call.
// What the bodies contain and where they come from is the embedding layer's
// concern; this package only registers them.
type Sources interface {
	Modules() []Module
}

// SliceSources is a fixed, in-memory Sources.
type SliceSources []Module

// Modules implements Sources.
func (s SliceSources) Modules() []Module {
	return s
}
