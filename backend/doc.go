// Package backend provides a registry of reprojection backends.
//
// Backend packages register a factory from their init() function, so
// importing a backend makes it selectable by name:
//
//	import _ "github.com/gogpu/reproject/backend/software"
//
// # Backend Selection
//
// Use Default() to open the best available backend, or Open() to request a
// specific backend by name:
//
//	// The GPU backend when a device provider is given, software otherwise
//	b, name, err := backend.Default(backend.Config{Provider: provider})
//
//	// Or request a specific backend
//	b, err := backend.Open(backend.Software, backend.Config{Workers: 4})
//
// Every backend implements [warp.Backend] and can be handed to
// reproject.NewRenderer.
package backend
