package wasm

import (
	"github.com/Avi18971911/augur-go/pkg/event/model"
	"sync"
)

const ImageType = "wasm"

// Registry keeps the debug images of loaded WebAssembly modules in load order. A frame refers to
// its module by the module's index in this order.
type Registry struct {
	images  []model.DebugImage
	indexes map[string]int
	mu      sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{indexes: make(map[string]int)}
}

// Register records the debug image of the module loaded from url and returns its index.
// Registering a url again replaces its image and keeps the index.
func (r *Registry) Register(url string, image model.DebugImage) int {
	if image.Type == "" {
		image.Type = ImageType
	}
	if image.CodeFile == "" {
		image.CodeFile = url
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if index, ok := r.indexes[url]; ok {
		r.images[index] = image
		return index
	}
	r.indexes[url] = len(r.images)
	r.images = append(r.images, image)
	return len(r.images) - 1
}

// Image returns the index of the module loaded from url, or -1.
func (r *Registry) Image(url string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if index, ok := r.indexes[url]; ok {
		return index
	}
	return -1
}

func (r *Registry) Images() []model.DebugImage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]model.DebugImage(nil), r.images...)
}
