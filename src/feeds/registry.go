package feeds

import (
	"fmt"
	"sync"

	"feedrace/src/interfaces"
)

// The global registry map. Key is the feed name (e.g. "goldrush"), value is the constructor function.
var (
	registry = make(map[string]interfaces.IFeedConstructor)
	mu       sync.RWMutex // Use a mutex for concurrent map access
)

// Register is called by each feed's init() function to add itself to the map.
func Register(name string, constructor interfaces.IFeedConstructor) error {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[name]; exists {
		return fmt.Errorf("feed constructor already registered for name: %s", name)
	}
	registry[name] = constructor
	return nil
}

// GetConstructor is used by the feed factory to retrieve the constructor.
func GetConstructor(name string) (interfaces.IFeedConstructor, error) {
	mu.RLock()
	defer mu.RUnlock()
	constructor, exists := registry[name]
	if !exists {
		return nil, fmt.Errorf("unknown feed type: %s", name)
	}
	return constructor, nil
}
