package backend

import "sync"

// memoryBackend keeps one domain in a map. Safe for concurrent use.
type memoryBackend struct {
	mu   sync.RWMutex
	data map[string]string
}

func (b *memoryBackend) Get(key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.data[key]
	return v, ok, nil
}

func (b *memoryBackend) Set(key, val string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = val
	return nil
}

func (b *memoryBackend) Delete(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
	return nil
}

func (b *memoryBackend) Keys() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.data))
	for k := range b.data {
		keys = append(keys, k)
	}
	return keys, nil
}

// MemoryResolver serves in-process domains. Backends for the same domain are
// shared, so two stores resolving the same suite see each other's writes.
type MemoryResolver struct {
	standard string

	mu      sync.Mutex
	domains map[string]*memoryBackend
}

// NewMemoryResolver returns an empty MemoryResolver.
func NewMemoryResolver(standard string) *MemoryResolver {
	return &MemoryResolver{
		standard: standard,
		domains:  make(map[string]*memoryBackend),
	}
}

func (r *MemoryResolver) domain(name string) *memoryBackend {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.domains[name]
	if !ok {
		b = &memoryBackend{data: make(map[string]string)}
		r.domains[name] = b
	}
	return b
}

func (r *MemoryResolver) Standard() (Backend, error) {
	return r.domain(r.standard), nil
}

func (r *MemoryResolver) Suite(id string) (Backend, error) {
	if err := ValidateSuite(id, r.standard); err != nil {
		return nil, err
	}
	return r.domain(id), nil
}
