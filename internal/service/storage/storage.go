package storage

// Storage is the keyed store used for grids and blocks.
type Storage[K comparable, V any] interface {
	Set(key K, value V)
	SetClean(key K, value V)
	Get(key K) (V, bool)
	Update(key K, fn func(value V, exists bool) (V, bool)) bool
	Delete(key K) bool
	GetDirty() map[K]V
	GetDeleted() []K
	ClearDirty(keys []K)
	ForEach(fn func(key K, value V) bool)
	Count() int
}

var _ Storage[string, int] = (*MemoryStorage[string, int])(nil)
