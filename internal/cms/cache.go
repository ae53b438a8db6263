package cms

import (
	"container/list"
	"sync"
)

// Transform converts one scanline of samples from a source profile's space
// to sRGB, in place or into dst. Channels is the sample-per-pixel count the
// transform expects (3 for RGB/Gray promoted to RGB, 4 for CMYK).
type Transform interface {
	Channels() int
	ToSRGB(dst, src []float32)
}

type cacheEntry struct {
	key Key
	val Transform
}

// lru is a fixed-capacity, per-Kind least-recently-used cache of compiled
// transforms.
type lru struct {
	mu       sync.Mutex
	capacity int
	items    map[Key]*list.Element
	order    *list.List // front = most recently used
}

func newLRU(capacity int) *lru {
	return &lru{capacity: capacity, items: make(map[Key]*list.Element), order: list.New()}
}

func (c *lru) get(k Key) (Transform, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[k]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).val, true
}

func (c *lru) put(k Key, v Transform) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[k]; ok {
		el.Value.(*cacheEntry).val = v
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&cacheEntry{key: k, val: v})
	c.items[k] = el
	for c.order.Len() > c.capacity {
		back := c.order.Back()
		if back == nil {
			break
		}
		c.order.Remove(back)
		delete(c.items, back.Value.(*cacheEntry).key)
	}
}

func (c *lru) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Cache holds the four per-Kind LRUs with the capacities from
// color_transform_cache.rs (9 ICC / 4 CICP / 4 gAMA / 2 CMYK), and compiles
// new Transforms on a miss via Build.
type Cache struct {
	lrus map[Kind]*lru
}

// NewCache constructs an empty Cache with the standard per-Kind capacities.
func NewCache() *Cache {
	c := &Cache{lrus: make(map[Kind]*lru)}
	for _, k := range []Kind{KindICC, KindCICP, KindGAMA, KindCMYK} {
		c.lrus[k] = newLRU(k.capacity())
	}
	return c
}

// Get returns the compiled transform for (kind, payload), building and
// caching it on a miss.
func (c *Cache) Get(kind Kind, payload []byte) (Transform, error) {
	key := KeyFor(kind, payload)
	lruForKind := c.lrus[kind]
	if t, ok := lruForKind.get(key); ok {
		return t, nil
	}
	t, err := Build(kind, payload)
	if err != nil {
		return nil, err
	}
	lruForKind.put(key, t)
	return t, nil
}

// Len reports how many entries are currently resident for kind, for tests
// and diagnostics.
func (c *Cache) Len(kind Kind) int {
	return c.lrus[kind].len()
}
