package responselog

import (
	"container/list"
	"sync"
)

const DefaultCapacity = 10

type cacheItem struct {
	id   int64
	text string
}

// Cache keeps rendered logs of the latest replies keyed by reply message id
type Cache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	items    map[int64]*list.Element
}

func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[int64]*list.Element, capacity),
	}
}

// Put stores log evicting the least recently used one over capacity
func (c *Cache) Put(id int64, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[id]; ok {
		el.Value.(*cacheItem).text = text
		c.order.MoveToFront(el)
		return
	}

	c.items[id] = c.order.PushFront(&cacheItem{id: id, text: text})
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheItem).id)
	}
}

func (c *Cache) Get(id int64) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[id]
	if !ok {
		return "", false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheItem).text, true
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear drops every log
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	clear(c.items)
}
