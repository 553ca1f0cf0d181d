package cache

import (
	"container/list"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

const defaultEvictionLimit = 1024

// LRU evicts the least recently used entry once its internal limit is
// exceeded. The limit may be tightened by an outer size-bound layer.
type LRU struct {
	delegate Cache
	limit    int
	order    *list.List
	index    map[any]*list.Element
}

// NewLRU wraps delegate with recency-based eviction.
func NewLRU(delegate Cache) *LRU {
	return &LRU{
		delegate: delegate,
		limit:    defaultEvictionLimit,
		order:    list.New(),
		index:    make(map[any]*list.Element),
	}
}

func (c *LRU) ID() string   { return c.delegate.ID() }
func (c *LRU) Inner() Cache { return c.delegate }

func (c *LRU) Put(key, value any) {
	c.delegate.Put(key, value)
	c.touch(key)
	for c.order.Len() > c.limit {
		c.evictOne()
	}
}

func (c *LRU) Get(key any) (any, bool) {
	v, ok := c.delegate.Get(key)
	if ok {
		c.touch(key)
	}
	return v, ok
}

func (c *LRU) Remove(key any) {
	if e, ok := c.index[key]; ok {
		c.order.Remove(e)
		delete(c.index, key)
	}
	c.delegate.Remove(key)
}

func (c *LRU) Clear() {
	c.order.Init()
	c.index = make(map[any]*list.Element)
	c.delegate.Clear()
}

func (c *LRU) Size() int { return c.delegate.Size() }

func (c *LRU) SetProperty(name, value string) error {
	if name == "limit" {
		if _, err := fmt.Sscanf(value, "%d", &c.limit); err != nil {
			return fmt.Errorf("lru limit %q: %w", value, err)
		}
	}
	return nil
}

func (c *LRU) touch(key any) {
	if e, ok := c.index[key]; ok {
		c.order.MoveToBack(e)
		return
	}
	c.index[key] = c.order.PushBack(key)
}

func (c *LRU) evictOne() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key := front.Value
	c.order.Remove(front)
	delete(c.index, key)
	c.delegate.Remove(key)
}

// FIFO evicts the oldest entry once its internal limit is exceeded.
type FIFO struct {
	delegate Cache
	limit    int
	order    *list.List
	index    map[any]*list.Element
}

// NewFIFO wraps delegate with insertion-order eviction.
func NewFIFO(delegate Cache) *FIFO {
	return &FIFO{
		delegate: delegate,
		limit:    defaultEvictionLimit,
		order:    list.New(),
		index:    make(map[any]*list.Element),
	}
}

func (c *FIFO) ID() string   { return c.delegate.ID() }
func (c *FIFO) Inner() Cache { return c.delegate }

func (c *FIFO) Put(key, value any) {
	c.delegate.Put(key, value)
	if _, seen := c.index[key]; !seen {
		c.index[key] = c.order.PushBack(key)
	}
	for c.order.Len() > c.limit {
		c.evictOne()
	}
}

func (c *FIFO) Get(key any) (any, bool) { return c.delegate.Get(key) }

func (c *FIFO) Remove(key any) {
	if e, ok := c.index[key]; ok {
		c.order.Remove(e)
		delete(c.index, key)
	}
	c.delegate.Remove(key)
}

func (c *FIFO) Clear() {
	c.order.Init()
	c.index = make(map[any]*list.Element)
	c.delegate.Clear()
}

func (c *FIFO) Size() int { return c.delegate.Size() }

func (c *FIFO) evictOne() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key := front.Value
	c.order.Remove(front)
	delete(c.index, key)
	c.delegate.Remove(key)
}

// Bounded enforces a hard entry limit on the decorated cache, delegating the
// choice of victim to the inner eviction policy.
type Bounded struct {
	delegate Cache
	limit    int
}

// NewBounded wraps delegate with a size bound.
func NewBounded(delegate Cache, limit int) *Bounded {
	return &Bounded{delegate: delegate, limit: limit}
}

func (c *Bounded) ID() string   { return c.delegate.ID() }
func (c *Bounded) Inner() Cache { return c.delegate }

// Limit returns the configured entry limit.
func (c *Bounded) Limit() int { return c.limit }

func (c *Bounded) Put(key, value any) {
	c.delegate.Put(key, value)
	ev, ok := findEvictor(c.delegate)
	if !ok {
		return
	}
	for c.delegate.Size() > c.limit {
		ev.evictOne()
	}
}

func (c *Bounded) Get(key any) (any, bool) { return c.delegate.Get(key) }
func (c *Bounded) Remove(key any)          { c.delegate.Remove(key) }
func (c *Bounded) Clear()                  { c.delegate.Clear() }
func (c *Bounded) Size() int               { return c.delegate.Size() }

func findEvictor(c Cache) (evictor, bool) {
	for {
		if ev, ok := c.(evictor); ok {
			return ev, true
		}
		d, ok := c.(Decorator)
		if !ok {
			return nil, false
		}
		c = d.Inner()
	}
}

// Scheduled clears the decorated cache lazily once the flush interval has
// elapsed, checked on every operation.
type Scheduled struct {
	delegate  Cache
	interval  time.Duration
	lastClear time.Time
}

// NewScheduled wraps delegate with a periodic flush.
func NewScheduled(delegate Cache, interval time.Duration) *Scheduled {
	return &Scheduled{delegate: delegate, interval: interval, lastClear: time.Now()}
}

func (c *Scheduled) ID() string   { return c.delegate.ID() }
func (c *Scheduled) Inner() Cache { return c.delegate }

func (c *Scheduled) Put(key, value any) {
	c.clearWhenStale()
	c.delegate.Put(key, value)
}

func (c *Scheduled) Get(key any) (any, bool) {
	if c.clearWhenStale() {
		return nil, false
	}
	return c.delegate.Get(key)
}

func (c *Scheduled) Remove(key any) {
	c.clearWhenStale()
	c.delegate.Remove(key)
}

func (c *Scheduled) Clear() {
	c.lastClear = time.Now()
	c.delegate.Clear()
}

func (c *Scheduled) Size() int {
	c.clearWhenStale()
	return c.delegate.Size()
}

func (c *Scheduled) clearWhenStale() bool {
	if time.Since(c.lastClear) > c.interval {
		c.Clear()
		return true
	}
	return false
}

// Serialized deep-copies values in and out via a JSON round-trip so callers
// cannot mutate cached state. Values must be JSON-serializable.
type Serialized struct {
	delegate Cache
}

// NewSerialized wraps delegate with copy-on-read/copy-on-write safety.
func NewSerialized(delegate Cache) *Serialized {
	return &Serialized{delegate: delegate}
}

type serializedEntry struct {
	typ  reflect.Type
	data []byte
}

func (c *Serialized) ID() string   { return c.delegate.ID() }
func (c *Serialized) Inner() Cache { return c.delegate }

func (c *Serialized) Put(key, value any) {
	if value == nil {
		c.delegate.Put(key, nil)
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		panic(fmt.Sprintf("cache %s: value for key %v is not serializable: %v", c.ID(), key, err))
	}
	c.delegate.Put(key, serializedEntry{typ: reflect.TypeOf(value), data: data})
}

func (c *Serialized) Get(key any) (any, bool) {
	v, ok := c.delegate.Get(key)
	if !ok {
		return nil, false
	}
	entry, ok := v.(serializedEntry)
	if !ok {
		return v, true
	}
	out := reflect.New(entry.typ)
	if err := json.Unmarshal(entry.data, out.Interface()); err != nil {
		panic(fmt.Sprintf("cache %s: corrupt entry for key %v: %v", c.ID(), key, err))
	}
	return out.Elem().Interface(), true
}

func (c *Serialized) Remove(key any) { c.delegate.Remove(key) }
func (c *Serialized) Clear()         { c.delegate.Clear() }
func (c *Serialized) Size() int      { return c.delegate.Size() }

// Blocking makes callers contending for the same not-yet-populated key wait:
// a miss leaves the per-key lock held until the caller publishes a value with
// Put or gives up with Remove.
type Blocking struct {
	delegate Cache
	mu       sync.Mutex
	locks    map[any]*sync.Mutex
}

// NewBlocking wraps delegate with per-key miss locking.
func NewBlocking(delegate Cache) *Blocking {
	return &Blocking{delegate: delegate, locks: make(map[any]*sync.Mutex)}
}

func (c *Blocking) ID() string   { return c.delegate.ID() }
func (c *Blocking) Inner() Cache { return c.delegate }

func (c *Blocking) Put(key, value any) {
	c.delegate.Put(key, value)
	c.release(key)
}

func (c *Blocking) Get(key any) (any, bool) {
	c.acquire(key)
	v, ok := c.delegate.Get(key)
	if ok {
		c.release(key)
	}
	return v, ok
}

// Remove releases the lock held by a failed lookup without touching the
// underlying entry.
func (c *Blocking) Remove(key any) {
	c.release(key)
}

func (c *Blocking) Clear()    { c.delegate.Clear() }
func (c *Blocking) Size() int { return c.delegate.Size() }

func (c *Blocking) acquire(key any) {
	c.mu.Lock()
	lock, ok := c.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[key] = lock
	}
	c.mu.Unlock()
	lock.Lock()
}

func (c *Blocking) release(key any) {
	c.mu.Lock()
	lock, ok := c.locks[key]
	c.mu.Unlock()
	if ok {
		lock.TryLock()
		lock.Unlock()
	}
}
