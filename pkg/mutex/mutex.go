package mutex

import (
	"sync"
	"time"
)

// KeyedMutex serializes work per key so concurrent requests for the same
// wallet collapse onto one resolution
type KeyedMutex struct {
	locks      map[string]*keyLock
	mapMutex   sync.Mutex
	cleanupTTL time.Duration
	stopCh     chan struct{}
	stopOnce   sync.Once
}

type keyLock struct {
	mu         sync.Mutex
	holders    int
	lastAccess time.Time
}

// New creates a KeyedMutex that forgets idle keys after cleanupTTL
func New(cleanupTTL time.Duration) *KeyedMutex {
	km := &KeyedMutex{
		locks:      make(map[string]*keyLock),
		cleanupTTL: cleanupTTL,
		stopCh:     make(chan struct{}),
	}

	if cleanupTTL > 0 {
		go km.cleanup()
	}

	return km
}

// Lock blocks until key is held and returns the matching unlock func.
// contended reports whether another holder had to finish first.
func (km *KeyedMutex) Lock(key string) (unlock func(), contended bool) {
	km.mapMutex.Lock()
	entry, ok := km.locks[key]
	if !ok {
		entry = &keyLock{}
		km.locks[key] = entry
	}
	entry.holders++
	entry.lastAccess = time.Now()
	contended = entry.holders > 1
	km.mapMutex.Unlock()

	entry.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			entry.mu.Unlock()

			km.mapMutex.Lock()
			entry.holders--
			entry.lastAccess = time.Now()
			km.mapMutex.Unlock()
		})
	}, contended
}

// Size returns the number of keys currently tracked
func (km *KeyedMutex) Size() int {
	km.mapMutex.Lock()
	defer km.mapMutex.Unlock()
	return len(km.locks)
}

func (km *KeyedMutex) cleanup() {
	ticker := time.NewTicker(km.cleanupTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			km.RemoveIdle(time.Now())
		case <-km.stopCh:
			return
		}
	}
}

// RemoveIdle forgets keys nobody holds or waits on and that have been idle
// longer than the cleanup TTL
func (km *KeyedMutex) RemoveIdle(now time.Time) int {
	km.mapMutex.Lock()
	defer km.mapMutex.Unlock()

	removed := 0
	for key, entry := range km.locks {
		if entry.holders == 0 && now.Sub(entry.lastAccess) > km.cleanupTTL {
			delete(km.locks, key)
			removed++
		}
	}
	return removed
}

// Stop stops the cleanup goroutine
func (km *KeyedMutex) Stop() {
	km.stopOnce.Do(func() { close(km.stopCh) })
}
