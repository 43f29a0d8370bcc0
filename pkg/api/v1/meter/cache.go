package meter

import (
	"sync"

	"github.com/aquamon-pt/aquamon/pkg/state"
)

// Cache keeps the last published state per meter for the HTTP API.
type Cache struct {
	data map[string]*state.State
	sync.RWMutex
}

func NewCache() *Cache {
	return &Cache{
		data: make(map[string]*state.State),
	}
}

func (c *Cache) Get(number string) *state.State {
	c.RLock()
	defer c.RUnlock()
	return c.data[number]
}

func (c *Cache) Set(number string, s *state.State) {
	c.Lock()
	c.data[number] = s
	c.Unlock()
}

func (c *Cache) All() map[string]*state.State {
	c.RLock()
	defer c.RUnlock()
	m := make(map[string]*state.State, len(c.data))
	for k, v := range c.data {
		m[k] = v
	}
	return m
}
