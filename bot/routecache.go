package bot

import (
	"container/list"
	"sync"

	"kharkivmetro.dev/metro/model"
)

// routeCache is a bounded LRU from route fingerprint to the built route
// and its line groups. Callbacks that miss are answered as expired.
type routeCache struct {
	mu    sync.Mutex
	max   int
	order *list.List
	items map[string]*list.Element
}

type routeEntry struct {
	fingerprint string
	route       *model.Route
	groups      []model.LineGroup
}

func newRouteCache(max int) *routeCache {
	return &routeCache{
		max:   max,
		order: list.New(),
		items: map[string]*list.Element{},
	}
}

func (c *routeCache) Put(route *model.Route) string {
	fp := route.Fingerprint()

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[fp]; ok {
		c.order.MoveToFront(el)
		el.Value.(*routeEntry).route = route
		el.Value.(*routeEntry).groups = route.LineGroups()
		return fp
	}

	el := c.order.PushFront(&routeEntry{fingerprint: fp, route: route, groups: route.LineGroups()})
	c.items[fp] = el

	for c.order.Len() > c.max {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*routeEntry).fingerprint)
	}
	return fp
}

func (c *routeCache) Get(fingerprint string) (*model.Route, []model.LineGroup, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[fingerprint]
	if !ok {
		return nil, nil, false
	}
	c.order.MoveToFront(el)
	entry := el.Value.(*routeEntry)
	return entry.route, entry.groups, true
}
