package api

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"casaflow/server/internal/listing"
)

var ErrViewNotFound = errors.New("list view not found")

// collectionPaths maps the listing views the dashboard instantiates onto
// their marketplace endpoints.
var collectionPaths = map[string]string{
	"properties": "/api/properties",
	"favorites":  "/api/favorites",
	"plans":      "/api/plans",
}

// listView is one instantiated collection view: a controller plus its id.
type listView struct {
	id         string
	collection string
	controller *listing.Controller
}

type viewRegistry struct {
	mu    sync.RWMutex
	views map[string]*listView
}

func newViewRegistry() *viewRegistry {
	return &viewRegistry{views: make(map[string]*listView)}
}

func (r *viewRegistry) create(collection string, controller *listing.Controller) *listView {
	v := &listView{
		id:         uuid.NewString(),
		collection: collection,
		controller: controller,
	}
	r.mu.Lock()
	r.views[v.id] = v
	r.mu.Unlock()
	return v
}

func (r *viewRegistry) get(id string) (*listView, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.views[id]
	if !ok {
		return nil, ErrViewNotFound
	}
	return v, nil
}

func (r *viewRegistry) drop(id string) {
	r.mu.Lock()
	v, ok := r.views[id]
	delete(r.views, id)
	r.mu.Unlock()
	if ok {
		v.controller.Close()
	}
}
