package api

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"casaflow/server/internal/client"
	"casaflow/server/internal/images"
	"casaflow/server/internal/models"
	"casaflow/server/internal/preview"
	"casaflow/server/internal/submit"
)

var ErrSessionNotFound = errors.New("editing session not found")

// editSession is the server-held state of one open editor view: the draft,
// its image bookkeeping and its submission path. Each session is owned by
// exactly one view instance; a session mutex serializes its mutations.
type editSession struct {
	mu           sync.Mutex
	id           string
	draft        *models.PropertyDraft
	previews     *preview.Manager
	reconciler   *images.Reconciler
	orchestrator *submit.Orchestrator
}

// sessionRegistry tracks open editor sessions.
type sessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*editSession
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[string]*editSession)}
}

// create registers a session around the draft. A non-empty id resumes a
// previously autosaved session under its original key so later autosaves
// keep updating the same row; an empty id mints a fresh one.
func (r *sessionRegistry) create(api *client.Client, draft *models.PropertyDraft, logger *logrus.Logger, id string) *editSession {
	if id == "" {
		id = uuid.NewString()
	}

	pm := preview.NewManager(logger)
	rec := images.NewReconciler(pm)
	rec.Hydrate(draft)

	s := &editSession{
		id:           id,
		draft:        draft,
		previews:     pm,
		reconciler:   rec,
		orchestrator: submit.NewOrchestrator(api, rec, logger),
	}

	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()
	return s
}

func (r *sessionRegistry) get(id string) (*editSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// drop tears the session down, releasing every locally-minted preview URL.
func (r *sessionRegistry) drop(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconciler.Teardown()
}
