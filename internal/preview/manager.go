package preview

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"casaflow/server/internal/models"
)

// Manager owns the transient preview URLs minted for locally-added images.
// Every URL it mints must be released exactly once, either when the preview
// is removed or when the whole draft is torn down. URLs of server-known
// images are never managed here.
type Manager struct {
	mu     sync.Mutex
	live   map[string]models.FileHandle
	logger *logrus.Logger
}

// NewManager creates a preview manager.
func NewManager(logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	return &Manager{
		live:   make(map[string]models.FileHandle),
		logger: logger,
	}
}

// AddFiles mints a preview per input file. Files whose content type does not
// indicate an image are dropped; the count of dropped files is returned so a
// caller may surface a notice.
func (m *Manager) AddFiles(files []models.FileHandle) ([]models.ImagePreview, int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var previews []models.ImagePreview
	rejected := 0
	for _, f := range files {
		if !strings.HasPrefix(f.ContentType(), "image/") {
			rejected++
			continue
		}
		url := fmt.Sprintf("local://%s", uuid.NewString())
		m.live[url] = f
		previews = append(previews, models.ImagePreview{
			Handle:      f,
			URL:         url,
			DisplayName: f.Name(),
		})
	}

	if rejected > 0 {
		m.logger.WithField("rejected", rejected).Info("Dropped non-image files from upload")
	}
	return previews, rejected
}

// Remove releases the preview's URL when it was locally minted. Existing-image
// previews are untouched; releasing an unknown or already-released URL is a
// no-op.
func (m *Manager) Remove(p models.ImagePreview) {
	if p.IsExisting {
		return
	}
	m.release(p.URL)
}

// ReleaseAll releases every live local URL. Called when a draft is abandoned
// or reset.
func (m *Manager) ReleaseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.live)
	m.live = make(map[string]models.FileHandle)
	if n > 0 {
		m.logger.WithField("count", n).Debug("Released all preview URLs")
	}
}

// Live returns the number of currently live local URLs.
func (m *Manager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// IsLive reports whether the given URL is still held by the manager.
func (m *Manager) IsLive(url string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.live[url]
	return ok
}

func (m *Manager) release(url string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.live[url]; !ok {
		// Redundant cleanup, not a fault.
		return
	}
	delete(m.live, url)
}
