package images

import (
	"errors"

	"casaflow/server/internal/models"
	"casaflow/server/internal/preview"
)

var ErrIndexOutOfRange = errors.New("preview index out of range")

// Reconciler maintains the single ordered preview list a draft shows to the
// user, merging server-known images with locally-added ones and tracking
// which existing images are marked for deletion.
//
// Invariants held after every operation:
//   - len(draft.Images) equals the number of non-existing previews in the list
//   - draft.ImagesToDelete only contains ids drawn from draft.ExistingImages
type Reconciler struct {
	previews *preview.Manager
	list     []models.ImagePreview
	hydrated bool
}

// NewReconciler creates a reconciler backed by the given preview manager.
func NewReconciler(previews *preview.Manager) *Reconciler {
	return &Reconciler{previews: previews}
}

// Hydrate seeds the preview list from the draft's existing images. Repeated
// calls are no-ops so unrelated state changes never re-seed the list.
func (r *Reconciler) Hydrate(d *models.PropertyDraft) {
	if r.hydrated {
		return
	}
	r.hydrated = true

	for _, img := range d.ExistingImages {
		id := img.ID
		r.list = append(r.list, models.ImagePreview{
			SourceID:    &id,
			URL:         img.URL,
			DisplayName: img.OriginalName,
			IsExisting:  true,
		})
	}
}

// AddFiles admits the given files, appends their previews to the visible list
// and their handles to the draft's new-image collection. Returns the number
// of files rejected for not being images.
func (r *Reconciler) AddFiles(d *models.PropertyDraft, files []models.FileHandle) int {
	admitted, rejected := r.previews.AddFiles(files)
	for _, p := range admitted {
		r.list = append(r.list, p)
		d.Images = append(d.Images, p.Handle)
	}
	return rejected
}

// Remove drops the preview at index from the visible list. Existing images
// are marked for deletion on the server; new images are removed from the
// draft's pending handles and their preview URL released.
func (r *Reconciler) Remove(d *models.PropertyDraft, index int) error {
	if index < 0 || index >= len(r.list) {
		return ErrIndexOutOfRange
	}

	p := r.list[index]
	if p.IsExisting {
		d.ImagesToDelete[*p.SourceID] = true
	} else {
		// Position among new-only previews: the index minus every existing
		// preview that precedes it.
		newIndex := index
		for _, q := range r.list[:index] {
			if q.IsExisting {
				newIndex--
			}
		}
		d.Images = append(d.Images[:newIndex], d.Images[newIndex+1:]...)
		r.previews.Remove(p)
	}

	r.list = append(r.list[:index], r.list[index+1:]...)
	return nil
}

// Previews returns a copy of the visible preview list.
func (r *Reconciler) Previews() []models.ImagePreview {
	out := make([]models.ImagePreview, len(r.list))
	copy(out, r.list)
	return out
}

// Teardown clears the list and releases every locally-minted preview URL.
// Used when the draft is abandoned or reset after a successful creation.
func (r *Reconciler) Teardown() {
	r.list = nil
	r.hydrated = false
	r.previews.ReleaseAll()
}
