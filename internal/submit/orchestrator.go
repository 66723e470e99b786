package submit

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"casaflow/server/internal/client"
	"casaflow/server/internal/form"
	"casaflow/server/internal/images"
	"casaflow/server/internal/models"
)

// Status is the observable result of a submission attempt.
type Status int

const (
	// StatusBlocked means required fields were missing; no network call was made.
	StatusBlocked Status = iota
	// StatusSucceeded means the marketplace accepted the submission.
	StatusSucceeded
	// StatusFailed means the marketplace rejected it or the call failed.
	StatusFailed
)

// Outcome is what the UI observes after Submit. FieldErrors carries either
// the local required-field markers (blocked) or the server's validation map
// (failed), verbatim.
type Outcome struct {
	Status      Status
	FieldErrors map[string]string
	Message     string
	Record      *models.PropertyRecord
}

// Marketplace is the slice of the API client the orchestrator needs.
type Marketplace interface {
	CreateProperty(ctx context.Context, payload models.SubmissionPayload, images []models.FileHandle) (client.SubmitResult, error)
	UpdateProperty(ctx context.Context, id int64, payload models.SubmissionPayload, images []models.FileHandle) (client.SubmitResult, error)
}

// Orchestrator executes the final create/update of a draft. It only reads
// the payload built by the form normalizer and never mutates the draft's
// image collections itself; post-success cleanup goes through the reconciler.
type Orchestrator struct {
	api        Marketplace
	reconciler *images.Reconciler
	logger     *logrus.Logger
}

// NewOrchestrator creates an orchestrator bound to one draft's reconciler.
func NewOrchestrator(api Marketplace, reconciler *images.Reconciler, logger *logrus.Logger) *Orchestrator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Orchestrator{api: api, reconciler: reconciler, logger: logger}
}

// Submit validates, builds the payload and performs the create or update.
// Known-incomplete drafts are blocked locally without a network round-trip.
func (o *Orchestrator) Submit(ctx context.Context, d *models.PropertyDraft) Outcome {
	if missing := form.MissingRequired(d); len(missing) > 0 {
		fieldErrors := make(map[string]string, len(missing))
		for _, f := range missing {
			fieldErrors[f] = "required"
		}
		o.logger.WithField("missing", missing).Info("Blocking submission of incomplete draft")
		return Outcome{Status: StatusBlocked, FieldErrors: fieldErrors}
	}

	form.EnsureReferenceNumber(d)
	payload := form.BuildPayload(d)

	var result client.SubmitResult
	var err error
	if d.ID != nil {
		result, err = o.api.UpdateProperty(ctx, *d.ID, payload, d.Images)
	} else {
		result, err = o.api.CreateProperty(ctx, payload, d.Images)
	}

	if err != nil {
		var verrs client.ValidationErrors
		if errors.As(err, &verrs) {
			// Server-side validation: surfaced per field, draft retained.
			return Outcome{Status: StatusFailed, FieldErrors: verrs}
		}
		o.logger.WithError(err).Error("Submission failed")
		return Outcome{Status: StatusFailed, Message: err.Error()}
	}

	if d.IsEditMode {
		o.finishUpdate(d, result)
	} else {
		// Creation mode: the draft resets to empty and every locally-minted
		// preview URL is released.
		d.Reset()
		o.reconciler.Teardown()
	}

	return Outcome{Status: StatusSucceeded, Record: result.Record}
}

// finishUpdate leaves the edit-mode draft populated with server-confirmed
// values. Uploaded images and applied deletions are flushed from the draft;
// their preview URLs are released and the list re-seeded from the record.
func (o *Orchestrator) finishUpdate(d *models.PropertyDraft, result client.SubmitResult) {
	o.reconciler.Teardown()

	if result.Record != nil {
		*d = *models.HydrateDraft(*result.Record)
	} else {
		d.Images = nil
		d.ImagesToDelete = make(map[int64]bool)
	}
	o.reconciler.Hydrate(d)
}
