// backend/src/services/interfaces.go
package services

import (
	"context"
	"errors"
	"time"

	"github.com/username/bullionintake/backend/src/models"
)

// Define common service errors
var (
	// ErrUpstreamPrimary marks a failed metaobject create on the GraphQL
	// Admin API, recovered by falling back to REST.
	ErrUpstreamPrimary = errors.New("shopify graphql create failed")
	// ErrUpstreamFallback marks a failed REST fallback. There is no
	// further fallback after it.
	ErrUpstreamFallback = errors.New("shopify rest fallback failed")
)

// SubmissionResult is the outcome of one processed submission.
// Degraded means the payload was archived locally but neither upstream
// transport created the metaobject; UpstreamErr carries the combined
// upstream failure in that case.
type SubmissionResult struct {
	SubmissionID string
	Metaobject   *models.Metaobject
	Degraded     bool
	UpstreamErr  error
}

// MetaobjectCreator creates a form_submission metaobject on the remote
// platform, trying the GraphQL transport first and REST on failure.
type MetaobjectCreator interface {
	Create(ctx context.Context, p models.SubmissionPayload, submittedAt time.Time) (*models.Metaobject, error)
}

// SubmissionService sequences normalization, archiving and the upstream
// create for one submission, and serves the recent-submission listing.
type SubmissionService interface {
	ProcessSubmission(ctx context.Context, p models.SubmissionPayload) (*SubmissionResult, error)
	RecentSubmissions(ctx context.Context) ([]models.StoredSubmission, error)
}
