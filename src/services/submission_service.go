// backend/src/services/submission_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/bullionintake/backend/src/logger"
	"github.com/username/bullionintake/backend/src/models"
	"github.com/username/bullionintake/backend/src/processors"
	"github.com/username/bullionintake/backend/src/storage"
)

const (
	ckRecentSubmissions    = "recent_submissions"
	recentSubmissionsLimit = 10
)

type submissionServiceImpl struct {
	archive   *storage.Archive
	creator   MetaobjectCreator
	listCache *cache.Cache
	listTTL   time.Duration
}

// NewSubmissionService wires the orchestrator. listCache shields the
// data directory from repeated /api/submissions scans; entries expire
// after listTTL and are invalidated on every new submission.
func NewSubmissionService(archive *storage.Archive, creator MetaobjectCreator, listCache *cache.Cache, listTTL time.Duration) SubmissionService {
	return &submissionServiceImpl{
		archive:   archive,
		creator:   creator,
		listCache: listCache,
		listTTL:   listTTL,
	}
}

// ProcessSubmission runs one submission through the pipeline:
// normalize, archive, then attempt the upstream create. Archiving is
// fatal on failure; the upstream is never attempted with unpersisted
// data. Upstream failure after a successful archive is not an error but
// a degraded result.
func (s *submissionServiceImpl) ProcessSubmission(ctx context.Context, p models.SubmissionPayload) (*SubmissionResult, error) {
	ctxLogger := logger.FromContext(ctx)
	p = processors.NormalizePayload(p)
	now := time.Now()

	id, err := s.archive.SaveSubmission(p, now)
	if err != nil {
		return nil, fmt.Errorf("archiving submission: %w", err)
	}
	s.listCache.Delete(ckRecentSubmissions)
	ctxLogger.Info("Submission persisted locally", "submissionID", id, "products", len(p.Meta.PurchaseDetails.Products))

	meta, err := s.creator.Create(ctx, p, now)
	if err != nil {
		ctxLogger.Warn("Upstream metaobject create failed on both transports, reporting degraded success",
			"submissionID", id, "error", err)
		return &SubmissionResult{SubmissionID: id, Degraded: true, UpstreamErr: err}, nil
	}

	ctxLogger.Info("Shopify metaobject created", "submissionID", id, "metaobjectID", meta.ID, "handle", meta.Handle)
	return &SubmissionResult{SubmissionID: id, Metaobject: meta}, nil
}

// RecentSubmissions returns the ten most recently archived submissions,
// newest first, cached briefly between calls.
func (s *submissionServiceImpl) RecentSubmissions(ctx context.Context) ([]models.StoredSubmission, error) {
	if cached, found := s.listCache.Get(ckRecentSubmissions); found {
		if submissions, ok := cached.([]models.StoredSubmission); ok {
			return submissions, nil
		}
	}

	submissions, err := s.archive.ListRecent(recentSubmissionsLimit)
	if err != nil {
		return nil, fmt.Errorf("listing recent submissions: %w", err)
	}
	s.listCache.Set(ckRecentSubmissions, submissions, s.listTTL)
	return submissions, nil
}
