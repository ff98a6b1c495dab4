// backend/src/storage/archive.go
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"time"

	"github.com/oklog/ulid/v2"
	"github.com/username/bullionintake/backend/src/logger"
	"github.com/username/bullionintake/backend/src/models"
	"github.com/username/bullionintake/backend/src/security/validation"
)

// ErrWrite wraps any failure to persist a submission. Callers treat it
// as fatal for the request: a submission that cannot be archived is
// never forwarded upstream.
var ErrWrite = errors.New("archive write failed")

const readableSuffix = "-readable.txt"

// Archive durably stores one file pair per submission in a flat
// directory: <id>.json with the full payload and <id>-readable.txt with
// a plain-text rendering. There is no retention policy; the directory
// grows unbounded.
type Archive struct {
	dir string
}

// NewArchive creates the data directory if needed and returns the sink.
func NewArchive(dir string) (*Archive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", dir, err)
	}
	return &Archive{dir: dir}, nil
}

// SaveSubmission writes the payload and its readable rendering, keyed by
// timestamp, identity and a ULID suffix so that two submissions in the
// same millisecond from the same identity cannot collide. It returns the
// generated id for traceability.
func (a *Archive) SaveSubmission(p models.SubmissionPayload, now time.Time) (string, error) {
	id := fmt.Sprintf("%d-%s-%s", now.UnixMilli(), identitySlug(p), strings.ToLower(ulid.Make().String()))

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: encoding payload: %v", ErrWrite, err)
	}
	jsonPath := filepath.Join(a.dir, id+".json")
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: %v", ErrWrite, err)
	}

	readablePath := filepath.Join(a.dir, id+readableSuffix)
	if err := os.WriteFile(readablePath, []byte(renderReadable(p, now)), 0o644); err != nil {
		return "", fmt.Errorf("%w: %v", ErrWrite, err)
	}

	logger.L.Info("Submission archived", "id", id, "path", jsonPath)
	return id, nil
}

// ListRecent returns up to limit archived submissions, newest first by
// file modification time. Entries that no longer parse are skipped.
func (a *Archive) ListRecent(limit int) ([]models.StoredSubmission, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("reading data directory %s: %w", a.dir, err)
	}

	type candidate struct {
		name    string
		modTime time.Time
	}
	var candidates []candidate
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{name: entry.Name(), modTime: info.ModTime()})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].modTime.After(candidates[j].modTime)
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	submissions := make([]models.StoredSubmission, 0, len(candidates))
	for _, c := range candidates {
		data, err := os.ReadFile(filepath.Join(a.dir, c.name))
		if err != nil {
			logger.L.Warn("Skipping unreadable submission file", "file", c.name, "error", err)
			continue
		}
		var payload models.SubmissionPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			logger.L.Warn("Skipping unparsable submission file", "file", c.name, "error", err)
			continue
		}
		submissions = append(submissions, models.StoredSubmission{
			ID:                strings.TrimSuffix(c.name, ".json"),
			Timestamp:         c.modTime,
			SubmissionPayload: payload,
		})
	}
	return submissions, nil
}

// identitySlug derives a filename-safe identity fragment from the
// payload: email local part, else first name, else "anonymous".
func identitySlug(p models.SubmissionPayload) string {
	identity := p.Email
	if at := strings.IndexByte(identity, '@'); at > 0 {
		identity = identity[:at]
	}
	if identity == "" {
		identity = p.FirstName
	}
	if identity == "" {
		identity = "anonymous"
	}

	var b strings.Builder
	for _, r := range strings.ToLower(identity) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "anonymous"
	}
	return slug
}

// renderReadable produces the human-readable rendering stored next to
// the JSON record: one section per form block, one line per product.
func renderReadable(p models.SubmissionPayload, now time.Time) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\n", args...)
	}
	text := func(s string) string {
		return validation.StripUnprintable(s)
	}

	line("FORM SUBMISSION %s", now.Format(time.RFC3339))
	line("")
	line("--- Identity ---")
	line("First name: %s", text(p.FirstName))
	line("Last name:  %s", text(p.LastName))
	line("Email:      %s", text(p.Email))
	line("Phone:      %s", text(p.Phone))
	line("")
	line("--- Address ---")
	line("Street:  %s", text(p.Street))
	line("City:    %s", text(p.City))
	line("State:   %s", text(p.State))
	line("Country: %s", text(p.Country))
	line("Zip:     %s", text(p.ZipCode))
	line("")
	line("--- Banking ---")
	line("IBAN: %s", text(p.IBAN))
	line("BIC:  %s", text(p.BIC))
	line("")
	line("--- Purchase details ---")
	line("Own account: %t", p.Meta.OwnAccount)
	line("Third party: %t", p.Meta.ThirdParty)
	if p.Meta.ThirdParty {
		line("Third party name:    %s", text(p.Meta.ThirdPartyName))
		line("Third party address: %s", text(p.Meta.ThirdPartyAddress))
	}
	line("Products: %d", len(p.Meta.PurchaseDetails.Products))
	for i, prod := range p.Meta.PurchaseDetails.Products {
		line("  %d. type=%s unit=%s name=%s weight=%s price=%s images=%s",
			i+1, text(prod.Type), text(prod.Unit), text(prod.Name),
			text(prod.Weight), text(prod.Price), text(strings.Join(prod.Images, ", ")))
	}
	line("Subtotal: %s", text(p.Meta.PurchaseDetails.Subtotal))
	line("")
	line("--- Agreements ---")
	line("Terms:        %t", p.Meta.Agreements.Terms)
	line("Cancellation: %t", p.Meta.Agreements.Cancellation)
	line("Privacy:      %t", p.Meta.Agreements.Privacy)
	return b.String()
}
