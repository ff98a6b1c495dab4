// backend/src/handlers/submission_handler.go
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/username/bullionintake/backend/src/logger"
	"github.com/username/bullionintake/backend/src/models"
	"github.com/username/bullionintake/backend/src/processors"
	"github.com/username/bullionintake/backend/src/services"
	"github.com/username/bullionintake/backend/src/utils"
)

type SubmissionHandler struct {
	service      services.SubmissionService
	maxBodyBytes int64
}

func NewSubmissionHandler(service services.SubmissionService, maxBodyBytes int64) *SubmissionHandler {
	return &SubmissionHandler{
		service:      service,
		maxBodyBytes: maxBodyBytes,
	}
}

// submitFormResponse is the response shape for POST /api/submit-form.
// ShopifySuccess is only present on degraded (archived-locally-only)
// responses.
type submitFormResponse struct {
	Success           bool               `json:"success"`
	ShopifySuccess    *bool              `json:"shopifySuccess,omitempty"`
	Message           string             `json:"message,omitempty"`
	Error             string             `json:"error,omitempty"`
	SubmissionID      string             `json:"submissionId,omitempty"`
	ShopifyMetaobject *models.Metaobject `json:"shopifyMetaobject,omitempty"`
}

// HandleSubmitForm accepts one form submission, as JSON from the browser
// client or as a raw urlencoded/multipart form, and reports full success
// (200), degraded success (207) or total failure (500).
func (h *SubmissionHandler) HandleSubmitForm(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	payload, err := h.decodePayload(r)
	if err != nil {
		ctxLogger.Warn("Rejecting undecodable form submission", "error", err)
		utils.SendJSONError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	ctxLogger.Info("Received form submission", "email", payload.Email,
		"products", len(payload.Meta.PurchaseDetails.Products))

	result, err := h.service.ProcessSubmission(r.Context(), payload)
	if err != nil {
		ctxLogger.Error("Error processing form submission", "error", err)
		utils.SendJSONError(w, "Server error processing your request: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if result.Degraded {
		shopifySuccess := false
		errText := ""
		if result.UpstreamErr != nil {
			errText = result.UpstreamErr.Error()
		}
		utils.SendJSONResponse(w, http.StatusMultiStatus, submitFormResponse{
			Success:        true,
			ShopifySuccess: &shopifySuccess,
			Message:        "Form data stored locally; the Shopify metaobject could not be created",
			Error:          errText,
			SubmissionID:   result.SubmissionID,
		})
		return
	}

	utils.SendJSONResponse(w, http.StatusOK, submitFormResponse{
		Success:           true,
		Message:           "Form data received and stored successfully",
		SubmissionID:      result.SubmissionID,
		ShopifyMetaobject: result.Metaobject,
	})
}

// HandleSubmitFormInfo answers the GET probe on the submit endpoint.
func (h *SubmissionHandler) HandleSubmitFormInfo(w http.ResponseWriter, r *http.Request) {
	utils.SendJSONResponse(w, http.StatusOK, map[string]string{
		"message": "API endpoint is working. Please use POST method to submit form data.",
	})
}

// HandleGetSubmissions serves the 10 most recent archived submissions,
// newest first.
func (h *SubmissionHandler) HandleGetSubmissions(w http.ResponseWriter, r *http.Request) {
	submissions, err := h.service.RecentSubmissions(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("Error retrieving submissions", "error", err)
		utils.SendJSONError(w, "Server error retrieving submissions: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if submissions == nil {
		submissions = []models.StoredSubmission{}
	}
	utils.SendJSONResponse(w, http.StatusOK, map[string]any{
		"success":     true,
		"submissions": submissions,
	})
}

// decodePayload builds the submission payload from whichever encoding
// the client used. JSON bodies arrive pre-assembled by the browser
// collector; raw forms go through the server-side normalizer and
// product-line collector.
func (h *SubmissionHandler) decodePayload(r *http.Request) (models.SubmissionPayload, error) {
	contentType := r.Header.Get("Content-Type")
	switch {
	case contentType == "" || strings.HasPrefix(contentType, "application/json"):
		var p models.SubmissionPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			return models.SubmissionPayload{}, fmt.Errorf("decoding JSON body: %w", err)
		}
		return p, nil

	case strings.HasPrefix(contentType, "multipart/form-data"):
		if err := r.ParseMultipartForm(h.maxBodyBytes); err != nil {
			return models.SubmissionPayload{}, fmt.Errorf("parsing multipart form: %w", err)
		}
		files := make(map[string][]string)
		if r.MultipartForm != nil {
			for key, headers := range r.MultipartForm.File {
				for _, fh := range headers {
					files[key] = append(files[key], fh.Filename)
				}
			}
		}
		return payloadFromForm(r.Form, files), nil

	case strings.HasPrefix(contentType, "application/x-www-form-urlencoded"):
		if err := r.ParseForm(); err != nil {
			return models.SubmissionPayload{}, fmt.Errorf("parsing form: %w", err)
		}
		return payloadFromForm(r.Form, nil), nil

	default:
		return models.SubmissionPayload{}, fmt.Errorf("unsupported content type %q", contentType)
	}
}

// payloadFromForm is the server-side rendition of the browser collector:
// scalar fields through the normalizer, repeated rows through the
// product-line collector, subtotal computed from the included lines.
func payloadFromForm(values url.Values, files map[string][]string) models.SubmissionPayload {
	p := processors.NormalizeValues(values)
	products := processors.CollectProductLines(processors.RowsFromForm(values, files))
	p.Meta.PurchaseDetails.Products = products
	p.Meta.PurchaseDetails.Subtotal = processors.Subtotal(products)
	return p
}
