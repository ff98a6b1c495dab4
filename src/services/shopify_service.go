// backend/src/services/shopify_service.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/username/bullionintake/backend/src/logger"
	"github.com/username/bullionintake/backend/src/models"
	"github.com/username/bullionintake/backend/src/security/validation"
)

const metaobjectType = "form_submission"

const metaobjectCreateMutation = `
	mutation CreateMetaobject($metaobject: MetaobjectCreateInput!) {
		metaobjectCreate(metaobject: $metaobject) {
			metaobject {
				id
				handle
			}
			userErrors {
				field
				message
			}
		}
	}
`

// --- API Request/Response Structs ---

type metaobjectField struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type metaobjectInput struct {
	Handle string            `json:"handle"`
	Type   string            `json:"type"`
	Fields []metaobjectField `json:"fields"`
}

type graphqlRequest struct {
	Query     string `json:"query"`
	Variables struct {
		Metaobject metaobjectInput `json:"metaobject"`
	} `json:"variables"`
}

type graphqlCreateResponse struct {
	Data struct {
		MetaobjectCreate struct {
			Metaobject *models.Metaobject `json:"metaobject"`
			UserErrors []struct {
				Field   []string `json:"field"`
				Message string   `json:"message"`
			} `json:"userErrors"`
		} `json:"metaobjectCreate"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type restCreateRequest struct {
	Metaobject metaobjectInput `json:"metaobject"`
}

type restCreateResponse struct {
	Metaobject models.Metaobject `json:"metaobject"`
}

// --- Client Implementation ---

type shopifyClient struct {
	baseURL    string
	token      string
	apiVersion string
	httpClient http.Client
}

// NewShopifyClient builds the upstream submission client. shop is the
// myshopify domain; token the Admin API access token. The timeout bounds
// each outbound call so a hanging upstream surfaces as a failure and
// triggers the fallback instead of blocking the request forever.
func NewShopifyClient(shop, token, apiVersion string, timeout time.Duration) MetaobjectCreator {
	return &shopifyClient{
		baseURL:    "https://" + shop,
		token:      token,
		apiVersion: apiVersion,
		httpClient: http.Client{Timeout: timeout},
	}
}

// Create attempts the GraphQL metaobject create and falls back to the
// REST Admin API when the primary path fails for any reason: non-success
// status, reported userErrors, network error or an unparsable response.
// Each attempt generates a fresh handle, so a primary attempt that
// succeeded remotely but failed to be observed here can leave a
// duplicate record behind; there is no deduplication upstream.
func (c *shopifyClient) Create(ctx context.Context, p models.SubmissionPayload, submittedAt time.Time) (*models.Metaobject, error) {
	meta, err := c.createGraphQL(ctx, p, submittedAt)
	if err == nil {
		return meta, nil
	}
	primaryErr := fmt.Errorf("%w: %v", ErrUpstreamPrimary, err)
	logger.FromContext(ctx).Warn("GraphQL metaobject create failed, falling back to REST", "error", err)

	meta, restErr := c.createREST(ctx, p, submittedAt)
	if restErr != nil {
		return nil, errors.Join(primaryErr, fmt.Errorf("%w: %v", ErrUpstreamFallback, restErr))
	}
	logger.FromContext(ctx).Info("Metaobject created via REST fallback", "id", meta.ID, "handle", meta.Handle)
	return meta, nil
}

func (c *shopifyClient) createGraphQL(ctx context.Context, p models.SubmissionPayload, submittedAt time.Time) (*models.Metaobject, error) {
	reqBody := graphqlRequest{Query: metaobjectCreateMutation}
	reqBody.Variables.Metaobject = metaobjectInput{
		Handle: newHandle(),
		Type:   metaobjectType,
		Fields: metaobjectFields(p, submittedAt),
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encoding graphql request: %w", err)
	}

	apiURL := fmt.Sprintf("%s/admin/api/%s/graphql.json", c.baseURL, c.apiVersion)
	bodyBytes, status, err := c.post(ctx, apiURL, payload)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, fmt.Errorf("graphql API returned status %d: %s", status, truncate(string(bodyBytes), 512))
	}

	var resp graphqlCreateResponse
	if err := json.Unmarshal(bodyBytes, &resp); err != nil {
		return nil, fmt.Errorf("decoding graphql response: %w", err)
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, len(resp.Errors))
		for i, e := range resp.Errors {
			msgs[i] = e.Message
		}
		return nil, fmt.Errorf("graphql errors: %s", strings.Join(msgs, ", "))
	}
	if userErrors := resp.Data.MetaobjectCreate.UserErrors; len(userErrors) > 0 {
		msgs := make([]string, len(userErrors))
		for i, ue := range userErrors {
			msgs[i] = fmt.Sprintf("%s: %s", strings.Join(ue.Field, "."), ue.Message)
		}
		return nil, fmt.Errorf("metaobjectCreate userErrors: %s", strings.Join(msgs, ", "))
	}
	if resp.Data.MetaobjectCreate.Metaobject == nil {
		return nil, fmt.Errorf("graphql response missing metaobject")
	}
	return resp.Data.MetaobjectCreate.Metaobject, nil
}

func (c *shopifyClient) createREST(ctx context.Context, p models.SubmissionPayload, submittedAt time.Time) (*models.Metaobject, error) {
	reqBody := restCreateRequest{
		Metaobject: metaobjectInput{
			Handle: newHandle(),
			Type:   metaobjectType,
			Fields: metaobjectFields(p, submittedAt),
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encoding rest request: %w", err)
	}

	apiURL := fmt.Sprintf("%s/admin/api/%s/metaobjects.json", c.baseURL, c.apiVersion)
	bodyBytes, status, err := c.post(ctx, apiURL, payload)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("rest API returned status %d: %s", status, truncate(string(bodyBytes), 512))
	}

	var resp restCreateResponse
	if err := json.Unmarshal(bodyBytes, &resp); err != nil {
		return nil, fmt.Errorf("decoding rest response: %w", err)
	}
	if resp.Metaobject.Handle == "" {
		resp.Metaobject.Handle = reqBody.Metaobject.Handle
	}
	return &resp.Metaobject, nil
}

// post issues one authenticated JSON POST and returns the raw body with
// the status code. Transport errors (including timeout expiry) come back
// as errors; status handling is the caller's business.
func (c *shopifyClient) post(ctx context.Context, apiURL string, payload []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("calling %s: %w", apiURL, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("reading response body: %w", err)
	}
	return bodyBytes, resp.StatusCode, nil
}

// newHandle derives a unique slug for the remote record from the current
// time. Fresh per attempt.
func newHandle() string {
	return fmt.Sprintf("form-submission-%d", time.Now().UnixMilli())
}

// metaobjectFields maps the payload onto the remote schema's named
// fields. Composite blocks are string-encoded because the remote field
// type is plain text; product details additionally travel as an HTML
// table for viewing in the Shopify admin.
func metaobjectFields(p models.SubmissionPayload, submittedAt time.Time) []metaobjectField {
	return []metaobjectField{
		{Key: "first_name", Value: p.FirstName},
		{Key: "last_name", Value: p.LastName},
		{Key: "email", Value: p.Email},
		{Key: "telephone", Value: p.Phone},
		{Key: "street_address", Value: p.Street},
		{Key: "city", Value: p.City},
		{Key: "state", Value: p.State},
		{Key: "country", Value: p.Country},
		{Key: "zip_code", Value: p.ZipCode},
		{Key: "iban", Value: p.IBAN},
		{Key: "bic", Value: p.BIC},
		{Key: "own_account", Value: strconv.FormatBool(p.Meta.OwnAccount)},
		{Key: "third_party", Value: strconv.FormatBool(p.Meta.ThirdParty)},
		{Key: "third_party_name", Value: p.Meta.ThirdPartyName},
		{Key: "third_party_address", Value: p.Meta.ThirdPartyAddress},
		{Key: "purchase_details", Value: jsonField(p.Meta.PurchaseDetails)},
		{Key: "product_details", Value: purchaseDetailsTable(p.Meta.PurchaseDetails.Products)},
		{Key: "agreements", Value: jsonField(p.Meta.Agreements)},
		{Key: "submission_date", Value: submittedAt.UTC().Format(time.RFC3339)},
	}
}

// purchaseDetailsTable renders the product lines as table markup.
// Free-text cells go through the strict HTML sanitizer so form input
// cannot smuggle markup into the admin view.
func purchaseDetailsTable(products []models.ProductLine) string {
	var b strings.Builder
	b.WriteString(`<table border="1"><thead><tr>` +
		`<th>Type</th><th>Unit</th><th>Name</th><th>Weight</th><th>Price</th><th>Images</th>` +
		`</tr></thead><tbody>`)
	for _, prod := range products {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>",
			validation.SanitizeText(prod.Type),
			validation.SanitizeText(prod.Unit),
			validation.SanitizeText(prod.Name),
			validation.SanitizeText(prod.Weight),
			validation.SanitizeText(prod.Price),
			validation.SanitizeText(strings.Join(prod.Images, ", ")))
	}
	b.WriteString("</tbody></table>")
	return b.String()
}

// jsonField string-encodes a composite block for a plain-text remote field.
func jsonField(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// truncate caps diagnostic body snippets included in error text.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
