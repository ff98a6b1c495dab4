// backend/src/models/submission.go
package models

import (
	"encoding/json"
	"time"
)

// Product type and weight-unit values as rendered by the intake form.
// Values outside these sets are accepted as-is; the form is the only
// gatekeeper (no server-side validation by design).
const (
	ProductTypeGold      = "gold"
	ProductTypeSilver    = "silver"
	ProductTypePlatinum  = "platinum"
	ProductTypePalladium = "palladium"

	UnitOunce    = "ounce"
	UnitGram     = "gram"
	UnitKilogram = "kilogram"
)

// SubmissionPayload is the canonical record built from one form submit.
type SubmissionPayload struct {
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Street    string `json:"street"`
	City      string `json:"city"`
	State     string `json:"state"`
	Country   string `json:"country"`
	ZipCode   string `json:"zipcode"`
	IBAN      string `json:"iban"`
	BIC       string `json:"bic"`
	Meta      Meta   `json:"meta"`
}

type Meta struct {
	OwnAccount        bool            `json:"ownAccount"`
	ThirdParty        bool            `json:"thirdParty"`
	ThirdPartyName    string          `json:"thirdPartyName"`
	ThirdPartyAddress string          `json:"thirdPartyAddress"`
	PurchaseDetails   PurchaseDetails `json:"purchaseDetails"`
	Agreements        Agreements      `json:"agreements"`
}

// metaAlias avoids recursing into Meta.UnmarshalJSON.
type metaAlias Meta

// UnmarshalJSON accepts meta either as an object or as a JSON-encoded
// string; the legacy browser client stringifies the whole meta block.
// A string that does not decode into a meta object yields an empty meta
// rather than failing the submission.
func (m *Meta) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		var inner metaAlias
		if err := json.Unmarshal([]byte(raw), &inner); err != nil {
			*m = Meta{}
			return nil
		}
		*m = Meta(inner)
		return nil
	}
	var inner metaAlias
	if err := json.Unmarshal(data, &inner); err != nil {
		return err
	}
	*m = Meta(inner)
	return nil
}

type PurchaseDetails struct {
	Products []ProductLine `json:"products"`
	Subtotal string        `json:"subtotal"`
}

// ProductLine is one included row of the repeated product-line group.
// Weight, price and subtotal stay decimal strings end to end; the
// backend never does money arithmetic beyond the subtotal sum.
type ProductLine struct {
	Type   string   `json:"type"`
	Unit   string   `json:"unit"`
	Name   string   `json:"name"`
	Weight string   `json:"weight"`
	Price  string   `json:"price"`
	Images []string `json:"images"`
}

type Agreements struct {
	Terms        bool `json:"terms"`
	Cancellation bool `json:"cancellation"`
	Privacy      bool `json:"privacy"`
}

// ProductRow is the collector's view of one rendered row. A nil field
// means the element was absent from the row; an empty string means it
// was present with no value. The distinction decides row inclusion.
type ProductRow struct {
	Type   *string
	Unit   *string
	Name   *string
	Weight *string
	Price  *string
	Images []string
}

// Metaobject identifies the record created on the Shopify side.
type Metaobject struct {
	ID     string `json:"id"`
	Handle string `json:"handle"`
}

// StoredSubmission is one archived submission as returned by the
// /api/submissions listing. The payload fields are inlined.
type StoredSubmission struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	SubmissionPayload
}
