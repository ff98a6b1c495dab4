// backend/src/processors/normalizer.go
package processors

import (
	"net/url"
	"strings"

	"github.com/username/bullionintake/backend/src/models"
)

// Canonical form field names. The intake form has grown divergent name
// conventions over time; these are the only ones the backend honors.
const (
	fieldFirstName         = "firstname"
	fieldLastName          = "lastname"
	fieldEmail             = "email"
	fieldPhone             = "phone"
	fieldStreet            = "street_address"
	fieldCity              = "city"
	fieldState             = "state"
	fieldCountry           = "country"
	fieldZipCode           = "zipcode"
	fieldIBAN              = "iban"
	fieldBIC               = "bic"
	fieldOwnAccount        = "own_account"
	fieldThirdParty        = "third_party"
	fieldThirdPartyName    = "third_party_name"
	fieldThirdPartyAddress = "third_party_address"
	fieldTerms             = "terms"
	fieldCancellation      = "cancellation"
	fieldPrivacy           = "privacy"
)

// checked reports whether a checkbox-style value is set. Browsers submit
// the literal "on" for a checked box; anything else counts as unchecked.
func checked(v string) bool {
	return v == "on"
}

// NormalizeValues maps raw submitted field values onto a SubmissionPayload.
// Absent fields become empty strings, never nulls. Email, IBAN and BIC
// formats are deliberately not validated; malformed input passes through.
// Product lines are collected separately, see CollectProductLines.
func NormalizeValues(values url.Values) models.SubmissionPayload {
	field := func(key string) string {
		return strings.TrimSpace(values.Get(key))
	}

	return NormalizePayload(models.SubmissionPayload{
		FirstName: field(fieldFirstName),
		LastName:  field(fieldLastName),
		Email:     field(fieldEmail),
		Phone:     field(fieldPhone),
		Street:    field(fieldStreet),
		City:      field(fieldCity),
		State:     field(fieldState),
		Country:   field(fieldCountry),
		ZipCode:   field(fieldZipCode),
		IBAN:      field(fieldIBAN),
		BIC:       field(fieldBIC),
		Meta: models.Meta{
			OwnAccount:        checked(values.Get(fieldOwnAccount)),
			ThirdParty:        checked(values.Get(fieldThirdParty)),
			ThirdPartyName:    field(fieldThirdPartyName),
			ThirdPartyAddress: field(fieldThirdPartyAddress),
			Agreements: models.Agreements{
				Terms:        checked(values.Get(fieldTerms)),
				Cancellation: checked(values.Get(fieldCancellation)),
				Privacy:      checked(values.Get(fieldPrivacy)),
			},
		},
	})
}

// NormalizePayload brings a payload to its canonical form: scalar fields
// trimmed, nil slices replaced with empty ones, subtotal defaulted to
// "0.00". It is a fixed point: normalizing an already-normalized payload
// changes nothing.
func NormalizePayload(p models.SubmissionPayload) models.SubmissionPayload {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.Email = strings.TrimSpace(p.Email)
	p.Phone = strings.TrimSpace(p.Phone)
	p.Street = strings.TrimSpace(p.Street)
	p.City = strings.TrimSpace(p.City)
	p.State = strings.TrimSpace(p.State)
	p.Country = strings.TrimSpace(p.Country)
	p.ZipCode = strings.TrimSpace(p.ZipCode)
	p.IBAN = strings.TrimSpace(p.IBAN)
	p.BIC = strings.TrimSpace(p.BIC)
	p.Meta.ThirdPartyName = strings.TrimSpace(p.Meta.ThirdPartyName)
	p.Meta.ThirdPartyAddress = strings.TrimSpace(p.Meta.ThirdPartyAddress)

	if p.Meta.PurchaseDetails.Products == nil {
		p.Meta.PurchaseDetails.Products = []models.ProductLine{}
	}
	for i := range p.Meta.PurchaseDetails.Products {
		line := &p.Meta.PurchaseDetails.Products[i]
		line.Type = strings.TrimSpace(line.Type)
		line.Unit = strings.TrimSpace(line.Unit)
		line.Name = strings.TrimSpace(line.Name)
		line.Weight = strings.TrimSpace(line.Weight)
		line.Price = strings.TrimSpace(line.Price)
		if line.Images == nil {
			line.Images = []string{}
		}
	}

	p.Meta.PurchaseDetails.Subtotal = strings.TrimSpace(p.Meta.PurchaseDetails.Subtotal)
	if p.Meta.PurchaseDetails.Subtotal == "" {
		p.Meta.PurchaseDetails.Subtotal = "0.00"
	}
	return p
}
