package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Listing is a rental listing as owned by the listings backend. It is
// read-only from this service's point of view.
type Listing struct {
	ID                ListingID `json:"id"`
	PropertyType      string    `json:"property_type"`
	PropertyTypeOther string    `json:"property_type_other,omitempty"`
	Description       string    `json:"description" validate:"required"`
	Location          string    `json:"location" validate:"required"`
	Bedrooms          int       `json:"bedrooms" validate:"gte=0"`
	Bathrooms         int       `json:"bathrooms" validate:"gte=0"`
	Amenities         []string  `json:"amenities"`
	Photos            []string  `json:"photos"`
	MonthlyRent       Amount    `json:"monthly_rent" validate:"required"`
	Currency          string    `json:"currency"`
	InitialDeposit    Amount    `json:"initial_deposit,omitempty"`
	Negotiable        bool      `json:"negotiable"`
	PhoneNumber       string    `json:"phone_number"`
}

// PropertyTypeLabel returns the display label for the listing's property
// type. A non-empty free-text override wins over the enumerated type.
func (l *Listing) PropertyTypeLabel() string {
	if other := strings.TrimSpace(l.PropertyTypeOther); other != "" {
		return other
	}
	if label, ok := propertyTypeLabels[strings.ToLower(l.PropertyType)]; ok {
		return label
	}
	return l.PropertyType
}

// Title returns the description, or the property type label when the
// description is empty.
func (l *Listing) Title() string {
	if d := strings.TrimSpace(l.Description); d != "" {
		return d
	}
	return l.PropertyTypeLabel()
}

// ListingID identifies a listing. The backend emits numeric IDs, but older
// payloads carry them as strings, so both JSON forms are accepted.
type ListingID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ListingID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("listing id: %w", err)
		}
		*id = ListingID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("listing id: %w", err)
	}
	*id = ListingID(n.String())
	return nil
}

// Amount is a decimal amount carried as a string. JSON numbers are accepted
// as well and kept in their literal form.
type Amount string

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		*a = Amount(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	*a = Amount(n.String())
	return nil
}

// Whole returns the integer part of the amount. It reports false unless the
// amount is a non-negative decimal number whose integer part fits in an
// int64.
func (a Amount) Whole() (int64, bool) {
	whole, frac, _ := strings.Cut(strings.TrimSpace(string(a)), ".")
	if whole == "" || !isDigits(whole) || !isDigits(frac) {
		return 0, false
	}
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Supported currencies.
const (
	CurrencyETB = "ETB"
	CurrencyUSD = "USD"
)

var propertyTypeLabels = map[string]string{
	"house":     "House",
	"apartment": "Apartment",
	"warehouse": "Warehouse",
	"office":    "Office",
	"other":     "Other",
}

// amenity describes a known amenity tag.
type amenity struct {
	label  string
	symbol string
}

var amenities = map[string]amenity{
	"water":       {label: "Water", symbol: "💧"},
	"electricity": {label: "Electricity", symbol: "⚡"},
	"security":    {label: "Security", symbol: "🔒"},
	"elevator":    {label: "Elevator", symbol: "🛗"},
	"pool":        {label: "Swimming Pool", symbol: "🏊"},
	"internet":    {label: "Internet", symbol: "📡"},
	"wifi":        {label: "WiFi", symbol: "📡"},
	"parking":     {label: "Parking", symbol: "🅿️"},
	"generator":   {label: "Generator", symbol: "🔌"},
	"garden":      {label: "Garden", symbol: "🌳"},
	"gym":         {label: "Gym", symbol: "🏋️"},
	"balcony":     {label: "Balcony", symbol: "🏞️"},
}

const fallbackAmenitySymbol = "✓"

// amenityLine returns the symbol and display name for an amenity tag.
// Unknown tags get a generic symbol and have underscores replaced by spaces.
func amenityLine(tag string) (symbol, name string) {
	if a, ok := amenities[strings.ToLower(strings.TrimSpace(tag))]; ok {
		return a.symbol, a.label
	}
	return fallbackAmenitySymbol, strings.ReplaceAll(tag, "_", " ")
}
