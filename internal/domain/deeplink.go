package domain

import (
	"errors"
	"fmt"
	"strings"
)

// DeepLinkKind is the kind of destination a deep-link token points at.
type DeepLinkKind int

const (
	DeepLinkListing DeepLinkKind = iota + 1
	DeepLinkContact
	DeepLinkCreateListing
)

const (
	listingTokenPrefix = "listing-"
	contactTokenPrefix = "contact-"
	createListingToken = "create-listing"

	// maxTokenLen is the callback_data limit of the Bot API. Start parameters
	// allow more, but one limit keeps tokens usable in both places.
	maxTokenLen = 64
)

// ErrInvalidToken is returned for tokens that do not decode to a deep link.
var ErrInvalidToken = errors.New("invalid deep-link token")

// DeepLink is a decoded deep-link token. Tokens are used both as callback
// data on inline buttons and as Mini App start parameters.
type DeepLink struct {
	Kind      DeepLinkKind
	ListingID ListingID
}

// ListingLink returns a deep link to a listing's detail page.
func ListingLink(id ListingID) DeepLink { return DeepLink{Kind: DeepLinkListing, ListingID: id} }

// ContactLink returns a deep link to a listing's contact details.
func ContactLink(id ListingID) DeepLink { return DeepLink{Kind: DeepLinkContact, ListingID: id} }

// CreateListingLink returns a deep link that opens the listing form.
func CreateListingLink() DeepLink { return DeepLink{Kind: DeepLinkCreateListing} }

// Token encodes the deep link. It fails if the listing ID cannot be carried
// in a token.
func (d DeepLink) Token() (string, error) {
	var token string
	switch d.Kind {
	case DeepLinkCreateListing:
		return createListingToken, nil
	case DeepLinkListing:
		token = listingTokenPrefix + string(d.ListingID)
	case DeepLinkContact:
		token = contactTokenPrefix + string(d.ListingID)
	default:
		return "", fmt.Errorf("%w: unknown kind %d", ErrInvalidToken, d.Kind)
	}
	if err := ValidateListingID(d.ListingID); err != nil {
		return "", err
	}
	if len(token) > maxTokenLen {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidToken, len(token), maxTokenLen)
	}
	return token, nil
}

// Route returns the mini-app path the deep link opens.
func (d DeepLink) Route() string {
	switch d.Kind {
	case DeepLinkListing:
		return "/listings/" + string(d.ListingID)
	case DeepLinkContact:
		return "/listings/" + string(d.ListingID) + "/contact"
	case DeepLinkCreateListing:
		return "/?create=1"
	}
	return "/"
}

// ParseDeepLink decodes a token produced by DeepLink.Token.
func ParseDeepLink(token string) (DeepLink, error) {
	var d DeepLink
	switch {
	case token == createListingToken:
		return CreateListingLink(), nil
	case strings.HasPrefix(token, listingTokenPrefix):
		d = ListingLink(ListingID(strings.TrimPrefix(token, listingTokenPrefix)))
	case strings.HasPrefix(token, contactTokenPrefix):
		d = ContactLink(ListingID(strings.TrimPrefix(token, contactTokenPrefix)))
	default:
		return DeepLink{}, fmt.Errorf("%w: %q", ErrInvalidToken, token)
	}
	if err := ValidateListingID(d.ListingID); err != nil {
		return DeepLink{}, err
	}
	return d, nil
}

// ValidateListingID reports whether id can be interpolated into a token:
// non-empty and restricted to [A-Za-z0-9_-].
func ValidateListingID(id ListingID) error {
	if id == "" {
		return fmt.Errorf("%w: empty listing id", ErrInvalidToken)
	}
	for _, r := range string(id) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return fmt.Errorf("%w: listing id %q contains %q", ErrInvalidToken, id, r)
		}
	}
	return nil
}
