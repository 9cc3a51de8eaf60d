package domain

import (
	"context"
	"errors"
)

// ErrListingNotFound is returned by a ListingFetcher when the backend has no
// listing with the requested ID.
var ErrListingNotFound = errors.New("listing not found")

// Messenger sends messages through the chat platform. Implementations
// return an error for transport failures and for non-affirmative API
// responses alike.
type Messenger interface {
	// SendText sends an HTML text message and returns its message ID.
	SendText(ctx context.Context, chatID, text string, buttons *ButtonLayout) (int, error)

	// SendPhoto sends a single photo with an HTML caption and returns its
	// message ID.
	SendPhoto(ctx context.Context, chatID, photoURL, caption string, buttons *ButtonLayout) (int, error)

	// SendMediaGroup sends photos as one album with caption on the first item
	// and returns the message IDs of the album items in order.
	SendMediaGroup(ctx context.Context, chatID string, photoURLs []string, caption string) ([]int, error)

	// AnswerCallback acknowledges a callback query. An empty text answers
	// without a notification; alert shows a modal instead of a toast.
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
}

// ListingFetcher loads listings from the listings backend.
type ListingFetcher interface {
	// GetListing returns the listing with the given ID, or an error wrapping
	// ErrListingNotFound.
	GetListing(ctx context.Context, id ListingID) (*Listing, error)
}

// PostLog persists the outcome of channel posts.
type PostLog interface {
	// RecordPost stores a post outcome.
	RecordPost(ctx context.Context, rec *PostRecord) error

	// RecentPosts returns up to limit records, newest first.
	RecentPosts(ctx context.Context, limit int) ([]PostRecord, error)
}
