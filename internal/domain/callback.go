package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Callback answers.
const (
	contactSentText   = "Contact info sent to your private messages! 📱"
	lookupFailedText  = "Sorry, could not retrieve contact information."
	privateFailedText = "Please start a chat with the bot first, then try again."
)

var errMissingPhone = errors.New("listing has no phone number")

// CallbackQuery is an inline button press.
type CallbackQuery struct {
	// ID identifies the query for answering it.
	ID string

	// FromID is the user who pressed the button.
	FromID int64

	// Data is the button's callback data.
	Data string
}

// CallbackHandler resolves inline button presses into private replies.
type CallbackHandler struct {
	messenger Messenger
	listings  ListingFetcher
	timeout   time.Duration
	logger    *slog.Logger
}

// NewCallbackHandler creates a CallbackHandler. Each outbound call is
// bounded by timeout (15s if zero).
func NewCallbackHandler(messenger Messenger, listings ListingFetcher, timeout time.Duration, logger *slog.Logger) *CallbackHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &CallbackHandler{
		messenger: messenger,
		listings:  listings,
		timeout:   timeout,
		logger:    logger,
	}
}

// Handle processes a callback query. A nil query is ignored. Every non-nil
// query is answered exactly once, even if resolving it panics.
func (h *CallbackHandler) Handle(ctx context.Context, q *CallbackQuery) {
	if q == nil {
		return
	}

	text, alert := lookupFailedText, true
	defer func() {
		if v := recover(); v != nil {
			h.logger.Error("resolving callback query panicked", "callback_id", q.ID, "data", q.Data, "panic", fmt.Sprint(v))
			text, alert = lookupFailedText, true
		}
		h.answer(ctx, q.ID, text, alert)
	}()

	text, alert = h.resolve(ctx, q)
}

// resolve acts on the callback data and returns the answer to show.
func (h *CallbackHandler) resolve(ctx context.Context, q *CallbackQuery) (string, bool) {
	if !strings.HasPrefix(q.Data, contactTokenPrefix) {
		h.logger.Info("ignoring callback query", "callback_id", q.ID, "data", q.Data)
		return "", false
	}

	link, err := ParseDeepLink(q.Data)
	if err != nil {
		h.logger.Warn("malformed contact callback", "callback_id", q.ID, "data", q.Data, "error", err)
		return lookupFailedText, true
	}

	return h.replyWithContact(ctx, q.FromID, link.ListingID)
}

// replyWithContact looks up the listing and sends its contact details to
// the user. It returns the callback answer to show.
func (h *CallbackHandler) replyWithContact(ctx context.Context, userID int64, id ListingID) (answer string, alert bool) {
	lookupCtx, cancel := context.WithTimeout(ctx, h.timeout)
	listing, err := h.listings.GetListing(lookupCtx, id)
	cancel()
	switch {
	case err != nil:
	case listing == nil:
		err = ErrListingNotFound
	case strings.TrimSpace(listing.PhoneNumber) == "":
		err = errMissingPhone
	}
	if err != nil {
		h.logger.Error("contact lookup failed", "listing_id", id, "error", err)
		return lookupFailedText, true
	}

	sendCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	msg := ContactMessage(listing.PhoneNumber, listing.Title())
	if _, err := h.messenger.SendText(sendCtx, strconv.FormatInt(userID, 10), msg, nil); err != nil {
		h.logger.Error("sending contact info failed", "listing_id", id, "user_id", userID, "error", err)
		return privateFailedText, true
	}

	h.logger.Info("contact info sent", "listing_id", id, "user_id", userID)
	return contactSentText, false
}

func (h *CallbackHandler) answer(ctx context.Context, callbackID, text string, alert bool) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	if err := h.messenger.AnswerCallback(ctx, callbackID, text, alert); err != nil {
		h.logger.Error("answering callback query failed", "callback_id", callbackID, "error", err)
	}
}
