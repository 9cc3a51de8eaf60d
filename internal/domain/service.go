package domain

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// PostRecord is one entry of the post log.
type PostRecord struct {
	ID         string
	ListingID  ListingID
	Status     DeliveryStatus
	MessageID  int
	PhotoCount int
	Error      string
	CreatedAt  time.Time
}

// ChannelService is the core domain service. It turns new listings into
// channel posts and keeps a log of the outcomes.
type ChannelService struct {
	formatter  *Formatter
	dispatcher *Dispatcher
	posts      PostLog // nil disables the post log
	logger     *slog.Logger
	now        func() time.Time
}

// NewChannelService creates a ChannelService. posts may be nil.
func NewChannelService(formatter *Formatter, dispatcher *Dispatcher, posts PostLog, logger *slog.Logger) *ChannelService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChannelService{
		formatter:  formatter,
		dispatcher: dispatcher,
		posts:      posts,
		logger:     logger,
		now:        time.Now,
	}
}

// Configured reports whether posts will actually be sent.
func (s *ChannelService) Configured() bool { return s.dispatcher.Configured() }

// PostLogEnabled reports whether post outcomes are recorded.
func (s *ChannelService) PostLogEnabled() bool { return s.posts != nil }

// PostListing formats l and posts it to the channel. Failures are reported
// in the result, never as an error.
func (s *ChannelService) PostListing(ctx context.Context, l *Listing) DeliveryResult {
	msg := ChannelMessage{
		Text:    s.formatter.ListingMessage(l),
		Photos:  l.Photos,
		Buttons: s.formatter.ListingButtons(l),
	}

	result := s.dispatcher.Deliver(ctx, msg)
	if result.Skipped() {
		return result
	}

	s.logger.Info("channel post finished",
		"listing_id", l.ID,
		"status", result.Status.String(),
		"message_id", result.MessageID,
		"photo_count", result.PhotoCount,
	)
	s.record(ctx, l.ID, result)
	return result
}

// RecentPosts returns the newest post log entries.
func (s *ChannelService) RecentPosts(ctx context.Context, limit int) ([]PostRecord, error) {
	if s.posts == nil {
		return nil, fmt.Errorf("post log is disabled")
	}
	posts, err := s.posts.RecentPosts(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("recent posts: %w", err)
	}
	return posts, nil
}

func (s *ChannelService) record(ctx context.Context, id ListingID, result DeliveryResult) {
	if s.posts == nil {
		return
	}
	rec := &PostRecord{
		ID:         uuid.NewString(),
		ListingID:  id,
		Status:     result.Status,
		MessageID:  result.MessageID,
		PhotoCount: result.PhotoCount,
		Error:      result.Error,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.posts.RecordPost(ctx, rec); err != nil {
		s.logger.Error("recording channel post failed", "listing_id", id, "error", err)
	}
}
