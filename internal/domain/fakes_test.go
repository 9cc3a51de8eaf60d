package domain

import (
	"context"
	"log/slog"
	"sync"
)

func testLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

type sentText struct {
	ChatID  string
	Text    string
	Buttons *ButtonLayout
}

type sentPhoto struct {
	ChatID  string
	Photo   string
	Caption string
	Buttons *ButtonLayout
}

type sentGroup struct {
	ChatID  string
	Photos  []string
	Caption string
}

type answer struct {
	ID    string
	Text  string
	Alert bool
}

// fakeMessenger records every call. Message IDs start at 100 and increase
// by one per message.
type fakeMessenger struct {
	mu      sync.Mutex
	nextID  int
	texts   []sentText
	photos  []sentPhoto
	groups  []sentGroup
	answers []answer

	textErr   error
	photoErr  error
	groupErr  error
	answerErr error
	// groupIDs overrides the IDs returned by SendMediaGroup when non-nil.
	groupIDs []int
}

func (m *fakeMessenger) id() int {
	if m.nextID == 0 {
		m.nextID = 100
	}
	id := m.nextID
	m.nextID++
	return id
}

func (m *fakeMessenger) SendText(_ context.Context, chatID, text string, buttons *ButtonLayout) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, sentText{ChatID: chatID, Text: text, Buttons: buttons})
	if m.textErr != nil {
		return 0, m.textErr
	}
	return m.id(), nil
}

func (m *fakeMessenger) SendPhoto(_ context.Context, chatID, photoURL, caption string, buttons *ButtonLayout) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.photos = append(m.photos, sentPhoto{ChatID: chatID, Photo: photoURL, Caption: caption, Buttons: buttons})
	if m.photoErr != nil {
		return 0, m.photoErr
	}
	return m.id(), nil
}

func (m *fakeMessenger) SendMediaGroup(_ context.Context, chatID string, photoURLs []string, caption string) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups = append(m.groups, sentGroup{ChatID: chatID, Photos: append([]string(nil), photoURLs...), Caption: caption})
	if m.groupErr != nil {
		return nil, m.groupErr
	}
	if m.groupIDs != nil {
		return m.groupIDs, nil
	}
	ids := make([]int, len(photoURLs))
	for i := range ids {
		ids[i] = m.id()
	}
	return ids, nil
}

func (m *fakeMessenger) AnswerCallback(_ context.Context, callbackID, text string, alert bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers = append(m.answers, answer{ID: callbackID, Text: text, Alert: alert})
	return m.answerErr
}

type fakeFetcher struct {
	listings map[ListingID]*Listing
	err      error
	// panicValue, when set, makes GetListing panic after recording the call.
	panicValue any
	calls      []ListingID
}

func (f *fakeFetcher) GetListing(_ context.Context, id ListingID) (*Listing, error) {
	f.calls = append(f.calls, id)
	if f.panicValue != nil {
		panic(f.panicValue)
	}
	if f.err != nil {
		return nil, f.err
	}
	l, ok := f.listings[id]
	if !ok {
		return nil, ErrListingNotFound
	}
	return l, nil
}

type fakePostLog struct {
	mu      sync.Mutex
	records []PostRecord
	err     error
}

func (p *fakePostLog) RecordPost(_ context.Context, rec *PostRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.records = append(p.records, *rec)
	return nil
}

func (p *fakePostLog) RecentPosts(_ context.Context, limit int) ([]PostRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	var out []PostRecord
	for i := len(p.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, p.records[i])
	}
	return out, nil
}
