package domain

import (
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Button labels.
const (
	contactButtonText = "📞 Contact Info"
	detailsButtonText = "🔍 View Details"
	postButtonText    = "➕ Post Your Own Listing"
)

// ButtonLayout is an inline keyboard: an ordered list of button rows.
type ButtonLayout struct {
	Rows [][]Button
}

// Button is a single inline button. Exactly one of URL and CallbackData is
// set.
type Button struct {
	Text         string
	URL          string
	CallbackData string
}

// Formatter renders listings into channel messages. It is safe for
// concurrent use.
type Formatter struct {
	miniApp *url.URL
	printer *message.Printer
	logger  *slog.Logger
}

// NewFormatter creates a Formatter whose deep links point at the given
// mini-app URL.
func NewFormatter(miniAppURL string, logger *slog.Logger) (*Formatter, error) {
	u, err := url.Parse(miniAppURL)
	if err != nil {
		return nil, fmt.Errorf("parse mini app url: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" || u.Host == "" {
		return nil, fmt.Errorf("mini app url %q must be an absolute http(s) url", miniAppURL)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Formatter{
		miniApp: u,
		printer: message.NewPrinter(language.English),
		logger:  logger,
	}, nil
}

// ListingMessage formats a listing as HTML for the channel post.
func (f *Formatter) ListingMessage(l *Listing) string {
	var b strings.Builder
	esc := html.EscapeString

	fmt.Fprintf(&b, "🏠 <b>%s</b>\n\n", esc(l.Title()))
	fmt.Fprintf(&b, "📍 <b>Location:</b> %s\n", esc(l.Location))
	fmt.Fprintf(&b, "🛏️ <b>Bedrooms:</b> %d | 🚿 <b>Bathrooms:</b> %d\n", l.Bedrooms, l.Bathrooms)

	fmt.Fprintf(&b, "💰 <b>Price:</b> %s %s/month", esc(l.Currency), f.amount(l.MonthlyRent))
	if l.Negotiable {
		b.WriteString(" <i>(Negotiable)</i>")
	}
	b.WriteString("\n")

	if l.InitialDeposit != "" {
		fmt.Fprintf(&b, "💵 <b>Deposit:</b> %s %s\n", esc(l.Currency), f.amount(l.InitialDeposit))
	}

	if len(l.Amenities) > 0 {
		b.WriteString("\n✨ <b>Amenities:</b>\n")
		for _, tag := range l.Amenities {
			symbol, name := amenityLine(tag)
			fmt.Fprintf(&b, "%s %s\n", symbol, esc(name))
		}
	}

	fmt.Fprintf(&b, "\n🏷️ <b>Type:</b> %s", esc(l.PropertyTypeLabel()))
	return b.String()
}

// amount renders the integer part of a with thousands separators. Values
// that do not parse are printed as given.
func (f *Formatter) amount(a Amount) string {
	n, ok := a.Whole()
	if !ok {
		return html.EscapeString(string(a))
	}
	return f.printer.Sprintf("%d", n)
}

// ListingButtons builds the inline keyboard for a listing post. Rows that
// need the listing ID are omitted when it is missing or cannot be encoded.
func (f *Formatter) ListingButtons(l *Listing) *ButtonLayout {
	layout := &ButtonLayout{}

	if l.ID != "" {
		if err := ValidateListingID(l.ID); err != nil {
			f.logger.Warn("listing id not usable in deep links, omitting listing buttons", "listing_id", l.ID, "error", err)
		} else {
			if strings.TrimSpace(l.PhoneNumber) != "" {
				if token, err := ContactLink(l.ID).Token(); err == nil {
					layout.Rows = append(layout.Rows, []Button{{Text: contactButtonText, CallbackData: token}})
				} else {
					f.logger.Warn("omitting contact button", "listing_id", l.ID, "error", err)
				}
			}
			if link, err := f.DeepLinkURL(ListingLink(l.ID)); err == nil {
				layout.Rows = append(layout.Rows, []Button{{Text: detailsButtonText, URL: link}})
			} else {
				f.logger.Warn("omitting details button", "listing_id", l.ID, "error", err)
			}
		}
	}

	if link, err := f.DeepLinkURL(CreateListingLink()); err == nil {
		layout.Rows = append(layout.Rows, []Button{{Text: postButtonText, URL: link}})
	}
	return layout
}

// DeepLinkURL returns the mini-app URL that opens the given deep link.
func (f *Formatter) DeepLinkURL(d DeepLink) (string, error) {
	token, err := d.Token()
	if err != nil {
		return "", err
	}
	u := *f.miniApp
	q := u.Query()
	q.Set("startapp", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ContactMessage formats the private reply sent when a user asks for a
// listing's contact details.
func ContactMessage(phoneNumber, property string) string {
	return "📱 <b>Contact Information</b>\n\n" +
		"Property: " + html.EscapeString(property) + "\n" +
		"Phone: <code>" + html.EscapeString(phoneNumber) + "</code>\n\n" +
		"<i>Click the phone number to copy it.</i>"
}

// PhotoCaption returns the caption for photo index of total within a media
// group. Only the first photo carries the full listing text.
func (f *Formatter) PhotoCaption(l *Listing, index, total int) string {
	if index == 0 {
		return f.ListingMessage(l)
	}
	return fmt.Sprintf("Photo %d/%d", index+1, total)
}
