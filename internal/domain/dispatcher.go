package domain

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const (
	// maxMediaGroupSize is the Bot API's album limit.
	maxMediaGroupSize = 10

	followUpText = "👆 Interested in this property?"

	defaultCallTimeout = 15 * time.Second
)

var errEmptyMediaGroup = errors.New("media group acknowledged without messages")

// DeliveryStatus is the outcome of a delivery attempt.
type DeliveryStatus int

const (
	// DeliveryFailed means the primary send was not acknowledged.
	DeliveryFailed DeliveryStatus = iota
	// DeliveryDelivered means the primary send was acknowledged.
	DeliveryDelivered
	// DeliverySkipped means the messenger is not configured; nothing was sent.
	DeliverySkipped
)

func (s DeliveryStatus) String() string {
	switch s {
	case DeliveryDelivered:
		return "delivered"
	case DeliverySkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// DeliveryResult is the structured outcome of Dispatcher.Deliver.
type DeliveryResult struct {
	Status DeliveryStatus

	// MessageID is the ID of the primary message (the first album item for
	// media groups). Zero unless Status is DeliveryDelivered.
	MessageID int

	// PhotoCount is the number of photos that survived normalization.
	PhotoCount int

	// Error describes the failure or the reason for skipping.
	Error string
}

// Success reports whether the post was delivered.
func (r DeliveryResult) Success() bool { return r.Status == DeliveryDelivered }

// Skipped reports whether delivery was skipped for lack of configuration.
func (r DeliveryResult) Skipped() bool { return r.Status == DeliverySkipped }

// ChannelMessage is one outbound channel post.
type ChannelMessage struct {
	// Text is the HTML body, used as the caption when photos are sent.
	Text string

	// Photos are raw photo references; they are normalized before sending.
	Photos []string

	// Buttons is the optional inline keyboard.
	Buttons *ButtonLayout
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	// BotToken and ChannelID must both be set; otherwise every delivery is
	// skipped.
	BotToken  string
	ChannelID string

	// CallTimeout bounds each outbound call. Defaults to 15s.
	CallTimeout time.Duration
}

// Dispatcher delivers channel messages, picking text, single photo, or
// media group transmission by the number of usable photos.
type Dispatcher struct {
	messenger  Messenger
	normalizer *PhotoNormalizer
	channelID  string
	configured bool
	timeout    time.Duration
	logger     *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg DispatcherConfig, messenger Messenger, normalizer *PhotoNormalizer, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Dispatcher{
		messenger:  messenger,
		normalizer: normalizer,
		channelID:  cfg.ChannelID,
		configured: cfg.BotToken != "" && cfg.ChannelID != "" && messenger != nil,
		timeout:    timeout,
		logger:     logger,
	}
}

// Configured reports whether the dispatcher will attempt deliveries.
func (d *Dispatcher) Configured() bool { return d.configured }

// Deliver sends msg to the configured channel. It never panics on delivery
// failures and never returns an error: every outcome is a DeliveryResult.
func (d *Dispatcher) Deliver(ctx context.Context, msg ChannelMessage) DeliveryResult {
	if !d.configured {
		d.logger.Warn("telegram not configured, skipping channel post")
		return DeliveryResult{Status: DeliverySkipped, Error: "Telegram not configured"}
	}

	photos := d.normalizer.NormalizeAll(msg.Photos)
	d.logger.Info("delivering channel post",
		"channel_id", d.channelID,
		"photos_given", len(msg.Photos),
		"photos_usable", len(photos),
		"has_buttons", msg.Buttons != nil,
	)

	var result DeliveryResult
	switch len(photos) {
	case 0:
		result = d.sendText(ctx, msg)
	case 1:
		result = d.sendPhoto(ctx, photos[0], msg)
	default:
		result = d.sendMediaGroup(ctx, photos, msg)
	}
	result.PhotoCount = len(photos)
	return result
}

func (d *Dispatcher) sendText(ctx context.Context, msg ChannelMessage) DeliveryResult {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	id, err := d.messenger.SendText(ctx, d.channelID, msg.Text, msg.Buttons)
	if err != nil {
		return d.failed("send message", err)
	}
	return DeliveryResult{Status: DeliveryDelivered, MessageID: id}
}

func (d *Dispatcher) sendPhoto(ctx context.Context, photo string, msg ChannelMessage) DeliveryResult {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	id, err := d.messenger.SendPhoto(ctx, d.channelID, photo, msg.Text, msg.Buttons)
	if err != nil {
		return d.failed("send photo", err)
	}
	return DeliveryResult{Status: DeliveryDelivered, MessageID: id}
}

// sendMediaGroup sends the album and, since albums cannot carry inline
// keyboards, the buttons as a separate follow-up message. The two sends are
// not atomic: a failed follow-up leaves the album without buttons.
func (d *Dispatcher) sendMediaGroup(ctx context.Context, photos []string, msg ChannelMessage) DeliveryResult {
	if len(photos) > maxMediaGroupSize {
		d.logger.Info("truncating media group", "photos", len(photos), "max", maxMediaGroupSize)
		photos = photos[:maxMediaGroupSize]
	}

	groupCtx, cancel := context.WithTimeout(ctx, d.timeout)
	ids, err := d.messenger.SendMediaGroup(groupCtx, d.channelID, photos, msg.Text)
	cancel()
	if err != nil {
		return d.failed("send media group", err)
	}
	if len(ids) == 0 {
		return d.failed("send media group", errEmptyMediaGroup)
	}

	if msg.Buttons != nil {
		followCtx, cancel := context.WithTimeout(ctx, d.timeout)
		_, err := d.messenger.SendText(followCtx, d.channelID, followUpText, msg.Buttons)
		cancel()
		if err != nil {
			d.logger.Error("media group sent but follow-up buttons failed", "message_id", ids[0], "error", err)
		}
	}

	return DeliveryResult{Status: DeliveryDelivered, MessageID: ids[0]}
}

func (d *Dispatcher) failed(op string, err error) DeliveryResult {
	d.logger.Error("channel post failed", "op", op, "channel_id", d.channelID, "error", err)
	return DeliveryResult{Status: DeliveryFailed, Error: err.Error()}
}
