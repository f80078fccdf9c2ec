// Package telegram wraps the Bot API client used to deliver payloads: one
// thin client with a per-invocation network timeout, a sequential dispatch
// routine over the media categories, and best-effort message deletion.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// MaxMessageLength is the Bot API limit for a single text message, in
// characters. Longer messages are split before sending.
const MaxMessageLength = 4096

const defaultAPIURL = "https://api.telegram.org"

// Client wraps go-telegram/bot with the network timeout chosen for the
// current invocation. Construction does not touch the network; the token is
// only validated when a call is made (pairing does so explicitly via GetMe).
type Client struct {
	bot        *bot.Bot
	token      string
	apiURL     string
	httpClient *http.Client
}

// Option customizes client behavior.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client (used in tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithAPIURL points the client at a different API endpoint (used in tests).
func WithAPIURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.apiURL = u
		}
	}
}

// NewClient creates a Bot API client whose network calls are bounded by
// timeout.
func NewClient(token string, timeout time.Duration, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token cannot be empty")
	}

	c := &Client{
		token:      token,
		apiURL:     defaultAPIURL,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}

	b, err := bot.New(token,
		bot.WithSkipGetMe(),
		bot.WithServerURL(c.apiURL),
		bot.WithHTTPClient(timeout, c.httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot client: %w", err)
	}
	c.bot = b

	return c, nil
}

// GetMe resolves the bot's own identity.
func (c *Client) GetMe(ctx context.Context) (*models.User, error) {
	return c.bot.GetMe(ctx)
}

// SendChatAction sends a chat action such as "typing". Pairing uses it as a
// harmless probe for posting rights.
func (c *Client) SendChatAction(ctx context.Context, params *bot.SendChatActionParams) (bool, error) {
	return c.bot.SendChatAction(ctx, params)
}

func (c *Client) SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	return c.bot.SendMessage(ctx, params)
}

func (c *Client) SendDocument(ctx context.Context, params *bot.SendDocumentParams) (*models.Message, error) {
	return c.bot.SendDocument(ctx, params)
}

func (c *Client) SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error) {
	return c.bot.SendPhoto(ctx, params)
}

func (c *Client) SendSticker(ctx context.Context, params *bot.SendStickerParams) (*models.Message, error) {
	return c.bot.SendSticker(ctx, params)
}

func (c *Client) SendAnimation(ctx context.Context, params *bot.SendAnimationParams) (*models.Message, error) {
	return c.bot.SendAnimation(ctx, params)
}

func (c *Client) SendVideo(ctx context.Context, params *bot.SendVideoParams) (*models.Message, error) {
	return c.bot.SendVideo(ctx, params)
}

func (c *Client) SendAudio(ctx context.Context, params *bot.SendAudioParams) (*models.Message, error) {
	return c.bot.SendAudio(ctx, params)
}

func (c *Client) SendLocation(ctx context.Context, params *bot.SendLocationParams) (*models.Message, error) {
	return c.bot.SendLocation(ctx, params)
}

func (c *Client) DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error) {
	return c.bot.DeleteMessage(ctx, params)
}
