package telegram

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"telegram-send/internal/config"
	"telegram-send/internal/logger"
	"telegram-send/internal/text"
)

// Sender is the subset of the Bot API the dispatcher calls. *Client
// satisfies it; tests substitute a fake.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendDocument(ctx context.Context, params *bot.SendDocumentParams) (*models.Message, error)
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error)
	SendSticker(ctx context.Context, params *bot.SendStickerParams) (*models.Message, error)
	SendAnimation(ctx context.Context, params *bot.SendAnimationParams) (*models.Message, error)
	SendVideo(ctx context.Context, params *bot.SendVideoParams) (*models.Message, error)
	SendAudio(ctx context.Context, params *bot.SendAudioParams) (*models.Message, error)
	SendLocation(ctx context.Context, params *bot.SendLocationParams) (*models.Message, error)
}

// Payload is everything a single invocation wants delivered. Media entries
// are local file paths; locations are "lat,lon" tokens or consecutive
// lat/lon token pairs.
type Payload struct {
	Messages   []string
	Files      []string
	Images     []string
	Stickers   []string
	Animations []string
	Videos     []string
	Audios     []string
	Locations  []string
	Captions   []string
}

// Options are the per-invocation send options shared by every call.
type Options struct {
	ParseMode models.ParseMode
	Pre       bool
	Silent    bool
	NoPreview bool
}

// Send dispatches payload to the configured chat, one category at a time in
// fixed order: messages, files, images, stickers, animations, videos,
// audios, locations. It returns the ids of every message sent, in call
// order; on error it returns the ids accumulated so far alongside the error.
func Send(ctx context.Context, api Sender, settings *config.Settings, payload *Payload, opts Options) ([]int, error) {
	var messageIDs []int

	reply := replyParams(settings.ReplyToMessageID)

	for _, m := range payload.Messages {
		if m == "" {
			continue
		}
		chunks := []string{m}
		if utf8.RuneCountInString(m) > MaxMessageLength {
			logger.L().Warnf("Message longer than %d characters, splitting into smaller messages.", MaxMessageLength)
			chunks = text.Split(m, MaxMessageLength)
		}
		for _, chunk := range chunks {
			body, parseMode := chunk, opts.ParseMode
			if opts.Pre {
				body, parseMode = text.Pre(chunk), models.ParseModeHTML
			}
			params := &bot.SendMessageParams{
				ChatID:              settings.ChatID,
				Text:                body,
				ParseMode:           parseMode,
				DisableNotification: opts.Silent,
				ReplyParameters:     reply,
			}
			if opts.NoPreview {
				params.LinkPreviewOptions = &models.LinkPreviewOptions{IsDisabled: bot.True()}
			}
			msg, err := api.SendMessage(ctx, params)
			if err != nil {
				return messageIDs, err
			}
			messageIDs = append(messageIDs, msg.ID)
		}
	}

	// One entry per media category, in delivery order. Stickers carry no
	// caption.
	categories := []struct {
		name      string
		paths     []string
		captioned bool
		send      func(ctx context.Context, file *models.InputFileUpload, caption string) (*models.Message, error)
	}{
		{"file", payload.Files, true, func(ctx context.Context, file *models.InputFileUpload, caption string) (*models.Message, error) {
			return api.SendDocument(ctx, &bot.SendDocumentParams{
				ChatID:              settings.ChatID,
				Document:            file,
				Caption:             caption,
				ParseMode:           opts.ParseMode,
				DisableNotification: opts.Silent,
				ReplyParameters:     reply,
			})
		}},
		{"image", payload.Images, true, func(ctx context.Context, file *models.InputFileUpload, caption string) (*models.Message, error) {
			return api.SendPhoto(ctx, &bot.SendPhotoParams{
				ChatID:              settings.ChatID,
				Photo:               file,
				Caption:             caption,
				ParseMode:           opts.ParseMode,
				DisableNotification: opts.Silent,
				ReplyParameters:     reply,
			})
		}},
		{"sticker", payload.Stickers, false, func(ctx context.Context, file *models.InputFileUpload, _ string) (*models.Message, error) {
			return api.SendSticker(ctx, &bot.SendStickerParams{
				ChatID:              settings.ChatID,
				Sticker:             file,
				DisableNotification: opts.Silent,
				ReplyParameters:     reply,
			})
		}},
		{"animation", payload.Animations, true, func(ctx context.Context, file *models.InputFileUpload, caption string) (*models.Message, error) {
			return api.SendAnimation(ctx, &bot.SendAnimationParams{
				ChatID:              settings.ChatID,
				Animation:           file,
				Caption:             caption,
				ParseMode:           opts.ParseMode,
				DisableNotification: opts.Silent,
				ReplyParameters:     reply,
			})
		}},
		{"video", payload.Videos, true, func(ctx context.Context, file *models.InputFileUpload, caption string) (*models.Message, error) {
			return api.SendVideo(ctx, &bot.SendVideoParams{
				ChatID:              settings.ChatID,
				Video:               file,
				Caption:             caption,
				ParseMode:           opts.ParseMode,
				SupportsStreaming:   true,
				DisableNotification: opts.Silent,
				ReplyParameters:     reply,
			})
		}},
		{"audio", payload.Audios, true, func(ctx context.Context, file *models.InputFileUpload, caption string) (*models.Message, error) {
			return api.SendAudio(ctx, &bot.SendAudioParams{
				ChatID:              settings.ChatID,
				Audio:               file,
				Caption:             caption,
				ParseMode:           opts.ParseMode,
				DisableNotification: opts.Silent,
				ReplyParameters:     reply,
			})
		}},
	}

	for _, cat := range categories {
		captions := alignCaptions(len(cat.paths), payload.Captions)
		for i, path := range cat.paths {
			caption := ""
			if cat.captioned {
				caption = captions[i]
			}
			msg, err := sendFile(ctx, path, caption, cat.send)
			if err != nil {
				return messageIDs, fmt.Errorf("failed to send %s %s: %w", cat.name, path, err)
			}
			messageIDs = append(messageIDs, msg.ID)
		}
	}

	if len(payload.Locations) > 0 {
		locations, err := ParseLocations(payload.Locations)
		if err != nil {
			return messageIDs, err
		}
		for _, loc := range locations {
			msg, err := api.SendLocation(ctx, &bot.SendLocationParams{
				ChatID:              settings.ChatID,
				Latitude:            loc.Latitude,
				Longitude:           loc.Longitude,
				DisableNotification: opts.Silent,
				ReplyParameters:     reply,
			})
			if err != nil {
				return messageIDs, err
			}
			messageIDs = append(messageIDs, msg.ID)
		}
	}

	return messageIDs, nil
}

func sendFile(ctx context.Context, path, caption string,
	send func(context.Context, *models.InputFileUpload, string) (*models.Message, error),
) (*models.Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	upload := &models.InputFileUpload{Filename: filepath.Base(path), Data: f}
	return send(ctx, upload, caption)
}

// alignCaptions right-pads captions with empty strings so every one of n
// items gets a caption slot. Items beyond the supplied captions go out
// uncaptioned; excess captions are left unused.
func alignCaptions(n int, captions []string) []string {
	aligned := make([]string, n)
	copy(aligned, captions)
	return aligned
}

// Location is a latitude/longitude pair in degrees.
type Location struct {
	Latitude  float64
	Longitude float64
}

// ParseLocations reads locations from the command-line tokens. A token
// containing a comma holds both coordinates; otherwise the token is a
// latitude and the next token the longitude.
func ParseLocations(tokens []string) ([]Location, error) {
	var locations []Location
	for i := 0; i < len(tokens); i++ {
		latStr, lonStr := tokens[i], ""
		if strings.Contains(latStr, ",") {
			parts := strings.SplitN(latStr, ",", 2)
			latStr, lonStr = parts[0], parts[1]
		} else {
			i++
			if i >= len(tokens) {
				return nil, fmt.Errorf("location %q is missing a longitude", latStr)
			}
			lonStr = tokens[i]
		}

		lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude %q: %w", latStr, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude %q: %w", lonStr, err)
		}
		locations = append(locations, Location{Latitude: lat, Longitude: lon})
	}
	return locations, nil
}

// replyParams converts the stored reply anchor, if any, into Bot API reply
// parameters.
func replyParams(anchor any) *models.ReplyParameters {
	switch v := anchor.(type) {
	case int64:
		return &models.ReplyParameters{MessageID: int(v)}
	case int:
		return &models.ReplyParameters{MessageID: v}
	case string:
		if id, err := strconv.Atoi(v); err == nil {
			return &models.ReplyParameters{MessageID: id}
		}
	}
	return nil
}
