package pairing

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Error is a recoverable pairing failure: the operator is re-prompted
// instead of the process dying.
type Error struct {
	msg string
}

func (e *Error) Error() string { return e.msg }

// webChannelURLPattern extracts the numeric id of a private channel from a
// legacy Telegram web client URL such as
// https://web.telegram.org/?legacy=1#/im?p=c1498081025_17886896740758033425.
// The shape is owned by the web client, not the Bot API; revalidate it if
// upstream changes its URL format.
var webChannelURLPattern = regexp.MustCompile(`.+web\.(telegram|tlgr)\.org/\?legacy=1#/im\?p=c(\d+)_\d+`)

// authorizeChannel asks the operator for the target channel and probes it
// with a harmless "typing" action until the bot has posting rights. It
// blocks indefinitely on operator action; only an unexpected API error
// aborts.
func (f *Flow) authorizeChannel(ctx context.Context, api API, botName string) (string, error) {
	chatID, err := f.promptChannel()
	if err != nil {
		return "", err
	}

	for {
		_, err := api.SendChatAction(ctx, &bot.SendChatActionParams{
			ChatID: chatID,
			Action: models.ChatActionTyping,
		})
		if err == nil {
			return chatID, nil
		}
		if !isNotAdminErr(err) {
			return "", fmt.Errorf("channel probe failed: %w", err)
		}
		fmt.Printf("Please add %s as administrator to your channel and press Enter\n", cyan.Sprint(botName))
		if _, err := f.prompt(); err != nil {
			return "", err
		}
	}
}

// promptChannel resolves the channel reference the operator supplies:
// public handle or link for public channels, legacy web URL for private
// ones. Malformed input re-prompts.
func (f *Flow) promptChannel() (string, error) {
	fmt.Printf("Do you want to send to a %s or a %s channel? [pub/priv]\n",
		bold.Sprint("public"), bold.Sprint("private"))
	channelType, err := f.prompt()
	if err != nil {
		return "", err
	}

	if strings.HasPrefix(channelType, "pub") {
		fmt.Println("\nEnter your channel's public name or link:\nExample: @username or https://t.me/username")
		name, err := f.prompt()
		if err != nil {
			return "", err
		}
		return normalizeChannelHandle(name), nil
	}

	fmt.Println("\nOpen https://web.telegram.org/?legacy=1#/im in your browser, sign in and open your private channel." +
		"\nNow copy the URL in the address bar and enter it here:" +
		"\nExample: https://web.telegram.org/?legacy=1#/im?p=c1498081025_17886896740758033425")
	for {
		url, err := f.prompt()
		if err != nil {
			return "", err
		}
		chatID, err := parseChannelURL(url)
		if err == nil {
			return chatID, nil
		}
		red.Println(err.Error())
		fmt.Println("Please try again.")
	}
}

// normalizeChannelHandle turns a public channel reference into the "@name"
// form: a t.me link keeps its last path segment, a bare name gets the "@"
// prefix.
func normalizeChannelHandle(s string) string {
	switch {
	case strings.Contains(s, "/"):
		parts := strings.Split(s, "/")
		return "@" + parts[len(parts)-1]
	case strings.HasPrefix(s, "@"):
		return s
	default:
		return "@" + s
	}
}

// parseChannelURL extracts the private channel's chat id from a legacy web
// client URL, synthesizing the "-100" channel prefix.
func parseChannelURL(url string) (string, error) {
	m := webChannelURLPattern.FindStringSubmatch(url)
	if m == nil {
		return "", &Error{msg: fmt.Sprintf("could not find a channel id in %q", url)}
	}
	return "-100" + m[2], nil
}
