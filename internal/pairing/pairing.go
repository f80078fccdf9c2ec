// Package pairing implements the one-time interactive setup that binds the
// tool to a chat: the operator supplies a bot token, relays a generated
// password (or grants channel admin rights), and the resulting credentials
// are persisted for every later invocation.
package pairing

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/looplab/fsm"

	"telegram-send/internal/config"
	"telegram-send/internal/logger"
	"telegram-send/internal/telegram"
)

// Mode selects what kind of chat is being paired.
type Mode int

const (
	ModeDirect Mode = iota
	ModeChannel
	ModeGroup
)

// Session states. The flow is linear; going backwards is a retry within a
// state, never a transition.
const (
	stAwaitingToken        = "awaiting_token"
	stConnected            = "connected"
	stAwaitingConfirmation = "awaiting_confirmation"
	stPaired               = "paired"

	evTokenAccepted   = "token_accepted"
	evChallengeIssued = "challenge_issued"
	evConfirmed       = "confirmed"
	evAuthorized      = "authorized"
)

var (
	cyan    = color.New(color.FgCyan)
	magenta = color.New(color.FgMagenta)
	bold    = color.New(color.Bold)
	red     = color.New(color.FgRed)
	green   = color.New(color.FgGreen)
)

const (
	contactURL  = "https://telegram.me/"
	sendTimeout = 30 * time.Second
)

// pollRetryDelay spaces out confirmation polls after a failure. Fast
// failures (DNS, connection refused) would otherwise retry in a tight loop.
var pollRetryDelay = time.Second

// API is what the flow needs from the Bot API.
type API interface {
	GetMe(ctx context.Context) (*models.User, error)
	SendChatAction(ctx context.Context, params *bot.SendChatActionParams) (bool, error)
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	GetUpdates(ctx context.Context, offset int64) ([]models.Update, error)
}

// Flow drives one pairing session.
type Flow struct {
	mode Mode
	in   *bufio.Reader
	sm   *fsm.FSM

	connect     func(token string) (API, error)
	newPassword func() string
}

// Option customizes flow behavior, mainly for tests.
type Option func(*Flow)

// WithInput replaces the operator input stream.
func WithInput(r io.Reader) Option {
	return func(f *Flow) { f.in = bufio.NewReader(r) }
}

// WithConnector replaces how a token becomes an API client.
func WithConnector(connect func(token string) (API, error)) Option {
	return func(f *Flow) {
		if connect != nil {
			f.connect = connect
		}
	}
}

// WithPassword fixes the generated password.
func WithPassword(password string) Option {
	return func(f *Flow) { f.newPassword = func() string { return password } }
}

// New creates a pairing flow for the given mode.
func New(mode Mode, opts ...Option) *Flow {
	f := &Flow{
		mode: mode,
		in:   bufio.NewReader(os.Stdin),
		connect: func(token string) (API, error) {
			return telegram.NewClient(token, sendTimeout)
		},
		newPassword: generatePassword,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.sm = newSessionFSM()
	return f
}

func newSessionFSM() *fsm.FSM {
	return fsm.NewFSM(
		stAwaitingToken,
		fsm.Events{
			{Name: evTokenAccepted, Src: []string{stAwaitingToken}, Dst: stConnected},
			{Name: evChallengeIssued, Src: []string{stConnected}, Dst: stAwaitingConfirmation},
			{Name: evConfirmed, Src: []string{stAwaitingConfirmation}, Dst: stPaired},
			{Name: evAuthorized, Src: []string{stConnected}, Dst: stPaired},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				logger.L().Debugf("pairing: %q -> %q", e.Src, e.Dst)
			},
		},
	)
}

// Run walks the session to completion and persists the configuration at
// confPath. It blocks on operator input and, for direct and group pairing,
// on the confirmation poll.
func (f *Flow) Run(ctx context.Context, confPath string) error {
	api, token, botName, err := f.awaitToken(ctx)
	if err != nil {
		return err
	}
	if err := f.sm.Event(ctx, evTokenAccepted); err != nil {
		return err
	}
	fmt.Printf("Connected with %s.\n\n", cyan.Sprint(botName))

	settings := &config.Settings{Token: token}

	if f.mode == ModeChannel {
		chatID, err := f.authorizeChannel(ctx, api, botName)
		if err != nil {
			return err
		}
		if err := f.sm.Event(ctx, evAuthorized); err != nil {
			return err
		}
		settings.ChatID = chatID
		green.Println("\nCongratulations! telegram-send can now post to your channel!")
		return config.Save(confPath, settings)
	}

	password := f.newPassword()
	if f.mode == ModeGroup {
		password = formatGroupPassword(password, botName)
		fmt.Printf("Please add %s to your group\nand send the following message to the group: %s\n\n",
			cyan.Sprint(botName), bold.Sprint(password))
	} else {
		fmt.Printf("Please add %s on Telegram (%s)\nand send it the password: %s\n\n",
			cyan.Sprint(botName), contactURL+botName, bold.Sprint(password))
	}
	if err := f.sm.Event(ctx, evChallengeIssued); err != nil {
		return err
	}

	update, err := waitForPassword(ctx, api, password)
	if err != nil {
		return err
	}
	if err := f.sm.Event(ctx, evConfirmed); err != nil {
		return err
	}

	msg := update.Message
	settings.ChatID = msg.Chat.ID
	user := ""
	if msg.From != nil {
		user = msg.From.Username
		if user == "" {
			user = msg.From.FirstName
		}
	}

	var topicRootID int
	if msg.Chat.IsForum {
		if root := rootTopicMessage(msg); root != nil {
			topicRootID = root.ID
			settings.ReplyToMessageID = int64(root.ID)
		}
	}

	congrats := fmt.Sprintf("Congratulations %s! \ntelegram-send is now ready for use!", user)
	green.Println(congrats)

	params := &bot.SendMessageParams{
		ChatID: msg.Chat.ID,
		Text:   "🎊 " + congrats + " 🎊",
	}
	if topicRootID != 0 {
		params.ReplyParameters = &models.ReplyParameters{MessageID: topicRootID}
	}
	if _, err := api.SendMessage(ctx, params); err != nil {
		logger.L().Warnf("Failed to send confirmation message: %v", err)
	}

	return config.Save(confPath, settings)
}

// awaitToken prompts for a bot token until one resolves to an account.
// Failures re-enter the same state with the error surfaced, they never
// abort the flow.
func (f *Flow) awaitToken(ctx context.Context) (API, string, string, error) {
	fmt.Printf("Talk with the %s on Telegram (%s), create a bot and insert the token\n",
		cyan.Sprint("BotFather"), contactURL+"BotFather")

	for {
		token, err := f.prompt()
		if err != nil {
			return nil, "", "", err
		}

		api, err := f.connect(token)
		if err == nil {
			var me *models.User
			me, err = api.GetMe(ctx)
			if err == nil {
				return api, token, me.Username, nil
			}
		}
		fmt.Printf("Error: %v\n", err)
		red.Println("Something went wrong, please try again.")
		fmt.Println()
	}
}

func (f *Flow) prompt() (string, error) {
	magenta.Print("❯ ")
	line, err := f.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("pairing aborted: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// waitForPassword polls for incoming messages until one matches password
// exactly. The cursor advances past each inspected batch so updates are not
// re-observed; poll errors are logged and polling continues.
func waitForPassword(ctx context.Context, api API, password string) (*models.Update, error) {
	var offset int64
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		updates, err := api.GetUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.L().Errorf("Polling for confirmation failed: %v", err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(pollRetryDelay):
			}
			continue
		}

		for i := range updates {
			if m := updates[i].Message; m != nil && m.Text == password {
				return &updates[i], nil
			}
		}
		if len(updates) > 0 {
			offset = updates[len(updates)-1].ID + 1
		}
	}
}

// rootTopicMessage walks the reply chain of msg to its root and returns the
// root if it is a forum topic creation marker, nil otherwise. Messages sent
// inside a topic must later reply to that root to stay threaded.
func rootTopicMessage(msg *models.Message) *models.Message {
	for msg.ReplyToMessage != nil {
		msg = msg.ReplyToMessage
	}
	if msg.ForumTopicCreated != nil {
		return msg
	}
	return nil
}

func generatePassword() string {
	var b strings.Builder
	for i := 0; i < 5; i++ {
		b.WriteByte(byte('0' + rand.IntN(10)))
	}
	return b.String()
}

// formatGroupPassword turns the password into the bot-command mention form
// a group member would send, e.g. "/04821@mybot".
func formatGroupPassword(password, botName string) string {
	return "/" + password + "@" + botName
}

// isNotAdminErr matches the two rejections Telegram returns while the bot
// is not yet an administrator of the target channel. A private channel
// reports bad request instead of forbidden for non-admin bots.
func isNotAdminErr(err error) bool {
	return errors.Is(err, bot.ErrorForbidden) || errors.Is(err, bot.ErrorBadRequest)
}
