package pairing

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-send/internal/config"
)

// fakeAPI scripts the remote side of a pairing session.
type fakeAPI struct {
	me         *models.User
	batches    [][]models.Update
	offsets    []int64
	actionErrs []error
	actions    int
	sent       []*bot.SendMessageParams

	// cancel stops the poll loop if the scripted batches run out, so a
	// broken test fails instead of hanging.
	cancel context.CancelFunc
}

func (f *fakeAPI) GetMe(context.Context) (*models.User, error) {
	return f.me, nil
}

func (f *fakeAPI) SendChatAction(context.Context, *bot.SendChatActionParams) (bool, error) {
	f.actions++
	if len(f.actionErrs) == 0 {
		return true, nil
	}
	err := f.actionErrs[0]
	f.actionErrs = f.actionErrs[1:]
	if err != nil {
		return false, err
	}
	return true, nil
}

func (f *fakeAPI) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	f.sent = append(f.sent, params)
	return &models.Message{ID: 1}, nil
}

func (f *fakeAPI) GetUpdates(ctx context.Context, offset int64) ([]models.Update, error) {
	f.offsets = append(f.offsets, offset)
	if len(f.batches) == 0 {
		if f.cancel != nil {
			f.cancel()
		}
		return nil, errors.New("no more scripted updates")
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

func textUpdate(updateID int64, messageID int, chatID int64, text string) models.Update {
	return models.Update{
		ID: updateID,
		Message: &models.Message{
			ID:   messageID,
			Text: text,
			Chat: models.Chat{ID: chatID},
			From: &models.User{Username: "alice"},
		},
	}
}

func newTestFlow(t *testing.T, mode Mode, api *fakeAPI, input string, opts ...Option) *Flow {
	t.Helper()
	opts = append([]Option{
		WithInput(strings.NewReader(input)),
		WithConnector(func(token string) (API, error) {
			if token == "badtoken" {
				return nil, errors.New("unauthorized")
			}
			return api, nil
		}),
	}, opts...)
	return New(mode, opts...)
}

func testCtx(t *testing.T, api *fakeAPI) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	api.cancel = cancel
	return ctx
}

func TestWaitForPasswordResolvesOnSecondPoll(t *testing.T) {
	api := &fakeAPI{
		batches: [][]models.Update{
			{textUpdate(5, 10, 100, "unrelated chatter")},
			{textUpdate(6, 11, 100, "04821")},
		},
	}
	ctx := testCtx(t, api)

	update, err := waitForPassword(ctx, api, "04821")
	require.NoError(t, err)
	assert.Equal(t, int64(6), update.ID)
	assert.Equal(t, "04821", update.Message.Text)

	// first poll starts at zero; second must skip past update 5
	require.Equal(t, []int64{0, 6}, api.offsets)
}

func TestWaitForPasswordSkipsEmptyBatches(t *testing.T) {
	api := &fakeAPI{
		batches: [][]models.Update{
			{},
			{textUpdate(3, 9, 100, "04821")},
		},
	}
	ctx := testCtx(t, api)

	update, err := waitForPassword(ctx, api, "04821")
	require.NoError(t, err)
	assert.Equal(t, int64(3), update.ID)
	// empty batch must not advance the cursor
	require.Equal(t, []int64{0, 0}, api.offsets)
}

func shortRetryDelay(t *testing.T, d time.Duration) {
	t.Helper()
	old := pollRetryDelay
	pollRetryDelay = d
	t.Cleanup(func() { pollRetryDelay = old })
}

func TestWaitForPasswordIgnoresPollErrors(t *testing.T) {
	shortRetryDelay(t, 10*time.Millisecond)
	api := &fakeAPI{
		batches: [][]models.Update{
			{textUpdate(1, 2, 100, "04821")},
		},
	}
	ctx := testCtx(t, api)

	// scripted error first: swap GetUpdates via a wrapper
	wrapped := &flakyAPI{fakeAPI: api, failures: 2}
	start := time.Now()
	update, err := waitForPassword(ctx, wrapped, "04821")
	require.NoError(t, err)
	assert.Equal(t, int64(1), update.ID)
	// two failures means two delays before the successful poll
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestWaitForPasswordAbortsDuringRetryDelay(t *testing.T) {
	shortRetryDelay(t, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	// every poll fails instantly, so the loop parks in its retry delay;
	// cancellation must unblock it long before the delay elapses
	wrapped := &flakyAPI{fakeAPI: &fakeAPI{}, failures: 1 << 30}
	timer := time.AfterFunc(50*time.Millisecond, cancel)
	t.Cleanup(func() { timer.Stop() })

	done := make(chan error, 1)
	go func() {
		_, err := waitForPassword(ctx, wrapped, "04821")
		done <- err
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("waitForPassword did not return after cancellation")
	}
}

type flakyAPI struct {
	*fakeAPI
	failures int
}

func (f *flakyAPI) GetUpdates(ctx context.Context, offset int64) ([]models.Update, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("read timeout")
	}
	return f.fakeAPI.GetUpdates(ctx, offset)
}

func TestSessionStateMachine(t *testing.T) {
	ctx := context.Background()

	sm := newSessionFSM()
	require.Equal(t, stAwaitingToken, sm.Current())
	require.NoError(t, sm.Event(ctx, evTokenAccepted))
	require.NoError(t, sm.Event(ctx, evChallengeIssued))
	require.NoError(t, sm.Event(ctx, evConfirmed))
	assert.Equal(t, stPaired, sm.Current())

	// channel sessions authorize straight from connected
	sm = newSessionFSM()
	require.NoError(t, sm.Event(ctx, evTokenAccepted))
	require.NoError(t, sm.Event(ctx, evAuthorized))
	assert.Equal(t, stPaired, sm.Current())

	// the flow is linear; confirmation cannot precede the challenge
	sm = newSessionFSM()
	require.NoError(t, sm.Event(ctx, evTokenAccepted))
	require.Error(t, sm.Event(ctx, evConfirmed))
}

func TestRunDirectPairing(t *testing.T) {
	api := &fakeAPI{
		me: &models.User{Username: "testbot"},
		batches: [][]models.Update{
			{textUpdate(5, 10, 100, "wrong guess")},
			{textUpdate(6, 11, 987654, "04821")},
		},
	}
	ctx := testCtx(t, api)
	confPath := filepath.Join(t.TempDir(), "telegram-send.conf")

	flow := newTestFlow(t, ModeDirect, api, "mytoken\n", WithPassword("04821"))
	require.NoError(t, flow.Run(ctx, confPath))

	settings, err := config.Load(confPath)
	require.NoError(t, err)
	assert.Equal(t, "mytoken", settings.Token)
	assert.Equal(t, int64(987654), settings.ChatID)
	assert.Nil(t, settings.ReplyToMessageID)

	require.Len(t, api.sent, 1, "expected a confirmation message")
	assert.Equal(t, int64(987654), api.sent[0].ChatID)
	assert.Contains(t, api.sent[0].Text, "alice")
}

func TestRunRetriesBadToken(t *testing.T) {
	api := &fakeAPI{
		me: &models.User{Username: "testbot"},
		batches: [][]models.Update{
			{textUpdate(1, 2, 100, "04821")},
		},
	}
	ctx := testCtx(t, api)
	confPath := filepath.Join(t.TempDir(), "telegram-send.conf")

	flow := newTestFlow(t, ModeDirect, api, "badtoken\nmytoken\n", WithPassword("04821"))
	require.NoError(t, flow.Run(ctx, confPath))

	settings, err := config.Load(confPath)
	require.NoError(t, err)
	assert.Equal(t, "mytoken", settings.Token)
}

func TestRunGroupPairingExpectsCommandMention(t *testing.T) {
	api := &fakeAPI{
		me: &models.User{Username: "testbot"},
		batches: [][]models.Update{
			// the bare password must not match in group mode
			{textUpdate(1, 2, 100, "04821")},
			{textUpdate(2, 3, -5005, "/04821@testbot")},
		},
	}
	ctx := testCtx(t, api)
	confPath := filepath.Join(t.TempDir(), "telegram-send.conf")

	flow := newTestFlow(t, ModeGroup, api, "mytoken\n", WithPassword("04821"))
	require.NoError(t, flow.Run(ctx, confPath))

	settings, err := config.Load(confPath)
	require.NoError(t, err)
	assert.Equal(t, "-5005", settings.ChatID)
}

func TestRunForumPairingRecordsTopicRoot(t *testing.T) {
	root := &models.Message{ID: 3, ForumTopicCreated: &models.ForumTopicCreated{Name: "general"}}
	confirm := models.Update{
		ID: 8,
		Message: &models.Message{
			ID:             20,
			Text:           "04821",
			Chat:           models.Chat{ID: 777, IsForum: true},
			From:           &models.User{FirstName: "Bob"},
			ReplyToMessage: &models.Message{ID: 12, ReplyToMessage: root},
		},
	}
	api := &fakeAPI{
		me:      &models.User{Username: "testbot"},
		batches: [][]models.Update{{confirm}},
	}
	ctx := testCtx(t, api)
	confPath := filepath.Join(t.TempDir(), "telegram-send.conf")

	flow := newTestFlow(t, ModeDirect, api, "mytoken\n", WithPassword("04821"))
	require.NoError(t, flow.Run(ctx, confPath))

	settings, err := config.Load(confPath)
	require.NoError(t, err)
	assert.Equal(t, int64(3), settings.ReplyToMessageID)

	require.Len(t, api.sent, 1)
	require.NotNil(t, api.sent[0].ReplyParameters)
	assert.Equal(t, 3, api.sent[0].ReplyParameters.MessageID)
}

func TestRunPublicChannelPairing(t *testing.T) {
	api := &fakeAPI{
		me: &models.User{Username: "testbot"},
		actionErrs: []error{
			fmt.Errorf("%w: bot is not a member", bot.ErrorForbidden),
			fmt.Errorf("%w: need administrator rights", bot.ErrorBadRequest),
		},
	}
	ctx := testCtx(t, api)
	confPath := filepath.Join(t.TempDir(), "telegram-send.conf")

	// token, channel type, channel link, then two Enters for the admin prompts
	input := "mytoken\npub\nhttps://t.me/mychannel\n\n\n"
	flow := newTestFlow(t, ModeChannel, api, input)
	require.NoError(t, flow.Run(ctx, confPath))

	settings, err := config.Load(confPath)
	require.NoError(t, err)
	assert.Equal(t, "@mychannel", settings.ChatID)
	assert.Equal(t, 3, api.actions, "expected the probe to run until it succeeded")
}

func TestRunPrivateChannelPairing(t *testing.T) {
	api := &fakeAPI{me: &models.User{Username: "testbot"}}
	ctx := testCtx(t, api)
	confPath := filepath.Join(t.TempDir(), "telegram-send.conf")

	// a malformed URL re-prompts before the valid one
	input := "mytoken\npriv\nhttps://example.com/nope\n" +
		"https://web.telegram.org/?legacy=1#/im?p=c1498081025_17886896740758033425\n"
	flow := newTestFlow(t, ModeChannel, api, input)
	require.NoError(t, flow.Run(ctx, confPath))

	settings, err := config.Load(confPath)
	require.NoError(t, err)
	assert.Equal(t, "-1001498081025", settings.ChatID)
}

func TestParseChannelURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
		wantErr  bool
	}{
		{
			"telegram domain",
			"https://web.telegram.org/?legacy=1#/im?p=c1498081025_17886896740758033425",
			"-1001498081025", false,
		},
		{
			"tlgr domain",
			"https://web.tlgr.org/?legacy=1#/im?p=c42_133",
			"-10042", false,
		},
		{"not a channel url", "https://t.me/mychannel", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseChannelURL(tt.url)
			if tt.wantErr {
				var pairErr *Error
				require.ErrorAs(t, err, &pairErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNormalizeChannelHandle(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"mychannel", "@mychannel"},
		{"@mychannel", "@mychannel"},
		{"https://t.me/mychannel", "@mychannel"},
		{"t.me/mychannel", "@mychannel"},
	}
	for _, tt := range tests {
		if got := normalizeChannelHandle(tt.input); got != tt.expected {
			t.Fatalf("normalizeChannelHandle(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestRootTopicMessage(t *testing.T) {
	topicRoot := &models.Message{ID: 1, ForumTopicCreated: &models.ForumTopicCreated{Name: "general"}}
	plainRoot := &models.Message{ID: 2}

	tests := []struct {
		name     string
		msg      *models.Message
		expected *models.Message
	}{
		{"direct reply to topic root", &models.Message{ID: 5, ReplyToMessage: topicRoot}, topicRoot},
		{"nested reply chain", &models.Message{ID: 6, ReplyToMessage: &models.Message{ID: 5, ReplyToMessage: topicRoot}}, topicRoot},
		{"root is a plain message", &models.Message{ID: 7, ReplyToMessage: plainRoot}, nil},
		{"no reply chain", &models.Message{ID: 8}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, rootTopicMessage(tt.msg))
		})
	}
}

func TestGeneratePassword(t *testing.T) {
	for i := 0; i < 100; i++ {
		password := generatePassword()
		require.Len(t, password, 5)
		for _, r := range password {
			require.True(t, r >= '0' && r <= '9', "password %q contains a non-digit", password)
		}
	}
}

func TestFormatGroupPassword(t *testing.T) {
	assert.Equal(t, "/04821@testbot", formatGroupPassword("04821", "testbot"))
}
