package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	name   string
	err    error
	titles []string
	events []string
}

func (f *fakeSender) Send(_ context.Context, a Alert) error {
	f.titles = append(f.titles, a.Title)
	f.events = append(f.events, a.Event)
	return f.err
}

func (f *fakeSender) Name() string { return f.name }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifierFiltersEvents(t *testing.T) {
	s := &fakeSender{name: "a"}
	n := NewNotifier([]Sender{s}, []string{"auction_won", " error "}, testLogger())
	ctx := context.Background()

	require.NoError(t, n.Notify(ctx, "auction_won", "won", ""))
	require.NoError(t, n.Notify(ctx, "auction_no_sale", "skipped", ""))
	require.NoError(t, n.Notify(ctx, "error", "err", ""))
	require.NoError(t, n.NotifyAll(ctx, "all", ""))

	assert.Equal(t, []string{"won", "err", "all"}, s.titles)
	assert.Equal(t, []string{"auction_won", "error", ""}, s.events)
	assert.True(t, n.Enabled())
}

func TestNotifierEmptyFilterAllowsAll(t *testing.T) {
	s := &fakeSender{name: "a"}
	n := NewNotifier([]Sender{s}, nil, testLogger())
	require.NoError(t, n.Notify(context.Background(), "anything", "t", ""))
	assert.Len(t, s.titles, 1)

	assert.False(t, NewNotifier(nil, nil, testLogger()).Enabled())
}

func TestNotifierContinuesPastFailures(t *testing.T) {
	bad := &fakeSender{name: "bad", err: errors.New("down")}
	good := &fakeSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, testLogger())

	err := n.Notify(context.Background(), "e", "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: down")
	assert.Len(t, good.titles, 1)
}

func TestWebhookSenderSigns(t *testing.T) {
	var gotSig, gotTS string
	var got webhookPayload
	var raw []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(HeaderSignature)
		gotTS = r.Header.Get(HeaderTimestamp)
		raw, _ = io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := NewWebhookSender(srv.URL, "s3cret")
	w.now = func() time.Time { return time.Unix(1700000000, 0) }
	require.NoError(t, w.Send(context.Background(), Alert{Event: EventAuctionWon, Title: "Auction won", Message: "G1 goal"}))

	assert.Equal(t, "Auction won", got.Title)
	assert.Equal(t, EventAuctionWon, got.Event)
	assert.Equal(t, "1700000000", gotTS)
	assert.True(t, Verify([]byte("s3cret"), gotTS, raw, gotSig))
	assert.False(t, Verify([]byte("other"), gotTS, raw, gotSig))
}

func TestWebhookSenderUnsignedAndErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(HeaderSignature) != "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewWebhookSender(srv.URL, "").Send(context.Background(), Alert{Title: "t", Message: "m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 500")
}

func TestTelegramFormatsAuctionAlerts(t *testing.T) {
	var path string
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	tg := NewTelegramSender("TOKEN", "42")
	tg.baseURL = srv.URL
	require.NoError(t, tg.Send(context.Background(), Alert{
		Event:   EventAuctionNoSale,
		Title:   "Auction closed without sale",
		Message: "GOAL_SCORED (G<1>): no_winner",
	}))

	assert.Equal(t, "/botTOKEN/sendMessage", path)
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "HTML", got["parse_mode"])
	assert.Equal(t, true, got["disable_notification"])
	text := got["text"].(string)
	assert.True(t, strings.HasPrefix(text, "\u26AA <b>Auction closed without sale</b>\n"), text)
	assert.Contains(t, text, "G&lt;1&gt;): no_winner")
	assert.True(t, strings.HasSuffix(text, "<code>auction_no_sale</code>"), text)

	require.NoError(t, tg.Send(context.Background(), Alert{Event: EventError, Title: "Winner spend failed"}))
	assert.Equal(t, false, got["disable_notification"])
	assert.Equal(t, "\U0001F6A8 <b>Winner spend failed</b>\n<code>error</code>", got["text"])
}

func TestDiscordSendsEventEmbed(t *testing.T) {
	var got discordMessage
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_ = json.Unmarshal(body, &raw)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	at := time.Date(2024, 6, 1, 20, 15, 0, 0, time.UTC)
	require.NoError(t, NewDiscordSender(srv.URL+"/hook").Send(context.Background(), Alert{
		Event:   EventAuctionWon,
		Title:   "Auction won",
		Message: "GOAL_SCORED (G1) won by ub for 1500.00",
		At:      at,
	}))

	require.Len(t, got.Embeds, 1)
	e := got.Embeds[0]
	assert.Equal(t, "\U0001F3C6 Auction won", e.Title)
	assert.Equal(t, "GOAL_SCORED (G1) won by ub for 1500.00", e.Description)
	assert.Equal(t, 0x2ECC71, e.Color)
	assert.Equal(t, "2024-06-01T20:15:00Z", e.Timestamp)
	require.NotNil(t, e.Footer)
	assert.Equal(t, EventAuctionWon, e.Footer.Text)
	mentions := raw["allowed_mentions"].(map[string]any)
	assert.Equal(t, []any{}, mentions["parse"])

	_, errColor := badge(EventError)
	_, otherColor := badge("")
	assert.NotEqual(t, errColor, otherColor)
}

func TestNotifierStampsAlerts(t *testing.T) {
	s := &recordingSender{}
	n := NewNotifier([]Sender{s}, nil, testLogger())
	n.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.FixedZone("x", 3600)) }

	require.NoError(t, n.Notify(context.Background(), EventAuctionWon, "t", "m"))
	require.Len(t, s.alerts, 1)
	assert.Equal(t, time.UTC, s.alerts[0].At.Location())
	assert.Equal(t, 23, s.alerts[0].At.Hour())
	assert.Equal(t, "m", s.alerts[0].Message)
}

type recordingSender struct {
	alerts []Alert
}

func (r *recordingSender) Send(_ context.Context, a Alert) error {
	r.alerts = append(r.alerts, a)
	return nil
}

func (r *recordingSender) Name() string { return "recording" }

func TestQueueDeliversInBackground(t *testing.T) {
	s := &syncSender{got: make(chan string, 4)}
	q := NewQueue(NewNotifier([]Sender{s}, nil, testLogger()), 4, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = q.Run(ctx)
		close(done)
	}()

	require.NoError(t, q.Notify(ctx, "auction_won", "one", ""))
	select {
	case title := <-s.got:
		assert.Equal(t, "one", title)
	case <-time.After(time.Second):
		t.Fatal("notification not delivered")
	}
	cancel()
	<-done
}

func TestQueueDropsWhenFull(t *testing.T) {
	s := &syncSender{got: make(chan string, 4)}
	q := NewQueue(NewNotifier([]Sender{s}, nil, testLogger()), 1, testLogger())
	ctx := context.Background()
	require.NoError(t, q.Notify(ctx, "e", "kept", ""))
	require.NoError(t, q.Notify(ctx, "e", "dropped", ""))

	q.drain()
	assert.Equal(t, "kept", <-s.got)
	assert.Empty(t, s.got)
}

type syncSender struct {
	got chan string
}

func (s *syncSender) Send(_ context.Context, a Alert) error {
	s.got <- a.Title
	return nil
}

func (s *syncSender) Name() string { return "sync" }
