package telegram

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"market-monitor/internal/alertlog"
	"market-monitor/internal/stats"
	"market-monitor/internal/types"
)

type fakeChannel struct {
	sent []Message
	err  error
}

func (f *fakeChannel) Send(ctx context.Context, msg Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func newsItem() types.Item {
	return types.Item{
		ID:       "42",
		Origin:   types.OriginNews,
		Text:     "X Corp beats earnings expectations",
		Headline: "X Corp beats earnings",
		Summary:  "Quarterly results came in above forecasts.",
		Source:   "Newswire",
		URL:      "https://example.com/xcorp",
	}
}

func positiveAnalysis() types.Analysis {
	return types.Analysis{
		Relevant:   true,
		Sentiment:  types.SentimentPositive,
		Entities:   []string{"X Corp"},
		Commentary: "Likely bullish",
		Confidence: 0.87,
	}
}

func TestDeliverNewsAlert(t *testing.T) {
	ch := &fakeChannel{}
	st := stats.New()
	d := NewDispatcher(ch, st, nil)

	if !d.Deliver(context.Background(), newsItem(), positiveAnalysis()) {
		t.Fatal("Expected delivery to succeed")
	}

	if len(ch.sent) != 1 {
		t.Fatalf("Expected 1 sent message, got %d", len(ch.sent))
	}
	msg := ch.sent[0]

	if !strings.Contains(msg.Text, "🟢 BULLISH") {
		t.Errorf("Expected bullish indicator in message, got %q", msg.Text)
	}
	if !strings.Contains(msg.Text, "87%") {
		t.Errorf("Expected confidence 87%% in message, got %q", msg.Text)
	}
	if !strings.Contains(msg.Text, "Likely bullish") {
		t.Errorf("Expected commentary verbatim, got %q", msg.Text)
	}
	if msg.ButtonLabel != "Read Article" || msg.ButtonURL != "https://example.com/xcorp" {
		t.Errorf("Unexpected button: %q -> %q", msg.ButtonLabel, msg.ButtonURL)
	}

	snap := st.Snapshot()
	if snap.NewsSent != 1 {
		t.Errorf("Expected news sent counter 1, got %d", snap.NewsSent)
	}
}

func TestDeliverSameIDTwice(t *testing.T) {
	ch := &fakeChannel{}
	st := stats.New()
	d := NewDispatcher(ch, st, nil)

	first := d.Deliver(context.Background(), newsItem(), positiveAnalysis())
	second := d.Deliver(context.Background(), newsItem(), positiveAnalysis())

	if !first {
		t.Error("Expected first delivery to succeed")
	}
	if second {
		t.Error("Expected second delivery for same id to be a no-op")
	}
	if len(ch.sent) != 1 {
		t.Errorf("Expected exactly 1 send, got %d", len(ch.sent))
	}
	if snap := st.Snapshot(); snap.NewsSent != 1 {
		t.Errorf("Expected sent counter to increment exactly once, got %d", snap.NewsSent)
	}
}

func TestDeliverSendFailureLeavesStateUntouched(t *testing.T) {
	ch := &fakeChannel{err: errors.New("telegram unreachable")}
	st := stats.New()
	d := NewDispatcher(ch, st, nil)

	if d.Deliver(context.Background(), newsItem(), positiveAnalysis()) {
		t.Fatal("Expected delivery to fail")
	}

	if st.Seen(types.OriginNews, "42") {
		t.Error("Expected id not to be marked seen after failed send")
	}
	if snap := st.Snapshot(); snap.NewsSent != 0 {
		t.Errorf("Expected sent counter unchanged, got %d", snap.NewsSent)
	}

	// The same item can be retried once the channel recovers
	ch.err = nil
	if !d.Deliver(context.Background(), newsItem(), positiveAnalysis()) {
		t.Error("Expected retry after channel recovery to succeed")
	}
}

func TestDeliverTweetAlert(t *testing.T) {
	ch := &fakeChannel{}
	st := stats.New()
	d := NewDispatcher(ch, st, nil)

	item := types.Item{
		ID:     "1001",
		Origin: types.OriginTweet,
		Text:   "Massive BTC transfer to Coinbase",
		Author: "whale_alert",
	}
	analysis := types.Analysis{
		Relevant:   true,
		Sentiment:  types.SentimentNegative,
		Entities:   []string{"BTC", "Coinbase"},
		Commentary: "Possible sell pressure.",
		Confidence: 0.92,
	}

	if !d.Deliver(context.Background(), item, analysis) {
		t.Fatal("Expected delivery to succeed")
	}

	msg := ch.sent[0]
	for _, want := range []string{
		"🐦 *Tweet from @whale_alert*",
		"Massive BTC transfer to Coinbase",
		"*Sentiment:* 🔴 Negative",
		"*Confidence:* 92%",
		"*Entities:* BTC, Coinbase",
	} {
		if !strings.Contains(msg.Text, want) {
			t.Errorf("Expected message to contain %q, got %q", want, msg.Text)
		}
	}
	if msg.ButtonURL != "https://twitter.com/whale_alert/status/1001" {
		t.Errorf("Unexpected tweet permalink: %q", msg.ButtonURL)
	}
	if msg.ButtonLabel != "View Tweet" {
		t.Errorf("Unexpected button label: %q", msg.ButtonLabel)
	}

	if snap := st.Snapshot(); snap.TweetsSent != 1 {
		t.Errorf("Expected tweet sent counter 1, got %d", snap.TweetsSent)
	}
}

func TestDeliverAppendsAuditEntry(t *testing.T) {
	dir := t.TempDir()
	ch := &fakeChannel{}
	st := stats.New()
	d := NewDispatcher(ch, st, alertlog.New(dir))

	if !d.Deliver(context.Background(), newsItem(), positiveAnalysis()) {
		t.Fatal("Expected delivery to succeed")
	}

	p := dir + "/" + time.Now().UTC().Format("2006-01-02") + ".jsonl"
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("Expected audit file: %v", err)
	}
	if !strings.Contains(string(b), `"id":"42"`) {
		t.Errorf("Expected audit entry for item 42, got %s", b)
	}
}
