package monitor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"market-monitor/internal/stats"
	"market-monitor/internal/store"
	"market-monitor/internal/types"
)

type fakeProducer struct {
	origin types.Origin
	items  []types.Item
	err    error
	polled chan struct{}
	calls  int
}

func (p *fakeProducer) Origin() types.Origin { return p.origin }

func (p *fakeProducer) Fetch(ctx context.Context) ([]types.Item, error) {
	p.calls++
	if p.polled != nil {
		select {
		case p.polled <- struct{}{}:
		default:
		}
	}
	return p.items, p.err
}

type fakeClassifier struct {
	results map[string]types.Analysis
	calls   []string
}

func (c *fakeClassifier) Analyze(ctx context.Context, text string) (types.Analysis, error) {
	c.calls = append(c.calls, text)
	if strings.TrimSpace(text) == "" {
		return types.Analysis{}, errors.New("empty text provided for analysis")
	}
	if a, ok := c.results[text]; ok {
		return a, nil
	}
	return types.Analysis{Relevant: false, Sentiment: types.SentimentNeutral, Entities: []string{}, Confidence: 0.5}, nil
}

type recordingDispatcher struct {
	stats     *stats.Stats
	delivered []types.Item
}

func (d *recordingDispatcher) Deliver(ctx context.Context, item types.Item, analysis types.Analysis) bool {
	d.delivered = append(d.delivered, item)
	if d.stats != nil {
		return d.stats.MarkSent(item.Origin, item.ID)
	}
	return true
}

func testMonitorConfig() *store.Config {
	cfg := &store.Config{}
	cfg.Tweets.PollSeconds = 60
	cfg.News.PollSeconds = 300
	return cfg
}

func tweetItem(id, text string) types.Item {
	return types.Item{ID: id, Origin: types.OriginTweet, Text: text, Author: "trader", SeenAt: time.Now().UTC()}
}

func TestPollPipeline(t *testing.T) {
	st := stats.New()
	producer := &fakeProducer{
		origin: types.OriginTweet,
		items: []types.Item{
			tweetItem("1", "BTC breaks above 100k"),
			tweetItem("2", "what a nice lunch"),
			tweetItem("3", "   "),
		},
	}
	classifier := &fakeClassifier{results: map[string]types.Analysis{
		"BTC breaks above 100k": {Relevant: true, Sentiment: types.SentimentPositive, Entities: []string{"BTC"}, Confidence: 0.9},
	}}
	dispatcher := &recordingDispatcher{stats: st}

	m := New(testMonitorConfig(), []Producer{producer}, classifier, dispatcher, st, nil)
	m.poll(context.Background(), producer)

	snap := st.Snapshot()
	if snap.TweetsProcessed != 3 {
		t.Errorf("Expected 3 processed tweets, got %d", snap.TweetsProcessed)
	}
	if snap.TweetsRelevant != 1 {
		t.Errorf("Expected 1 relevant tweet, got %d", snap.TweetsRelevant)
	}
	if snap.TweetsSent != 1 {
		t.Errorf("Expected 1 sent tweet, got %d", snap.TweetsSent)
	}
	if len(dispatcher.delivered) != 1 || dispatcher.delivered[0].ID != "1" {
		t.Errorf("Expected only tweet 1 to be delivered, got %v", dispatcher.delivered)
	}
	if len(classifier.calls) != 3 {
		t.Errorf("Expected classifier to see all 3 items, got %d calls", len(classifier.calls))
	}
	if snap.LastTweetCheck.IsZero() {
		t.Error("Expected last tweet check to be recorded")
	}
}

func TestPollSkipsAlreadyAlertedItems(t *testing.T) {
	st := stats.New()
	producer := &fakeProducer{
		origin: types.OriginTweet,
		items: []types.Item{
			tweetItem("1", "BTC breaks above 100k"),
			tweetItem("2", "what a nice lunch"),
		},
	}
	classifier := &fakeClassifier{results: map[string]types.Analysis{
		"BTC breaks above 100k": {Relevant: true, Sentiment: types.SentimentPositive, Entities: []string{"BTC"}, Confidence: 0.9},
	}}
	dispatcher := &recordingDispatcher{stats: st}

	m := New(testMonitorConfig(), []Producer{producer}, classifier, dispatcher, st, nil)
	m.poll(context.Background(), producer)
	m.poll(context.Background(), producer)

	snap := st.Snapshot()
	// Tweet 1 was alerted in the first cycle and must be skipped in the
	// second. Tweet 2 was merely irrelevant and is analyzed again.
	if snap.TweetsProcessed != 3 {
		t.Errorf("Expected 3 processed tweets across both polls, got %d", snap.TweetsProcessed)
	}
	if len(dispatcher.delivered) != 1 {
		t.Errorf("Expected a single delivery, got %d", len(dispatcher.delivered))
	}
	if len(classifier.calls) != 3 {
		t.Errorf("Expected 3 classifier calls across both polls, got %d", len(classifier.calls))
	}
}

func TestPollFetchFailure(t *testing.T) {
	st := stats.New()
	producer := &fakeProducer{origin: types.OriginNews, err: errors.New("connection refused")}
	classifier := &fakeClassifier{}
	dispatcher := &recordingDispatcher{stats: st}

	m := New(testMonitorConfig(), []Producer{producer}, classifier, dispatcher, st, nil)
	m.poll(context.Background(), producer)

	snap := st.Snapshot()
	if snap.NewsProcessed != 0 {
		t.Errorf("Expected no processed items after failed poll, got %d", snap.NewsProcessed)
	}
	if !snap.LastNewsCheck.IsZero() {
		t.Error("Expected last news check to stay unset after failed poll")
	}
	if len(classifier.calls) != 0 {
		t.Errorf("Expected no classifier calls, got %d", len(classifier.calls))
	}
}

func TestPollPartialFetchStillProcesses(t *testing.T) {
	st := stats.New()
	producer := &fakeProducer{
		origin: types.OriginNews,
		items:  []types.Item{{ID: "https://example.com/a", Origin: types.OriginNews, Text: "Fed holds rates", SeenAt: time.Now().UTC()}},
		err:    errors.New("second source timed out"),
	}
	classifier := &fakeClassifier{results: map[string]types.Analysis{
		"Fed holds rates": {Relevant: true, Sentiment: types.SentimentNeutral, Entities: []string{"Fed"}, Confidence: 0.8},
	}}
	dispatcher := &recordingDispatcher{stats: st}

	m := New(testMonitorConfig(), []Producer{producer}, classifier, dispatcher, st, nil)
	m.poll(context.Background(), producer)

	snap := st.Snapshot()
	if snap.NewsProcessed != 1 {
		t.Errorf("Expected the fetched item to be processed, got %d", snap.NewsProcessed)
	}
	if snap.LastNewsCheck.IsZero() {
		t.Error("Expected last news check to be recorded for a partial poll")
	}
	if len(dispatcher.delivered) != 1 {
		t.Errorf("Expected 1 delivery, got %d", len(dispatcher.delivered))
	}
}

func TestStartRunsImmediatePoll(t *testing.T) {
	st := stats.New()
	producer := &fakeProducer{origin: types.OriginTweet, polled: make(chan struct{}, 1)}
	m := New(testMonitorConfig(), []Producer{producer}, &fakeClassifier{}, &recordingDispatcher{stats: st}, st, nil)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer m.Stop()

	select {
	case <-producer.polled:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected an immediate poll after Start")
	}
}

func TestStartRejectsBadResetSchedule(t *testing.T) {
	st := stats.New()
	cfg := testMonitorConfig()
	cfg.StatsResetCron = "every day at midnight"
	m := New(cfg, nil, &fakeClassifier{}, &recordingDispatcher{stats: st}, st, nil)

	if err := m.Start(context.Background()); err == nil {
		m.Stop()
		t.Error("Expected an error for an invalid reset schedule")
	}
}

func TestStartAcceptsResetSchedule(t *testing.T) {
	st := stats.New()
	cfg := testMonitorConfig()
	cfg.StatsResetCron = "0 0 * * *"
	m := New(cfg, nil, &fakeClassifier{}, &recordingDispatcher{stats: st}, st, nil)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	m.Stop()
}
