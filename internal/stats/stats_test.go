package stats

import (
	"sync"
	"testing"
	"time"

	"market-monitor/internal/types"
)

func TestCounters(t *testing.T) {
	s := New()

	s.CountProcessed(types.OriginTweet)
	s.CountProcessed(types.OriginTweet)
	s.CountProcessed(types.OriginNews)
	s.CountRelevant(types.OriginTweet)
	s.CountRelevant(types.OriginNews)

	snap := s.Snapshot()
	if snap.TweetsProcessed != 2 {
		t.Errorf("Expected 2 tweets processed, got %d", snap.TweetsProcessed)
	}
	if snap.NewsProcessed != 1 {
		t.Errorf("Expected 1 news processed, got %d", snap.NewsProcessed)
	}
	if snap.TweetsRelevant != 1 {
		t.Errorf("Expected 1 relevant tweet, got %d", snap.TweetsRelevant)
	}
	if snap.NewsRelevant != 1 {
		t.Errorf("Expected 1 relevant news, got %d", snap.NewsRelevant)
	}
}

func TestMarkSentOncePerID(t *testing.T) {
	s := New()

	if !s.MarkSent(types.OriginTweet, "1001") {
		t.Fatal("Expected first MarkSent to succeed")
	}
	if s.MarkSent(types.OriginTweet, "1001") {
		t.Error("Expected second MarkSent for same id to be rejected")
	}

	// Same id under the other origin is independent
	if !s.MarkSent(types.OriginNews, "1001") {
		t.Error("Expected MarkSent to succeed for same id on different origin")
	}

	snap := s.Snapshot()
	if snap.TweetsSent != 1 {
		t.Errorf("Expected 1 tweet sent, got %d", snap.TweetsSent)
	}
	if snap.NewsSent != 1 {
		t.Errorf("Expected 1 news sent, got %d", snap.NewsSent)
	}
}

func TestSeen(t *testing.T) {
	s := New()

	if s.Seen(types.OriginNews, "a1") {
		t.Error("Expected unseen id before MarkSent")
	}
	s.MarkSent(types.OriginNews, "a1")
	if !s.Seen(types.OriginNews, "a1") {
		t.Error("Expected id to be seen after MarkSent")
	}
	if s.Seen(types.OriginTweet, "a1") {
		t.Error("Expected tweet seen set to be independent of news")
	}
}

func TestResetKeepsSeenIDs(t *testing.T) {
	s := New()

	s.CountProcessed(types.OriginTweet)
	s.CountRelevant(types.OriginTweet)
	s.MarkSent(types.OriginTweet, "42")
	s.SetLastCheck(types.OriginTweet, time.Now())
	s.SetLastCheck(types.OriginNews, time.Now())

	s.Reset()

	snap := s.Snapshot()
	if snap.TweetsProcessed != 0 || snap.TweetsRelevant != 0 || snap.TweetsSent != 0 {
		t.Errorf("Expected counters zeroed after reset, got %+v", snap)
	}
	if !snap.LastTweetCheck.IsZero() || !snap.LastNewsCheck.IsZero() {
		t.Error("Expected timestamps cleared after reset")
	}

	// Seen ids survive the reset
	if !s.Seen(types.OriginTweet, "42") {
		t.Error("Expected seen id to survive reset")
	}
	if s.MarkSent(types.OriginTweet, "42") {
		t.Error("Expected id recorded before reset to stay deduplicated")
	}
}

func TestSetLastCheck(t *testing.T) {
	s := New()
	ts := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

	s.SetLastCheck(types.OriginNews, ts)

	snap := s.Snapshot()
	if !snap.LastNewsCheck.Equal(ts) {
		t.Errorf("Expected last news check %v, got %v", ts, snap.LastNewsCheck)
	}
	if !snap.LastTweetCheck.IsZero() {
		t.Error("Expected tweet timestamp untouched")
	}
}

func TestConcurrentMarkSent(t *testing.T) {
	s := New()

	var wg sync.WaitGroup
	wins := make(chan bool, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- s.MarkSent(types.OriginNews, "shared")
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for ok := range wins {
		if ok {
			won++
		}
	}
	if won != 1 {
		t.Errorf("Expected exactly one goroutine to record the id, got %d", won)
	}

	snap := s.Snapshot()
	if snap.NewsSent != 1 {
		t.Errorf("Expected sent counter 1 under concurrency, got %d", snap.NewsSent)
	}
}
