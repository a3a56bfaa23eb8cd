// Package stats tracks aggregate counters for the monitor. One instance is
// shared by the pollers, the pipeline and the /stats command; every access
// goes through a single mutex.
package stats

import (
	"sync"
	"time"

	"market-monitor/internal/types"
)

// Stats holds per-origin counters, last-check timestamps and the sets of
// item ids that already produced an alert. The seen sets only ever grow;
// Reset clears everything else but leaves them intact so a counter reset
// can never cause a duplicate alert.
type Stats struct {
	mu sync.Mutex

	tweetsProcessed int
	tweetsRelevant  int
	tweetsSent      int
	newsProcessed   int
	newsRelevant    int
	newsSent        int

	lastTweetCheck time.Time
	lastNewsCheck  time.Time

	seenTweetIDs map[string]struct{}
	seenNewsIDs  map[string]struct{}
}

// Snapshot is a point-in-time copy of the counters for reporting.
type Snapshot struct {
	TweetsProcessed int
	TweetsRelevant  int
	TweetsSent      int
	NewsProcessed   int
	NewsRelevant    int
	NewsSent        int
	LastTweetCheck  time.Time
	LastNewsCheck   time.Time
}

func New() *Stats {
	return &Stats{
		seenTweetIDs: make(map[string]struct{}),
		seenNewsIDs:  make(map[string]struct{}),
	}
}

func (s *Stats) seen(origin types.Origin) map[string]struct{} {
	if origin == types.OriginTweet {
		return s.seenTweetIDs
	}
	return s.seenNewsIDs
}

// CountProcessed records that one item of the given origin was analyzed.
func (s *Stats) CountProcessed(origin types.Origin) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if origin == types.OriginTweet {
		s.tweetsProcessed++
	} else {
		s.newsProcessed++
	}
}

// CountRelevant records that one analyzed item was market relevant.
func (s *Stats) CountRelevant(origin types.Origin) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if origin == types.OriginTweet {
		s.tweetsRelevant++
	} else {
		s.newsRelevant++
	}
}

// Seen reports whether an alert for this id has already been sent.
func (s *Stats) Seen(origin types.Origin, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen(origin)[id]
	return ok
}

// MarkSent records a successful alert delivery: it checks the seen set,
// inserts the id and bumps the per-origin sent counter in one critical
// section. It returns false without changing anything when the id was
// already recorded.
func (s *Stats) MarkSent(origin types.Origin, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.seen(origin)
	if _, ok := set[id]; ok {
		return false
	}
	set[id] = struct{}{}
	if origin == types.OriginTweet {
		s.tweetsSent++
	} else {
		s.newsSent++
	}
	return true
}

// SetLastCheck records the completion time of a poll cycle.
func (s *Stats) SetLastCheck(origin types.Origin, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if origin == types.OriginTweet {
		s.lastTweetCheck = t
	} else {
		s.lastNewsCheck = t
	}
}

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		TweetsProcessed: s.tweetsProcessed,
		TweetsRelevant:  s.tweetsRelevant,
		TweetsSent:      s.tweetsSent,
		NewsProcessed:   s.newsProcessed,
		NewsRelevant:    s.newsRelevant,
		NewsSent:        s.newsSent,
		LastTweetCheck:  s.lastTweetCheck,
		LastNewsCheck:   s.lastNewsCheck,
	}
}

// Reset zeroes all counters and timestamps. The seen-id sets are kept so
// previously alerted items stay deduplicated across resets.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tweetsProcessed = 0
	s.tweetsRelevant = 0
	s.tweetsSent = 0
	s.newsProcessed = 0
	s.newsRelevant = 0
	s.newsSent = 0
	s.lastTweetCheck = time.Time{}
	s.lastNewsCheck = time.Time{}
}
