package types

import "time"

// Origin identifies where a monitored item came from.
type Origin string

const (
	OriginTweet Origin = "tweet"
	OriginNews  Origin = "news"
)

// Sentiment is the market read of an analyzed item.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Valid reports whether s is one of the three recognized sentiment values.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// Item is a single piece of monitored text awaiting analysis.
// Tweets populate Author; news articles populate Headline, Summary and Source.
type Item struct {
	ID       string    `json:"id"`
	Origin   Origin    `json:"origin"`
	Text     string    `json:"text"`
	Author   string    `json:"author,omitempty"`
	Headline string    `json:"headline,omitempty"`
	Summary  string    `json:"summary,omitempty"`
	Source   string    `json:"source,omitempty"`
	URL      string    `json:"url,omitempty"`
	SeenAt   time.Time `json:"seen_at"`
}

// Analysis is the normalized result of classifying one item.
// Every field is always populated; defaults fill anything the model omitted.
type Analysis struct {
	Relevant   bool      `json:"relevant"`
	Sentiment  Sentiment `json:"sentiment"`
	Entities   []string  `json:"entities"`
	Commentary string    `json:"commentary"`
	Confidence float64   `json:"confidence"`
}
