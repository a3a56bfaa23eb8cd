package telegram

import (
	"fmt"
	"strings"

	"market-monitor/internal/types"
)

// FormatAlert renders the Markdown alert for an item. The same input always
// produces the same message.
func FormatAlert(item types.Item, analysis types.Analysis) Message {
	if item.Origin == types.OriginTweet {
		return formatTweetAlert(item, analysis)
	}
	return formatNewsAlert(item, analysis)
}

func formatTweetAlert(item types.Item, analysis types.Analysis) Message {
	tweetURL := fmt.Sprintf("https://twitter.com/%s/status/%s", item.Author, item.ID)

	entities := "None"
	if len(analysis.Entities) > 0 {
		entities = strings.Join(analysis.Entities, ", ")
	}

	text := fmt.Sprintf("🐦 *Tweet from @%s*\n\n%s\n\n*Sentiment:* %s %s\n*Confidence:* %.0f%%\n*Entities:* %s",
		item.Author,
		item.Text,
		sentimentGlyph(analysis.Sentiment),
		capitalize(string(analysis.Sentiment)),
		analysis.Confidence*100,
		entities,
	)

	return Message{Text: text, ButtonLabel: "View Tweet", ButtonURL: tweetURL}
}

func formatNewsAlert(item types.Item, analysis types.Analysis) Message {
	headline := item.Headline
	if headline == "" {
		headline = "No headline"
	}
	summary := item.Summary
	if summary == "" {
		summary = "No summary"
	}
	source := item.Source
	if source == "" {
		source = "Unknown source"
	}
	articleURL := item.URL
	if articleURL == "" {
		articleURL = "#"
	}

	text := fmt.Sprintf("📰 *%s*\n\n%s\n\n*Source:* %s\n*Market Sentiment:* %s\n*Confidence:* %.0f%%\n\n*Analysis:*\n%s",
		headline,
		summary,
		source,
		marketIndicator(analysis.Sentiment),
		analysis.Confidence*100,
		analysis.Commentary,
	)

	return Message{Text: text, ButtonLabel: "Read Article", ButtonURL: articleURL}
}

func sentimentGlyph(s types.Sentiment) string {
	switch s {
	case types.SentimentPositive:
		return "🟢"
	case types.SentimentNegative:
		return "🔴"
	}
	return "⚪"
}

func marketIndicator(s types.Sentiment) string {
	switch s {
	case types.SentimentPositive:
		return "🟢 BULLISH"
	case types.SentimentNegative:
		return "🔴 BEARISH"
	}
	return "⚪ NEUTRAL"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
