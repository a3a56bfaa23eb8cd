// Package feed supplies raw items for classification: recent tweets from
// monitored handles and articles scraped from configured news sites.
package feed

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"market-monitor/internal/api"
	"market-monitor/internal/logger"
	"market-monitor/internal/store"
	"market-monitor/internal/trace"
	"market-monitor/internal/types"
)

// TweetFetcher pulls recent tweets for the configured handles from a JSON
// tweet API.
type TweetFetcher struct {
	client   *api.Client
	handles  []string
	maxItems int
}

func NewTweetFetcher(cfg *store.Config) *TweetFetcher {
	opts := []api.ClientOption{
		api.WithBaseURL(cfg.Tweets.BaseURL),
		api.WithTimeout(20 * time.Second),
		api.WithLogging(true),
	}
	if key := os.Getenv(cfg.Tweets.APIKeyEnv); key != "" {
		opts = append(opts, api.WithHeader("X-API-Key", key))
	}
	return &TweetFetcher{
		client:   api.NewClient(opts...),
		handles:  cfg.Tweets.Handles,
		maxItems: cfg.Tweets.MaxItems,
	}
}

func (f *TweetFetcher) Origin() types.Origin {
	return types.OriginTweet
}

// tweetPayload is the wire shape of the tweet API's recent-tweets endpoint.
type tweetPayload struct {
	Tweets []struct {
		ID         string `json:"id"`
		Text       string `json:"text"`
		ScreenName string `json:"screen_name"`
		CreatedAt  string `json:"created_at"`
	} `json:"tweets"`
}

// Fetch returns the latest tweets across all handles. A handle that fails
// is logged and skipped so one bad account cannot starve the others.
func (f *TweetFetcher) Fetch(ctx context.Context) ([]types.Item, error) {
	ctx, span := trace.StartSpan(ctx, "fetch-tweets")
	defer span.End()

	items := []types.Item{}

	for _, handle := range f.handles {
		tweets, err := f.fetchHandle(ctx, handle)
		if err != nil {
			logger.ErrorWithErr(ctx, "Failed to fetch tweets", err, "handle", handle)
			continue
		}
		items = append(items, tweets...)
	}

	logger.Info(ctx, "Tweet fetch completed", "handles", len(f.handles), "items", len(items))
	return items, nil
}

func (f *TweetFetcher) fetchHandle(ctx context.Context, handle string) ([]types.Item, error) {
	path := fmt.Sprintf("/tweets/recent?handle=%s&limit=%d", url.QueryEscape(handle), f.maxItems)
	req := api.NewRequest("GET", path).WithContext(ctx)

	resp, err := f.client.DoWithRetry(req, nil)
	if err != nil {
		return nil, err
	}

	var payload tweetPayload
	if err := resp.ParseJSON(&payload); err != nil {
		return nil, err
	}

	items := make([]types.Item, 0, len(payload.Tweets))
	now := time.Now().UTC()
	for _, tw := range payload.Tweets {
		if tw.ID == "" || tw.Text == "" {
			continue
		}
		author := tw.ScreenName
		if author == "" {
			author = handle
		}
		items = append(items, types.Item{
			ID:     tw.ID,
			Origin: types.OriginTweet,
			Text:   tw.Text,
			Author: author,
			SeenAt: now,
		})
	}
	return items, nil
}
