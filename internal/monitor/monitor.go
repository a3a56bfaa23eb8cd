// Package monitor wires the feed producers, the classifier and the alert
// dispatcher into the polling pipeline.
package monitor

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"market-monitor/internal/alertlog"
	"market-monitor/internal/logger"
	"market-monitor/internal/stats"
	"market-monitor/internal/store"
	"market-monitor/internal/types"
)

// Producer supplies raw items for one origin kind.
type Producer interface {
	Origin() types.Origin
	Fetch(ctx context.Context) ([]types.Item, error)
}

// Classifier turns raw text into an analysis result.
type Classifier interface {
	Analyze(ctx context.Context, text string) (types.Analysis, error)
}

// Dispatcher sends an alert for a relevant item, at most once per id.
type Dispatcher interface {
	Deliver(ctx context.Context, item types.Item, analysis types.Analysis) bool
}

// Monitor runs the poll-classify-alert pipeline. Each producer polls on its
// own schedule; all of them share one Stats instance.
type Monitor struct {
	cfg        *store.Config
	producers  []Producer
	classifier Classifier
	dispatcher Dispatcher
	stats      *stats.Stats
	audit      *alertlog.Log
	cron       *cron.Cron
}

func New(cfg *store.Config, producers []Producer, classifier Classifier, dispatcher Dispatcher, st *stats.Stats, audit *alertlog.Log) *Monitor {
	return &Monitor{
		cfg:        cfg,
		producers:  producers,
		classifier: classifier,
		dispatcher: dispatcher,
		stats:      st,
		audit:      audit,
	}
}

// cronLogger routes cron's own messages (skipped runs mostly) through the
// application logger.
type cronLogger struct {
	ctx context.Context
}

func (l cronLogger) Info(msg string, kv ...interface{}) {
	logger.Debug(l.ctx, msg, kv...)
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	logger.ErrorWithErr(l.ctx, msg, err, kv...)
}

// Start schedules the poll jobs plus the maintenance jobs and kicks off an
// immediate first poll per producer. It does not block; cancel ctx and call
// Stop to shut down.
func (m *Monitor) Start(ctx context.Context) error {
	m.cron = cron.New()
	cl := cronLogger{ctx: ctx}

	for _, p := range m.producers {
		p := p
		// The same wrapped job serves the startup poll and the schedule, so
		// an overlapping run is skipped rather than doubled.
		job := cron.NewChain(cron.SkipIfStillRunning(cl)).Then(cron.FuncJob(func() {
			m.poll(ctx, p)
		}))
		m.cron.Schedule(cron.Every(m.pollInterval(p.Origin())), job)
		go job.Run()
	}

	if m.cfg.StatsResetCron != "" {
		if _, err := m.cron.AddFunc(m.cfg.StatsResetCron, func() {
			logger.Info(ctx, "Resetting statistics counters")
			m.stats.Reset()
		}); err != nil {
			return err
		}
	}

	if m.audit != nil && m.cfg.AlertLog.CompressAfterDays > 0 {
		if _, err := m.cron.AddFunc("30 0 * * *", func() {
			if err := m.audit.CompressOlder(m.cfg.AlertLog.CompressAfterDays); err != nil {
				logger.ErrorWithErr(ctx, "Alert log compression failed", err)
			}
		}); err != nil {
			return err
		}
	}

	m.cron.Start()
	logger.Info(ctx, "Monitor started", "producers", len(m.producers))
	return nil
}

// Stop halts the schedule and waits for running jobs to finish.
func (m *Monitor) Stop() {
	if m.cron == nil {
		return
	}
	<-m.cron.Stop().Done()
	logger.Info(context.Background(), "Monitor stopped")
}

func (m *Monitor) pollInterval(origin types.Origin) time.Duration {
	if origin == types.OriginTweet {
		return time.Duration(m.cfg.Tweets.PollSeconds) * time.Second
	}
	return time.Duration(m.cfg.News.PollSeconds) * time.Second
}

// poll runs one fetch cycle for a producer and pushes every new item
// through the pipeline.
func (m *Monitor) poll(ctx context.Context, p Producer) {
	origin := p.Origin()
	op := logger.StartOperation(ctx, "poll-"+string(origin))
	ctx = op.GetContext()

	items, err := p.Fetch(ctx)
	if err != nil && len(items) == 0 {
		op.EndWithError(err)
		return
	}
	if err != nil {
		logger.ErrorWithErr(ctx, "Poll finished with errors", err, "origin", string(origin))
	}

	m.stats.SetLastCheck(origin, time.Now().UTC())

	fresh := 0
	for _, item := range items {
		// Items that already produced an alert are not re-analyzed.
		if m.stats.Seen(item.Origin, item.ID) {
			continue
		}
		fresh++
		m.process(ctx, item)
	}

	op.End("items", len(items), "fresh", fresh)
}

// process classifies one item and dispatches its alert when relevant.
func (m *Monitor) process(ctx context.Context, item types.Item) {
	m.stats.CountProcessed(item.Origin)

	analysis, err := m.classifier.Analyze(ctx, item.Text)
	if err != nil {
		// Blank text yields the no-result sentinel; there is nothing to alert.
		logger.Debug(ctx, "Skipping item without analyzable text",
			"origin", string(item.Origin), "item_id", item.ID)
		return
	}

	logger.Classification(ctx, string(item.Origin), item.ID,
		analysis.Relevant, string(analysis.Sentiment), analysis.Confidence)

	if !analysis.Relevant {
		return
	}
	m.stats.CountRelevant(item.Origin)

	m.dispatcher.Deliver(ctx, item, analysis)
}
