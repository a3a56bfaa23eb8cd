package telegram

import (
	"context"

	"market-monitor/internal/alertlog"
	"market-monitor/internal/logger"
	"market-monitor/internal/stats"
	"market-monitor/internal/trace"
	"market-monitor/internal/types"
)

// Dispatcher turns relevant items into alerts, at most once per item id.
// The shared Stats instance is both the dedup memory and the counter store;
// the audit log is optional.
type Dispatcher struct {
	channel Channel
	stats   *stats.Stats
	audit   *alertlog.Log
}

func NewDispatcher(channel Channel, st *stats.Stats, audit *alertlog.Log) *Dispatcher {
	return &Dispatcher{channel: channel, stats: st, audit: audit}
}

// Deliver formats and sends one alert. It reports true only when a message
// went out and was recorded. An id that already produced an alert is a
// silent no-op; a send failure leaves all state untouched so the item can
// be retried on a later poll.
func (d *Dispatcher) Deliver(ctx context.Context, item types.Item, analysis types.Analysis) bool {
	ctx, span := trace.StartSpan(ctx, "deliver-alert")
	defer span.End()

	if d.stats.Seen(item.Origin, item.ID) {
		logger.Debug(ctx, "Skipping already alerted item",
			"origin", string(item.Origin), "item_id", item.ID)
		return false
	}

	msg := FormatAlert(item, analysis)

	if err := d.channel.Send(ctx, msg); err != nil {
		logger.ErrorWithErr(ctx, "Error sending alert", err,
			"origin", string(item.Origin), "item_id", item.ID)
		return false
	}

	if !d.stats.MarkSent(item.Origin, item.ID) {
		// Another deliverer recorded the id between our check and the send.
		logger.Warn(ctx, "Alert already recorded by concurrent delivery",
			"origin", string(item.Origin), "item_id", item.ID)
		return false
	}

	logger.Alert(ctx, string(item.Origin), item.ID, string(analysis.Sentiment), analysis.Confidence)

	if d.audit != nil {
		err := d.audit.Append(alertlog.Entry{
			Origin:     string(item.Origin),
			ID:         item.ID,
			Sentiment:  string(analysis.Sentiment),
			Confidence: analysis.Confidence,
		})
		if err != nil {
			logger.ErrorWithErr(ctx, "Failed to append alert audit entry", err, "item_id", item.ID)
		}
	}

	return true
}
