package app

import (
	"context"
	"errors"

	"news-webhook-relay/internal/format"
	"news-webhook-relay/internal/record"
)

// SimulateDelivery 将一条示例新闻推送到已配置的 sink，用于端到端验证。
// No state is read or written and nothing is archived.
func (a *App) SimulateDelivery(ctx context.Context, summary, sentiment string) error {
	if len(a.Config.Delivery.SinkURLs) == 0 {
		return errors.New("no sinks configured")
	}

	rec := record.RawRecord{
		Time:      "simulated",
		Sentiment: sentiment,
		Summary:   summary,
		Tickers:   []string{"TEST"},
		Sector:    "Simulation",
	}

	formatter := a.newFormatter()
	sender := a.newSender()
	sink := a.Config.Delivery.SinkURLs[0]

	chunks := formatter.Render(rec)
	for i, chunk := range chunks {
		content := format.PartPrefix(i+1, len(chunks)) + chunk
		if err := sender.Send(ctx, sink, content); err != nil {
			return err
		}
	}

	a.Logger.Info().Int("chunks", len(chunks)).Msg("simulated delivery sent")
	return nil
}
