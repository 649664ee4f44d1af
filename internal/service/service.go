package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"news-webhook-relay/internal/config"
	"news-webhook-relay/internal/delivery"
	"news-webhook-relay/internal/format"
	"news-webhook-relay/internal/record"
	"news-webhook-relay/internal/source"
	"news-webhook-relay/internal/state"
	"news-webhook-relay/internal/storage"
	"news-webhook-relay/internal/translate"
)

// Service orchestrates one scrape-and-relay run: fetch, dedup, translate,
// format, deliver, commit.
type Service struct {
	src       source.Adapter
	states    *state.Store
	formatter *format.Formatter
	sender    *delivery.Sender
	augmenter *translate.Augmenter
	archive   storage.DeliveryLogStore
	runs      storage.RunStore
	logger    zerolog.Logger

	sinks    []string
	maxItems int
}

// New constructs the relay service. augmenter may be nil when translation is
// disabled; archive and runs may be nil when no database is configured.
func New(cfg *config.Config, src source.Adapter, states *state.Store, formatter *format.Formatter, sender *delivery.Sender, augmenter *translate.Augmenter, archive storage.DeliveryLogStore, runs storage.RunStore, logger zerolog.Logger) *Service {
	return &Service{
		src:       src,
		states:    states,
		formatter: formatter,
		sender:    sender,
		augmenter: augmenter,
		archive:   archive,
		runs:      runs,
		logger:    logger.With().Str("component", "service").Logger(),
		sinks:     cfg.Delivery.SinkURLs,
		maxItems:  cfg.Source.MaxItems,
	}
}

// RunOnce executes a single batch run and returns the number of newly
// delivered items. The processed-set is persisted only after every delivery
// of the run has been attempted; a fatal send aborts without persisting, so
// the whole batch is retried (and re-deduplicated) on the next invocation.
func (s *Service) RunOnce(ctx context.Context) (int, error) {
	started := time.Now().UTC()

	seen := s.states.Load()

	records, err := s.src.FetchRecords(ctx, s.maxItems)
	if err != nil {
		wrapped := fmt.Errorf("fetch records: %w", err)
		s.recordRun(ctx, started, len(records), 0, wrapped)
		return 0, wrapped
	}

	units := record.Chronological(record.FilterNew(records, seen))
	s.logger.Info().Int("fetched", len(records)).Int("new", len(units)).Msg("batch evaluated")

	translated := s.translateUnits(ctx, units)

	delivered := 0
	for i, unit := range units {
		rec := unit.Record
		if translated != nil {
			rec = translated[i]
		}

		chunks := s.formatter.Render(rec)
		sinkIdx := i % len(s.sinks)
		sink := delivery.PickSink(s.sinks, i)

		for j, chunk := range chunks {
			content := format.PartPrefix(j+1, len(chunks)) + chunk
			if err := s.sender.Send(ctx, sink, content); err != nil {
				wrapped := fmt.Errorf("deliver item %d chunk %d/%d: %w", i, j+1, len(chunks), err)
				s.recordRun(ctx, started, len(records), delivered, wrapped)
				return delivered, wrapped
			}
		}

		// Fingerprint commits only after every chunk was accepted.
		seen[unit.Fingerprint] = struct{}{}
		delivered++

		s.archiveDelivery(ctx, unit, rec, sinkIdx, len(chunks), translated != nil)
	}

	if err := s.states.Save(seen); err != nil {
		wrapped := fmt.Errorf("persist processed set: %w", err)
		s.recordRun(ctx, started, len(records), delivered, wrapped)
		return delivered, wrapped
	}

	s.recordRun(ctx, started, len(records), delivered, nil)
	s.logger.Info().Int("delivered", delivered).Msg("run complete")
	return delivered, nil
}

// translateUnits runs the optional translation stage. It returns nil when
// translation is disabled or unavailable; callers then use the originals.
func (s *Service) translateUnits(ctx context.Context, units []record.Unit) []record.RawRecord {
	if s.augmenter == nil || len(units) == 0 {
		return nil
	}

	records := make([]record.RawRecord, len(units))
	for i, u := range units {
		records[i] = u.Record
	}

	translated, ok := s.augmenter.Augment(ctx, records)
	if !ok {
		return nil
	}
	return translated
}

func (s *Service) archiveDelivery(ctx context.Context, unit record.Unit, rec record.RawRecord, sinkIdx, chunks int, wasTranslated bool) {
	if s.archive == nil {
		return
	}

	err := s.archive.InsertDelivery(ctx, storage.DeliveryRecord{
		Fingerprint: unit.Fingerprint,
		TimeLabel:   rec.Time,
		Sentiment:   rec.Sentiment,
		Summary:     rec.Summary,
		Tickers:     rec.Tickers,
		Sector:      rec.Sector,
		SinkIndex:   sinkIdx,
		Chunks:      chunks,
		Translated:  wasTranslated,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("fingerprint", unit.Fingerprint).Msg("failed to archive delivery")
	}
}

func (s *Service) recordRun(ctx context.Context, started time.Time, fetched, delivered int, runErr error) {
	if s.runs == nil {
		return
	}

	run := storage.RunRecord{
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Fetched:    fetched,
		Delivered:  delivered,
		Status:     "complete",
	}
	if runErr != nil {
		msg := runErr.Error()
		run.Status = "errored"
		run.Error = &msg
	}

	if _, err := s.runs.InsertRun(ctx, run); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist run summary")
	}
}
