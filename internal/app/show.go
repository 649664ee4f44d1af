package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// Show prints recently archived deliveries.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show deliveries")
	}
	if closeStore != nil {
		defer closeStore()
	}

	records, err := store.ListRecentDeliveries(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no deliveries found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Delivered (UTC)\tItem Time\tSentiment\tTickers\tSink\tChunks\tTranslated\tSummary")

	for _, rec := range records {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%d\t%d\t%t\t%s\n",
			rec.CreatedAt.UTC().Format(time.RFC3339),
			rec.TimeLabel,
			rec.Sentiment,
			strings.Join(rec.Tickers, ","),
			rec.SinkIndex,
			rec.Chunks,
			rec.Translated,
			truncateInline(rec.Summary, 60),
		)
	}

	writer.Flush()
	return nil
}

func truncateInline(v string, max int) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	if len(cleaned) <= max {
		return cleaned
	}
	return cleaned[:max] + "…"
}
