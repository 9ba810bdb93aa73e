package lib

import (
	"context"
	"errors"
	"net/http"

	"github.com/carlmjohnson/requests"
	"github.com/ptvalert/ptvalert/lib/models"
	"go.uber.org/zap"
)

// Export is the bulk-import document: the same id→record mappings the
// list endpoints serve, as produced by an external one-time sync.
type Export struct {
	Markers       models.Markers       `json:"markers"`
	Subscriptions models.Subscriptions `json:"subscriptions"`
}

type ImportSummary struct {
	Markers       int `json:"markers"`
	Subscriptions int `json:"subscriptions"`
	Skipped       int `json:"skipped"`
}

// Importer replays export documents through the repositories in bulk.
// Records that fail validation are skipped, not fatal.
type Importer struct {
	log       *zap.Logger
	markers   *MarkerRepository
	subs      *SubscriptionRepository
	transport http.RoundTripper
}

func (imp *Importer) FetchAndImport(ctx context.Context, url string) (*ImportSummary, error) {
	var export Export
	err := requests.URL(url).
		Transport(imp.transport).
		ToJSON(&export).
		Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return imp.Import(ctx, &export)
}

func (imp *Importer) Import(ctx context.Context, export *Export) (*ImportSummary, error) {
	summary := &ImportSummary{}

	for id, marker := range export.Markers {
		if marker == nil {
			summary.Skipped++
			continue
		}
		if marker.ID == "" {
			marker.ID = id
		}
		if _, err := imp.markers.Create(ctx, marker); err != nil {
			if !isValidation(err) {
				return summary, err
			}
			imp.log.Sugar().Infow("Skipping invalid marker", "id", id, "err", err)
			summary.Skipped++
			continue
		}
		summary.Markers++
	}

	for id, sub := range export.Subscriptions {
		if sub == nil {
			summary.Skipped++
			continue
		}
		if sub.ID == "" {
			sub.ID = id
		}
		if _, err := imp.subs.Save(ctx, sub); err != nil {
			if !isValidation(err) {
				return summary, err
			}
			imp.log.Sugar().Infow("Skipping invalid subscription", "id", id, "err", err)
			summary.Skipped++
			continue
		}
		summary.Subscriptions++
	}

	imp.log.Sugar().Infof(
		"Imported %d markers, %d subscriptions (%d skipped)",
		summary.Markers, summary.Subscriptions, summary.Skipped,
	)
	return summary, nil
}

func isValidation(err error) bool {
	var verr *models.ValidationError
	return errors.As(err, &verr)
}
