package refresh

import (
	"context"
	"fmt"

	"sector-view-api/internal/discovery"
	"sector-view-api/internal/models"
)

// syncSP500 reconciles the stored S&P 500 universe against the current
// constituent list. New members are upserted with their GICS sector;
// departed members are soft-removed.
func (s *Service) syncSP500(ctx context.Context) (*models.DiscoveryResult, error) {
	constituents, err := s.universes.SP500(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch sp500 constituents: %w", err)
	}
	if len(constituents) == 0 {
		return nil, fmt.Errorf("sp500 constituent list is empty")
	}

	sectorIDs, err := s.store.SectorIDsByName(ctx)
	if err != nil {
		return nil, fmt.Errorf("sector map: %w", err)
	}

	existing, err := s.existingSymbols(ctx, models.UniverseSP500)
	if err != nil {
		return nil, err
	}

	added := 0
	keep := make([]string, 0, len(constituents))
	for _, c := range constituents {
		keep = append(keep, c.Symbol)

		var sectorID *int
		if id, ok := sectorIDs[discovery.NormalizeGICSName(c.Sector)]; ok {
			sectorID = &id
		}

		stockID, err := s.store.UpsertStock(ctx, c.Symbol, c.Name, sectorID)
		if err != nil {
			s.log.WithError(err).WithField("symbol", c.Symbol).Warn("constituent upsert failed")
			continue
		}
		if err := s.store.AddToUniverse(ctx, stockID, models.UniverseSP500); err != nil {
			s.log.WithError(err).WithField("symbol", c.Symbol).Warn("universe membership failed")
			continue
		}
		if !existing[c.Symbol] {
			added++
		}
	}

	removed, err := s.store.RemoveFromUniverse(ctx, models.UniverseSP500, keep)
	if err != nil {
		return nil, fmt.Errorf("prune departed members: %w", err)
	}

	return &models.DiscoveryResult{Added: added, Removed: removed, Total: len(keep)}, nil
}

// syncRussell reconciles the Russell 2000 universe. Holdings carry no
// sector, so new stocks are upserted unclassified and get a sector later
// from provider metadata during the quote refresh.
func (s *Service) syncRussell(ctx context.Context) (*models.DiscoveryResult, error) {
	constituents, err := s.universes.Russell2000(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch russell constituents: %w", err)
	}
	if len(constituents) == 0 {
		return nil, fmt.Errorf("russell holdings list is empty")
	}

	existing, err := s.existingSymbols(ctx, models.UniverseRussell)
	if err != nil {
		return nil, err
	}

	added := 0
	keep := make([]string, 0, len(constituents))
	for _, c := range constituents {
		keep = append(keep, c.Symbol)

		stockID, err := s.store.UpsertStock(ctx, c.Symbol, c.Name, nil)
		if err != nil {
			s.log.WithError(err).WithField("symbol", c.Symbol).Warn("holding upsert failed")
			continue
		}
		if err := s.store.AddToUniverse(ctx, stockID, models.UniverseRussell); err != nil {
			s.log.WithError(err).WithField("symbol", c.Symbol).Warn("universe membership failed")
			continue
		}
		if !existing[c.Symbol] {
			added++
		}
	}

	removed, err := s.store.RemoveFromUniverse(ctx, models.UniverseRussell, keep)
	if err != nil {
		return nil, fmt.Errorf("prune departed members: %w", err)
	}

	return &models.DiscoveryResult{Added: added, Removed: removed, Total: len(keep)}, nil
}

func (s *Service) existingSymbols(ctx context.Context, universe string) (map[string]bool, error) {
	stocks, err := s.store.ListStocksInUniverse(ctx, universe)
	if err != nil {
		return nil, fmt.Errorf("list universe stocks: %w", err)
	}
	symbols := make(map[string]bool, len(stocks))
	for _, stock := range stocks {
		symbols[stock.Symbol] = true
	}
	return symbols, nil
}
