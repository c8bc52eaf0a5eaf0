// Package refresh orchestrates the market data pipeline: universe
// discovery, quote acquisition, persistence, summary caching, and outlier
// detection runs. The statistical engine itself lives in
// internal/outliers; this package feeds it and persists what it flags.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"sector-view-api/internal/discovery"
	"sector-view-api/internal/models"
	"sector-view-api/internal/outliers"
	"sector-view-api/internal/ws"
)

// Store is the persistence seam used by the service
type Store interface {
	ListSectors(ctx context.Context) ([]models.Sector, error)
	SectorBySymbol(ctx context.Context, symbol string) (*models.Sector, error)
	SectorIDsByName(ctx context.Context) (map[string]int, error)
	ListStocksBySector(ctx context.Context, sectorID int) ([]models.Stock, error)
	ListStocksInUniverse(ctx context.Context, universe string) ([]models.Stock, error)
	UpsertStock(ctx context.Context, symbol, name string, sectorID *int) (int, error)
	AssignSector(ctx context.Context, stockID, sectorID int) error
	AddToUniverse(ctx context.Context, stockID int, universe string) error
	RemoveFromUniverse(ctx context.Context, universe string, keepSymbols []string) (int, error)
	SaveQuote(ctx context.Context, quote *models.StockQuote) error
	LatestMetricRows(ctx context.Context, sectorID int, universe string) ([]models.MetricRow, error)
	SectorSummaries(ctx context.Context, universe string) ([]models.SectorSummary, error)
	SaveDetection(ctx context.Context, outlier *models.OutlierStock, sectorID int, threshold float64) error
}

// QuoteSource is the market data provider seam
type QuoteSource interface {
	Connect(ctx context.Context) error
	FetchQuote(ctx context.Context, stockID int, symbol string) (*models.StockQuote, error)
}

// UniverseSource resolves current universe constituents
type UniverseSource interface {
	SP500(ctx context.Context) ([]discovery.Constituent, error)
	Russell2000(ctx context.Context) ([]discovery.Constituent, error)
}

// SummaryCache caches sector summaries per universe
type SummaryCache interface {
	Get(ctx context.Context, universe string) ([]models.SectorSummary, bool)
	GetStale(ctx context.Context, universe string) ([]models.SectorSummary, bool)
	Set(ctx context.Context, universe string, summaries []models.SectorSummary) error
	Invalidate(ctx context.Context, universe string) error
}

// ProgressSink receives refresh progress events
type ProgressSink interface {
	Broadcast(event ws.ProgressEvent)
}

// ErrRefreshInProgress is returned when a refresh is requested while
// another one is still running. The scheduler and the HTTP handlers share
// this guard, so overlapping runs cannot race on the provider session.
var ErrRefreshInProgress = errors.New("refresh already in progress")

// Stats tracks service activity since startup
type Stats struct {
	RefreshRuns     int64     `json:"refresh_runs"`
	QuotesSaved     int64     `json:"quotes_saved"`
	QuotesFailed    int64     `json:"quotes_failed"`
	DetectionRuns   int64     `json:"detection_runs"`
	OutliersFlagged int64     `json:"outliers_flagged"`
	LastRefresh     time.Time `json:"last_refresh"`
}

// Service wires storage, acquisition, caching and the detection engine
type Service struct {
	store     Store
	quotes    QuoteSource
	universes UniverseSource
	cache     SummaryCache  // may be nil: caching degrades to direct reads
	progress  ProgressSink  // may be nil: progress events are dropped
	log       *logrus.Entry

	scheduler  *cron.Cron
	refreshing atomic.Bool

	mu    sync.RWMutex
	stats Stats
}

// NewService creates the refresh service
func NewService(store Store, quotes QuoteSource, universes UniverseSource, cache SummaryCache, progress ProgressSink, log *logrus.Entry) *Service {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{
		store:     store,
		quotes:    quotes,
		universes: universes,
		cache:     cache,
		progress:  progress,
		log:       log,
	}
}

// SectorPerformance returns cached sector summaries, falling back to the
// aggregate query and finally to a stale cached copy.
func (s *Service) SectorPerformance(ctx context.Context, universe string) ([]models.SectorSummary, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, universe); ok {
			return cached, nil
		}
	}

	summaries, err := s.store.SectorSummaries(ctx, universe)
	if err != nil {
		if s.cache != nil {
			if stale, ok := s.cache.GetStale(ctx, universe); ok {
				s.log.WithError(err).Warn("summary query failed, serving stale cache")
				return stale, nil
			}
		}
		return nil, fmt.Errorf("sector summaries: %w", err)
	}

	s.cacheSummaries(ctx, universe, summaries)
	return summaries, nil
}

// RefreshInProgress reports whether a refresh run is currently active
func (s *Service) RefreshInProgress() bool {
	return s.refreshing.Load()
}

// RefreshAll syncs the S&P 500 universe and refreshes market data for every
// member. Only one refresh may run at a time across all entry points.
// Discovery failures are non-fatal; per-stock failures are counted and
// skipped.
func (s *Service) RefreshAll(ctx context.Context) (*models.RefreshResult, error) {
	if !s.refreshing.CompareAndSwap(false, true) {
		return nil, ErrRefreshInProgress
	}
	defer s.refreshing.Store(false)

	s.emit(0, 0, "discovery")

	var discoveryResult *models.DiscoveryResult
	if result, err := s.syncSP500(ctx); err != nil {
		s.log.WithError(err).Warn("stock discovery failed, continuing with existing universe")
	} else {
		discoveryResult = result
		s.invalidateOnMembershipChange(ctx, models.UniverseSP500, result)
	}

	if err := s.quotes.Connect(ctx); err != nil {
		return nil, fmt.Errorf("provider session: %w", err)
	}

	stocks, err := s.store.ListStocksInUniverse(ctx, models.UniverseSP500)
	if err != nil {
		return nil, fmt.Errorf("list universe stocks: %w", err)
	}

	s.fetchQuotes(ctx, stocks, nil)
	s.finishRefresh()

	summaries, err := s.store.SectorSummaries(ctx, models.UniverseSP500)
	if err != nil {
		return nil, fmt.Errorf("recompute summaries: %w", err)
	}
	s.cacheSummaries(ctx, models.UniverseSP500, summaries)

	return &models.RefreshResult{Sectors: summaries, Discovery: discoveryResult}, nil
}

// RefreshSector refreshes market data for one sector only
func (s *Service) RefreshSector(ctx context.Context, sectorSymbol string) ([]models.SectorSummary, error) {
	if !s.refreshing.CompareAndSwap(false, true) {
		return nil, ErrRefreshInProgress
	}
	defer s.refreshing.Store(false)

	sector, err := s.store.SectorBySymbol(ctx, sectorSymbol)
	if err != nil {
		return nil, err
	}

	if err := s.quotes.Connect(ctx); err != nil {
		return nil, fmt.Errorf("provider session: %w", err)
	}

	stocks, err := s.store.ListStocksBySector(ctx, sector.ID)
	if err != nil {
		return nil, fmt.Errorf("list sector stocks: %w", err)
	}

	s.fetchQuotes(ctx, stocks, nil)
	s.finishRefresh()

	summaries, err := s.store.SectorSummaries(ctx, models.UniverseSP500)
	if err != nil {
		return nil, fmt.Errorf("recompute summaries: %w", err)
	}
	s.cacheSummaries(ctx, models.UniverseSP500, summaries)

	return summaries, nil
}

// RefreshRussell syncs the Russell 2000 universe and refreshes its market
// data, assigning sectors to unclassified stocks from provider metadata.
func (s *Service) RefreshRussell(ctx context.Context) (*models.RefreshResult, error) {
	if !s.refreshing.CompareAndSwap(false, true) {
		return nil, ErrRefreshInProgress
	}
	defer s.refreshing.Store(false)

	s.emit(0, 0, "discovery")

	var discoveryResult *models.DiscoveryResult
	if result, err := s.syncRussell(ctx); err != nil {
		s.log.WithError(err).Warn("russell discovery failed, continuing with existing universe")
	} else {
		discoveryResult = result
		s.invalidateOnMembershipChange(ctx, models.UniverseRussell, result)
	}

	if err := s.quotes.Connect(ctx); err != nil {
		return nil, fmt.Errorf("provider session: %w", err)
	}

	sectorIDs, err := s.store.SectorIDsByName(ctx)
	if err != nil {
		return nil, fmt.Errorf("sector map: %w", err)
	}

	stocks, err := s.store.ListStocksInUniverse(ctx, models.UniverseRussell)
	if err != nil {
		return nil, fmt.Errorf("list universe stocks: %w", err)
	}

	s.fetchQuotes(ctx, stocks, sectorIDs)
	s.finishRefresh()

	summaries, err := s.store.SectorSummaries(ctx, models.UniverseRussell)
	if err != nil {
		return nil, fmt.Errorf("recompute summaries: %w", err)
	}
	s.cacheSummaries(ctx, models.UniverseRussell, summaries)

	return &models.RefreshResult{Sectors: summaries, Discovery: discoveryResult}, nil
}

// fetchQuotes pulls and saves a quote per stock, emitting progress events.
// When sectorIDs is non-nil, unclassified stocks get a sector assigned from
// the provider's sector label.
func (s *Service) fetchQuotes(ctx context.Context, stocks []models.Stock, sectorIDs map[string]int) {
	total := len(stocks)
	saved, failed := 0, 0

	for i, stock := range stocks {
		if ctx.Err() != nil {
			s.log.WithField("remaining", total-i).Warn("refresh cancelled")
			break
		}
		s.emit(i+1, total, "market-data")

		quote, err := s.quotes.FetchQuote(ctx, stock.ID, stock.Symbol)
		if err != nil {
			s.log.WithError(err).WithField("symbol", stock.Symbol).Warn("quote fetch failed")
			failed++
			continue
		}

		if sectorIDs != nil && stock.SectorID == nil && quote.ProviderSector != nil {
			if name := discovery.MapProviderSector(*quote.ProviderSector); name != "" {
				if sectorID, ok := sectorIDs[name]; ok {
					if err := s.store.AssignSector(ctx, stock.ID, sectorID); err != nil {
						s.log.WithError(err).WithField("symbol", stock.Symbol).Warn("sector assignment failed")
					}
				}
			}
		}

		if err := s.store.SaveQuote(ctx, quote); err != nil {
			s.log.WithError(err).WithField("symbol", stock.Symbol).Warn("quote save failed")
			failed++
			continue
		}
		saved++
	}

	quotesSaved.Add(float64(saved))
	quotesFailed.Add(float64(failed))

	s.mu.Lock()
	s.stats.QuotesSaved += int64(saved)
	s.stats.QuotesFailed += int64(failed)
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"saved":  saved,
		"failed": failed,
		"total":  total,
	}).Info("refresh complete")
}

// DetectAllOutliers runs detection across every sector, ordered by sector
// name, and persists flagged results best-effort.
func (s *Service) DetectAllOutliers(ctx context.Context, universe string, threshold float64) ([]models.SectorOutliers, error) {
	sectors, err := s.store.ListSectors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sectors: %w", err)
	}

	batches := make([]outliers.SectorBatch, 0, len(sectors))
	for _, sector := range sectors {
		rows, err := s.store.LatestMetricRows(ctx, sector.ID, universe)
		if err != nil {
			return nil, fmt.Errorf("metric rows for %s: %w", sector.Symbol, err)
		}
		batches = append(batches, outliers.SectorBatch{Sector: sector, Rows: rows})
	}

	results := outliers.DetectAllOutliers(batches, threshold)

	flagged := 0
	for _, sector := range results {
		s.persistDetections(ctx, sector.SectorID, sector.Outliers, threshold)
		flagged += sector.OutlierCount
	}
	s.recordDetection(flagged)

	return results, nil
}

// DetectSectorOutliers runs detection for one sector
func (s *Service) DetectSectorOutliers(ctx context.Context, sectorID int, universe string, threshold float64) ([]models.OutlierStock, error) {
	rows, err := s.store.LatestMetricRows(ctx, sectorID, universe)
	if err != nil {
		return nil, fmt.Errorf("metric rows: %w", err)
	}

	results := outliers.DetectSectorOutliers(rows, threshold)
	s.persistDetections(ctx, sectorID, results, threshold)
	s.recordDetection(len(results))

	return results, nil
}

// persistDetections saves each flagged stock for auditing. A failed write
// is logged and skipped; it never removes the result from the response.
func (s *Service) persistDetections(ctx context.Context, sectorID int, results []models.OutlierStock, threshold float64) {
	for i := range results {
		if err := s.store.SaveDetection(ctx, &results[i], sectorID, threshold); err != nil {
			detectionWriteFailures.Inc()
			s.log.WithError(err).WithField("symbol", results[i].Symbol).Warn("detection save failed")
		}
	}
}

// StartScheduler begins periodic full refreshes on the given cron spec
func (s *Service) StartScheduler(spec string) error {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
		defer cancel()
		if _, err := s.RefreshAll(ctx); err != nil {
			if errors.Is(err, ErrRefreshInProgress) {
				s.log.Info("refresh already running, skipping scheduled run")
				return
			}
			s.log.WithError(err).Error("scheduled refresh failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule refresh: %w", err)
	}
	c.Start()
	s.scheduler = c
	return nil
}

// Stop halts the scheduler, waiting for a running job to finish
func (s *Service) Stop() {
	if s.scheduler != nil {
		<-s.scheduler.Stop().Done()
	}
}

// GetStats returns a copy of the service activity counters
func (s *Service) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

func (s *Service) finishRefresh() {
	refreshRuns.Inc()
	s.emit(0, 0, "done")

	s.mu.Lock()
	s.stats.RefreshRuns++
	s.stats.LastRefresh = time.Now()
	s.mu.Unlock()
}

func (s *Service) recordDetection(flagged int) {
	detectionRuns.Inc()
	outliersFlagged.Add(float64(flagged))

	s.mu.Lock()
	s.stats.DetectionRuns++
	s.stats.OutliersFlagged += int64(flagged)
	s.mu.Unlock()
}

// invalidateOnMembershipChange drops the cached summaries once universe
// membership shifts. Their stock counts are stale from that moment, well
// before the refreshed aggregates replace them.
func (s *Service) invalidateOnMembershipChange(ctx context.Context, universe string, result *models.DiscoveryResult) {
	if s.cache == nil || result.Added+result.Removed == 0 {
		return
	}
	if err := s.cache.Invalidate(ctx, universe); err != nil {
		s.log.WithError(err).Warn("summary cache invalidation failed")
	}
}

func (s *Service) cacheSummaries(ctx context.Context, universe string, summaries []models.SectorSummary) {
	if s.cache == nil || len(summaries) == 0 {
		return
	}
	if err := s.cache.Set(ctx, universe, summaries); err != nil {
		s.log.WithError(err).Warn("summary cache write failed")
	}
}

func (s *Service) emit(current, total int, phase string) {
	if s.progress == nil {
		return
	}
	s.progress.Broadcast(ws.ProgressEvent{Current: current, Total: total, Phase: phase})
}
