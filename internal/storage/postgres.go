// Package storage persists sectors, stocks, universe membership, market data
// snapshots and outlier detection records in PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"sector-view-api/internal/models"
)

// Store wraps the database connection pool
type Store struct {
	db *sql.DB
}

// ConnectionParams holds PostgreSQL connection parameters
type ConnectionParams struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// New opens a connection pool, verifies it, and ensures the schema exists.
func New(params ConnectionParams) (*Store, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		params.Host, params.Port, params.User, params.Password, params.DBName, params.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("create tables: %w", err)
	}
	if err := seedSectors(db); err != nil {
		return nil, fmt.Errorf("seed sectors: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sectors (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			symbol TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS stocks (
			id SERIAL PRIMARY KEY,
			symbol TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			sector_id INTEGER REFERENCES sectors(id)
		)`,
		`CREATE TABLE IF NOT EXISTS stock_universe (
			id SERIAL PRIMARY KEY,
			stock_id INTEGER NOT NULL REFERENCES stocks(id),
			universe_type TEXT NOT NULL,
			date_added TIMESTAMPTZ NOT NULL DEFAULT now(),
			date_removed TIMESTAMPTZ,
			UNIQUE (stock_id, universe_type)
		)`,
		`CREATE TABLE IF NOT EXISTS market_data (
			id SERIAL PRIMARY KEY,
			stock_id INTEGER NOT NULL REFERENCES stocks(id),
			price DOUBLE PRECISION NOT NULL,
			price_change DOUBLE PRECISION NOT NULL,
			price_change_percent DOUBLE PRECISION NOT NULL,
			volume BIGINT,
			avg_volume_10d BIGINT,
			market_cap BIGINT,
			pe_ratio DOUBLE PRECISION,
			pb_ratio DOUBLE PRECISION,
			eps DOUBLE PRECISION,
			dividend_yield DOUBLE PRECISION,
			beta DOUBLE PRECISION,
			week_52_high DOUBLE PRECISION,
			week_52_low DOUBLE PRECISION,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_market_data_stock_created
			ON market_data (stock_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS outlier_detections (
			id SERIAL PRIMARY KEY,
			stock_id INTEGER NOT NULL REFERENCES stocks(id),
			sector_id INTEGER NOT NULL REFERENCES sectors(id),
			pe_z_score DOUBLE PRECISION,
			pb_z_score DOUBLE PRECISION,
			price_z_score DOUBLE PRECISION NOT NULL,
			volume_z_score DOUBLE PRECISION,
			composite_score DOUBLE PRECISION NOT NULL,
			outlier_type TEXT NOT NULL,
			significance_level TEXT NOT NULL,
			threshold_used DOUBLE PRECISION NOT NULL,
			detected_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// The eleven GICS sectors with their SPDR fund symbols.
var gicsSectors = [][2]string{
	{"Communication Services", "XLC"},
	{"Consumer Discretionary", "XLY"},
	{"Consumer Staples", "XLP"},
	{"Energy", "XLE"},
	{"Financials", "XLF"},
	{"Health Care", "XLV"},
	{"Industrials", "XLI"},
	{"Materials", "XLB"},
	{"Real Estate", "XLRE"},
	{"Technology", "XLK"},
	{"Utilities", "XLU"},
}

func seedSectors(db *sql.DB) error {
	for _, s := range gicsSectors {
		_, err := db.Exec(
			`INSERT INTO sectors (name, symbol) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
			s[0], s[1],
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListSectors returns all sectors ordered by name
func (s *Store) ListSectors(ctx context.Context) ([]models.Sector, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, symbol FROM sectors ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query sectors: %w", err)
	}
	defer rows.Close()

	var sectors []models.Sector
	for rows.Next() {
		var sec models.Sector
		if err := rows.Scan(&sec.ID, &sec.Name, &sec.Symbol); err != nil {
			return nil, fmt.Errorf("scan sector: %w", err)
		}
		sectors = append(sectors, sec)
	}
	return sectors, rows.Err()
}

// SectorBySymbol looks up a sector by its fund symbol
func (s *Store) SectorBySymbol(ctx context.Context, symbol string) (*models.Sector, error) {
	var sec models.Sector
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, symbol FROM sectors WHERE symbol = $1`, symbol,
	).Scan(&sec.ID, &sec.Name, &sec.Symbol)
	if err != nil {
		return nil, fmt.Errorf("sector %s: %w", symbol, err)
	}
	return &sec, nil
}

// SectorIDsByName returns a name -> id map for all sectors
func (s *Store) SectorIDsByName(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM sectors`)
	if err != nil {
		return nil, fmt.Errorf("query sectors: %w", err)
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var id int
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan sector: %w", err)
		}
		result[name] = id
	}
	return result, rows.Err()
}

// ListStocksBySector returns all stocks in one sector ordered by symbol
func (s *Store) ListStocksBySector(ctx context.Context, sectorID int) ([]models.Stock, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, symbol, name, sector_id FROM stocks WHERE sector_id = $1 ORDER BY symbol`,
		sectorID,
	)
	if err != nil {
		return nil, fmt.Errorf("query stocks: %w", err)
	}
	defer rows.Close()
	return scanStocks(rows)
}

// ListStocksInUniverse returns the active members of a universe ordered by symbol
func (s *Store) ListStocksInUniverse(ctx context.Context, universe string) ([]models.Stock, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.symbol, s.name, s.sector_id
		 FROM stocks s
		 JOIN stock_universe su ON su.stock_id = s.id
		 WHERE su.universe_type = $1 AND su.date_removed IS NULL
		 ORDER BY s.symbol`,
		universe,
	)
	if err != nil {
		return nil, fmt.Errorf("query universe stocks: %w", err)
	}
	defer rows.Close()
	return scanStocks(rows)
}

func scanStocks(rows *sql.Rows) ([]models.Stock, error) {
	var stocks []models.Stock
	for rows.Next() {
		var st models.Stock
		var sectorID sql.NullInt64
		if err := rows.Scan(&st.ID, &st.Symbol, &st.Name, &sectorID); err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		if sectorID.Valid {
			id := int(sectorID.Int64)
			st.SectorID = &id
		}
		stocks = append(stocks, st)
	}
	return stocks, rows.Err()
}

// UpsertStock inserts a stock or refreshes its name, returning the stock id.
// The sector assignment is only set on first insert; an existing NULL sector
// can later be filled in with AssignSector.
func (s *Store) UpsertStock(ctx context.Context, symbol, name string, sectorID *int) (int, error) {
	var id int
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO stocks (symbol, name, sector_id) VALUES ($1, $2, $3)
		 ON CONFLICT (symbol) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`,
		symbol, name, sectorID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert stock %s: %w", symbol, err)
	}
	return id, nil
}

// AssignSector sets a stock's sector if it has none yet
func (s *Store) AssignSector(ctx context.Context, stockID, sectorID int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE stocks SET sector_id = $1 WHERE id = $2 AND sector_id IS NULL`,
		sectorID, stockID,
	)
	if err != nil {
		return fmt.Errorf("assign sector: %w", err)
	}
	return nil
}

// AddToUniverse marks a stock as an active member of a universe,
// reviving a previously removed membership
func (s *Store) AddToUniverse(ctx context.Context, stockID int, universe string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stock_universe (stock_id, universe_type) VALUES ($1, $2)
		 ON CONFLICT (stock_id, universe_type)
		 DO UPDATE SET date_removed = NULL`,
		stockID, universe,
	)
	if err != nil {
		return fmt.Errorf("add to universe: %w", err)
	}
	return nil
}

// RemoveFromUniverse soft-deletes memberships of stocks no longer in the
// universe, returning how many were removed. Symbols passed in are the
// current constituents to keep.
func (s *Store) RemoveFromUniverse(ctx context.Context, universe string, keepSymbols []string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE stock_universe su SET date_removed = now()
		 FROM stocks s
		 WHERE su.stock_id = s.id
		   AND su.universe_type = $1
		   AND su.date_removed IS NULL
		   AND NOT (s.symbol = ANY($2))`,
		universe, pq.Array(keepSymbols),
	)
	if err != nil {
		return 0, fmt.Errorf("remove from universe: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// SaveQuote appends a market data snapshot for a stock
func (s *Store) SaveQuote(ctx context.Context, q *models.StockQuote) error {
	createdAt := q.Timestamp
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO market_data (
			stock_id, price, price_change, price_change_percent,
			volume, avg_volume_10d, market_cap,
			pe_ratio, pb_ratio, eps, dividend_yield, beta,
			week_52_high, week_52_low, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		q.StockID,
		q.Price.InexactFloat64(),
		q.PriceChange.InexactFloat64(),
		q.PriceChangePercent,
		q.Volume, q.AvgVolume10d, q.MarketCap,
		q.PERatio, q.PBRatio, q.EPS, q.DividendYield, q.Beta,
		q.Week52High, q.Week52Low,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("save quote %s: %w", q.Symbol, err)
	}
	return nil
}

// LatestMetricRows returns the most recent snapshot per stock for one sector,
// restricted to active members of the given universe. This is the engine's
// input: one row per stock, pre-filtered to a single sector.
func (s *Store) LatestMetricRows(ctx context.Context, sectorID int, universe string) ([]models.MetricRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT ON (s.id)
			s.id, s.symbol, s.name, s.sector_id,
			md.price_change_percent, md.pe_ratio, md.pb_ratio,
			md.volume, md.avg_volume_10d
		 FROM stocks s
		 JOIN market_data md ON md.stock_id = s.id
		 WHERE s.sector_id = $1
		   AND s.id IN (
			SELECT stock_id FROM stock_universe
			WHERE universe_type = $2 AND date_removed IS NULL
		   )
		 ORDER BY s.id, md.created_at DESC`,
		sectorID, universe,
	)
	if err != nil {
		return nil, fmt.Errorf("query metric rows: %w", err)
	}
	defer rows.Close()

	var result []models.MetricRow
	for rows.Next() {
		var r models.MetricRow
		var pe, pb sql.NullFloat64
		var vol, avgVol sql.NullInt64
		if err := rows.Scan(
			&r.StockID, &r.Symbol, &r.Name, &r.SectorID,
			&r.PriceChangePercent, &pe, &pb, &vol, &avgVol,
		); err != nil {
			return nil, fmt.Errorf("scan metric row: %w", err)
		}
		if pe.Valid {
			r.PERatio = &pe.Float64
		}
		if pb.Valid {
			r.PBRatio = &pb.Float64
		}
		if vol.Valid {
			r.Volume = &vol.Int64
		}
		if avgVol.Valid {
			r.AvgVolume10d = &avgVol.Int64
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// SectorSummaries aggregates the latest snapshot of every active universe
// member, grouped by sector and ordered by sector name
func (s *Store) SectorSummaries(ctx context.Context, universe string) ([]models.SectorSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`WITH latest AS (
			SELECT DISTINCT ON (md.stock_id) md.*
			FROM market_data md
			ORDER BY md.stock_id, md.created_at DESC
		 )
		 SELECT
			sec.id, sec.name, sec.symbol,
			COALESCE(AVG(l.price_change_percent), 0),
			AVG(l.pe_ratio),
			COALESCE(SUM(l.market_cap), 0),
			COUNT(DISTINCT s.id),
			AVG(l.beta)
		 FROM sectors sec
		 LEFT JOIN stocks s ON s.sector_id = sec.id
			AND s.id IN (
				SELECT stock_id FROM stock_universe
				WHERE universe_type = $1 AND date_removed IS NULL
			)
		 LEFT JOIN latest l ON l.stock_id = s.id
		 GROUP BY sec.id
		 ORDER BY sec.name`,
		universe,
	)
	if err != nil {
		return nil, fmt.Errorf("query sector summaries: %w", err)
	}
	defer rows.Close()

	var summaries []models.SectorSummary
	for rows.Next() {
		var sum models.SectorSummary
		var avgPE, avgBeta sql.NullFloat64
		var totalCap int64
		if err := rows.Scan(
			&sum.SectorID, &sum.Name, &sum.Symbol,
			&sum.AvgChangePercent, &avgPE, &totalCap, &sum.StockCount, &avgBeta,
		); err != nil {
			return nil, fmt.Errorf("scan sector summary: %w", err)
		}
		if avgPE.Valid {
			sum.AvgPERatio = &avgPE.Float64
		}
		if avgBeta.Valid {
			sum.AvgBeta = &avgBeta.Float64
		}
		sum.TotalMarketCap = decimal.NewFromInt(totalCap)
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// SaveDetection records one flagged outlier for auditing. Callers treat
// failures here as non-fatal: the detection result is already final.
func (s *Store) SaveDetection(ctx context.Context, o *models.OutlierStock, sectorID int, threshold float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outlier_detections (
			stock_id, sector_id, pe_z_score, pb_z_score,
			price_z_score, volume_z_score, composite_score,
			outlier_type, significance_level, threshold_used
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		o.StockID, sectorID,
		o.ZScores.PEZ, o.ZScores.PBZ, o.ZScores.PriceZ, o.ZScores.VolumeZ,
		o.CompositeScore, string(o.OutlierType), string(o.SignificanceLevel),
		threshold,
	)
	if err != nil {
		return fmt.Errorf("save detection %s: %w", o.Symbol, err)
	}
	return nil
}
