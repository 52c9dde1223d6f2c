package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"solSniperBot/internal/domain"
	"solSniperBot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the ports.TradeHistory interface using SQLite. The
// trade-history log is append-only; closed and escalated positions land here
// and the aggregate summary is recomputed from the table on every append.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/trade_history.db" // Default path
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("creating data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "Trade history store init failed")
		return nil, err
	}

	// WAL keeps readers from blocking the append path
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("opening database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "Trade history store init failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("pinging database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "Trade history store init failed")
		return nil, err
	}

	// A single connection avoids SQLITE_BUSY under concurrent archive writes.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "Trade history database opened", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("initializing trade history schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "Trade history store init failed")
		return nil, err
	}

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trade_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		position_id TEXT NOT NULL,
		token_address TEXT NOT NULL,
		symbol TEXT NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL NOT NULL,
		quantity REAL NOT NULL,
		invested_amount REAL NOT NULL,
		realized_pnl REAL NOT NULL,
		realized_pnl_pct REAL NOT NULL,
		exit_reason TEXT NOT NULL,
		status TEXT NOT NULL,
		entry_time TIMESTAMP NOT NULL,
		exit_time TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trade_history_token ON trade_history (token_address, entry_time);
	CREATE INDEX IF NOT EXISTS idx_trade_history_status ON trade_history (status);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("executing schema statements: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing trade history database")
		return r.db.Close()
	}
	return nil
}

// Append records a closed or archived position and returns its assigned ID.
func (r *Repository) Append(ctx context.Context, trade *domain.Trade) (int64, error) {
	const query = `
	INSERT INTO trade_history (position_id, token_address, symbol, entry_price, exit_price,
	                           quantity, invested_amount, realized_pnl, realized_pnl_pct,
	                           exit_reason, status, entry_time, exit_time)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		trade.PositionID, trade.TokenAddress, trade.Symbol, trade.EntryPrice, trade.ExitPrice,
		trade.Quantity, trade.InvestedAmount, trade.RealizedPnL, trade.RealizedPnLPct,
		string(trade.ExitReason), string(trade.Status), trade.EntryTime, trade.ExitTime)
	if err != nil {
		return 0, fmt.Errorf("failed to insert trade history for %s: %w: %v", trade.Symbol, ports.ErrQueryFailed, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading insert ID for trade %s: %w", trade.Symbol, err)
	}
	trade.ID = id
	r.logger.Debug(ctx, "Trade archived", map[string]interface{}{
		"tradeID": id, "positionID": trade.PositionID, "symbol": trade.Symbol, "pnl": trade.RealizedPnL, "status": trade.Status,
	})
	return id, nil
}

// Summary recomputes the aggregate over the whole trade-history log.
func (r *Repository) Summary(ctx context.Context) (*domain.TradeSummary, error) {
	const query = `
	SELECT COUNT(*),
	       COALESCE(SUM(realized_pnl), 0),
	       COALESCE(SUM(CASE WHEN realized_pnl > 0 THEN 1 ELSE 0 END), 0),
	       COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
	FROM trade_history`

	s := &domain.TradeSummary{}
	err := r.db.QueryRowContext(ctx, query, string(domain.StatusManualReview)).
		Scan(&s.TotalTrades, &s.TotalPnL, &s.Wins, &s.ManualReviews)
	if err != nil {
		return nil, fmt.Errorf("failed to compute trade summary: %w: %v", ports.ErrQueryFailed, err)
	}
	if s.TotalTrades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.TotalTrades)
	}
	return s, nil
}

// FindByToken retrieves the most recent archived trades for a token, up to a limit.
func (r *Repository) FindByToken(ctx context.Context, tokenAddress string, limit int) ([]*domain.Trade, error) {
	const query = `
	SELECT id, position_id, token_address, symbol, entry_price, exit_price, quantity,
	       invested_amount, realized_pnl, realized_pnl_pct, exit_reason, status,
	       entry_time, exit_time
	FROM trade_history
	WHERE token_address = ? ORDER BY entry_time DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, tokenAddress, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade history for token %s: %w: %v", tokenAddress, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning trade row: %w", err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating trade rows: %w", err)
	}
	return trades, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(s scanner) (*domain.Trade, error) {
	t := &domain.Trade{}
	var exitReason, status string
	err := s.Scan(
		&t.ID, &t.PositionID, &t.TokenAddress, &t.Symbol, &t.EntryPrice, &t.ExitPrice,
		&t.Quantity, &t.InvestedAmount, &t.RealizedPnL, &t.RealizedPnLPct,
		&exitReason, &status, &t.EntryTime, &t.ExitTime)
	if err != nil {
		return nil, err
	}
	t.ExitReason = domain.SellReason(exitReason)
	t.Status = domain.PositionStatus(status)
	return t, nil
}
