package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"promostaking/core/events"
	"promostaking/core/types"
)

const (
	// DefaultLimit caps List results when the query does not set a limit.
	DefaultLimit = 100
	// MaxLimit is the largest page List returns.
	MaxLimit = 1000
)

// ErrUnsupportedDriver is returned by Open for unknown drivers.
var ErrUnsupportedDriver = errors.New("archive: unsupported driver")

// Record is one committed ledger event.
type Record struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Type       string    `gorm:"size:64;index" json:"type"`
	Attributes string    `gorm:"type:text" json:"-"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
}

// TableName pins the table name independent of the struct name.
func (Record) TableName() string { return "ledger_events" }

// Event decodes the stored attributes.
func (r Record) Event() (*types.Event, error) {
	evt := &types.Event{Type: r.Type, Attributes: map[string]string{}}
	if r.Attributes == "" {
		return evt, nil
	}
	if err := json.Unmarshal([]byte(r.Attributes), &evt.Attributes); err != nil {
		return nil, fmt.Errorf("archive: decode record %d: %w", r.ID, err)
	}
	return evt, nil
}

// Query filters List results. Zero values match everything.
type Query struct {
	Type    string
	Address string
	AfterID uint64
	Limit   int
}

// Open connects to the archive database. driver is sqlite or postgres.
func Open(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite":
		return gorm.Open(sqlite.Open(dsn), cfg)
	case "postgres":
		return gorm.Open(postgres.Open(dsn), cfg)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedDriver, driver)
	}
}

// Archive persists committed events and serves them back for history queries.
// It implements events.Emitter so it can sit next to the live feed.
type Archive struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

// New migrates the schema and returns an archive backed by db.
func New(db *gorm.DB, log *slog.Logger) (*Archive, error) {
	if db == nil {
		return nil, errors.New("archive: nil database")
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("archive: migrate: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Archive{db: db, logger: log.With("component", "archive"), now: time.Now}, nil
}

// Emit implements events.Emitter. Write failures are logged; the ledger state
// they describe is already committed.
func (a *Archive) Emit(evt events.Event) {
	payload, ok := evt.(events.Payload)
	if !ok {
		return
	}
	if err := a.Append(context.Background(), payload.Event()); err != nil {
		a.logger.Error("archive event", slog.String("type", evt.EventType()), slog.Any("error", err))
	}
}

// Append stores evt.
func (a *Archive) Append(ctx context.Context, evt *types.Event) error {
	if evt == nil {
		return nil
	}
	attrs, err := json.Marshal(evt.Attributes)
	if err != nil {
		return err
	}
	rec := &Record{Type: evt.Type, Attributes: string(attrs), CreatedAt: a.now().UTC()}
	return a.db.WithContext(ctx).Create(rec).Error
}

// List returns records in insertion order.
func (a *Archive) List(ctx context.Context, q Query) ([]Record, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	tx := a.db.WithContext(ctx).Model(&Record{}).Where("id > ?", q.AfterID)
	if t := strings.TrimSpace(q.Type); t != "" {
		tx = tx.Where("type = ?", t)
	}
	if addr := strings.TrimSpace(q.Address); addr != "" {
		tx = tx.Where("attributes LIKE ?", "%\""+addr+"\"%")
	}
	var out []Record
	if err := tx.Order("id ASC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Count reports the number of stored records.
func (a *Archive) Count(ctx context.Context) (int64, error) {
	var n int64
	err := a.db.WithContext(ctx).Model(&Record{}).Count(&n).Error
	return n, err
}

// Close releases the underlying connection pool.
func (a *Archive) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
