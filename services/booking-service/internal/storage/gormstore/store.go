// Package gormstore implements storage.Store on SQLite through gorm, for
// single-node deployments and tests.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/db"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store expects a gorm handle pinned to one connection (db.OpenSQLite), which
// makes every transaction serializable. Inside WithTx only the Tx may be used;
// touching the Store again would wait on the connection the Tx holds.
type Store struct {
	db *gorm.DB
}

func New(gdb *gorm.DB) *Store {
	return &Store{db: gdb}
}

// Open opens path and migrates the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	gdb, err := db.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	s := New(gdb)
	if err := s.Migrate(ctx); err != nil {
		_ = db.CloseSQLite(gdb)
		return nil, err
	}
	return s, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&clientRow{},
		&providerRow{},
		&scheduleRow{},
		&appointmentRow{},
		&outboxRow{},
		&inboxRow{},
	)
}

func (s *Store) Close() error {
	return db.CloseSQLite(s.db)
}

func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &txStore{db: tx})
	})
}

func (s *Store) Ping(ctx context.Context) error {
	return db.SQLiteReadyCheck(s.db)(ctx)
}

type txStore struct {
	db *gorm.DB
}

var _ storage.Tx = (*txStore)(nil)

func (s *txStore) q(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", storage.ErrConflict, err)
	}
	return err
}

func (s *txStore) GetClient(ctx context.Context, id int64) (model.Client, error) {
	var r clientRow
	if err := s.q(ctx).First(&r, id).Error; err != nil {
		return model.Client{}, mapErr(err)
	}
	return model.Client{ID: r.ID, Name: r.Name, Email: r.Email, Deleted: r.Deleted}, nil
}

func (s *txStore) GetProvider(ctx context.Context, id int64) (model.Provider, error) {
	var r providerRow
	if err := s.q(ctx).First(&r, id).Error; err != nil {
		return model.Provider{}, mapErr(err)
	}
	return model.Provider{ID: r.ID, Name: r.Name, Email: r.Email, Active: r.Active, Deleted: r.Deleted}, nil
}

func (s *txStore) UpsertClient(ctx context.Context, c model.Client) error {
	r := clientRow{ID: c.ID, Name: c.Name, Email: c.Email, Deleted: c.Deleted}
	err := s.q(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "deleted"}),
	}).Create(&r).Error
	return mapErr(err)
}

func (s *txStore) UpsertProvider(ctx context.Context, p model.Provider) error {
	r := providerRow{ID: p.ID, Name: p.Name, Email: p.Email, Active: p.Active, Deleted: p.Deleted}
	err := s.q(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "active", "deleted"}),
	}).Create(&r).Error
	return mapErr(err)
}

func (s *txStore) DetachProvider(ctx context.Context, providerID int64) (int64, error) {
	res := s.q(ctx).Model(&appointmentRow{}).
		Where("provider_id = ?", providerID).
		Update("provider_id", gorm.Expr("NULL"))
	return res.RowsAffected, mapErr(res.Error)
}

func (s *txStore) GetScheduleEntry(ctx context.Context, providerID int64, weekday time.Weekday) (model.ScheduleEntry, error) {
	var r scheduleRow
	err := s.q(ctx).Where("provider_id = ? AND weekday = ?", providerID, int(weekday)).First(&r).Error
	if err != nil {
		return model.ScheduleEntry{}, mapErr(err)
	}
	return toScheduleEntry(r), nil
}

func (s *txStore) GetScheduleEntryByID(ctx context.Context, id int64) (model.ScheduleEntry, error) {
	var r scheduleRow
	if err := s.q(ctx).First(&r, id).Error; err != nil {
		return model.ScheduleEntry{}, mapErr(err)
	}
	return toScheduleEntry(r), nil
}

func (s *txStore) ListScheduleEntries(ctx context.Context, providerID int64) ([]model.ScheduleEntry, error) {
	var rows []scheduleRow
	if err := s.q(ctx).Where("provider_id = ?", providerID).Order("weekday").Find(&rows).Error; err != nil {
		return nil, mapErr(err)
	}
	out := make([]model.ScheduleEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, toScheduleEntry(r))
	}
	return out, nil
}

func (s *txStore) InsertScheduleEntry(ctx context.Context, e *model.ScheduleEntry) error {
	r := scheduleRow{
		ProviderID: e.ProviderID,
		Weekday:    int(e.Weekday),
		WorkStart:  toNullMinute(e.WorkStart),
		WorkEnd:    toNullMinute(e.WorkEnd),
		LunchStart: toNullMinute(e.LunchStart),
		LunchEnd:   toNullMinute(e.LunchEnd),
		DayOff:     e.DayOff,
	}
	if err := s.q(ctx).Create(&r).Error; err != nil {
		return mapErr(err)
	}
	e.ID = r.ID
	return nil
}

func (s *txStore) UpdateScheduleEntry(ctx context.Context, e model.ScheduleEntry) error {
	// A map keeps nil times and a false day_off in the UPDATE.
	res := s.q(ctx).Model(&scheduleRow{}).Where("id = ?", e.ID).Updates(map[string]any{
		"work_start":  toNullMinute(e.WorkStart),
		"work_end":    toNullMinute(e.WorkEnd),
		"lunch_start": toNullMinute(e.LunchStart),
		"lunch_end":   toNullMinute(e.LunchEnd),
		"day_off":     e.DayOff,
	})
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *txStore) DeleteScheduleEntry(ctx context.Context, id int64) error {
	res := s.q(ctx).Delete(&scheduleRow{}, id)
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
