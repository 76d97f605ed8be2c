package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"booking-backend/internal/model"
)

// Store defines the database operations the scheduler and the report
// aggregator need. All range comparisons use inclusive endpoints, matching
// timespan.Overlaps.
type Store interface {
	DB() *gorm.DB

	// Transaction runs fn inside one database transaction. Serialization
	// failures are surfaced as model.ErrConflict so callers can retry.
	Transaction(ctx context.Context, fn func(tx Store) error) error

	CreateResource(ctx context.Context, r *model.Resource) error
	GetResource(ctx context.Context, id string) (*model.Resource, error)
	ListResources(ctx context.Context) ([]model.Resource, error)

	CreateAllocations(ctx context.Context, allocations []model.Allocation) error
	GetAllocation(ctx context.Context, id int64) (*model.Allocation, error)
	// MastersOverlapping returns the primary-mirror allocations of a
	// resource that share at least an instant with [start, end].
	MastersOverlapping(ctx context.Context, resource string, start, end time.Time) ([]model.Allocation, error)
	// MirrorsOfSlot returns every mirror allocation of one logical time
	// slot, the primary first.
	MirrorsOfSlot(ctx context.Context, mirrorOf string, start time.Time) ([]model.Allocation, error)
	// MastersByGroup returns the primary-mirror allocations of a group,
	// ordered by start.
	MastersByGroup(ctx context.Context, group string) ([]model.Allocation, error)
	// MastersInPeriod returns the primary-mirror allocations of the given
	// resources whose start falls within [first, last].
	MastersInPeriod(ctx context.Context, resources []string, first, last time.Time) ([]model.Allocation, error)

	CreateReservation(ctx context.Context, r *model.Reservation) error
	GetReservation(ctx context.Context, id int64) (*model.Reservation, error)
	UpdateReservation(ctx context.Context, r *model.Reservation) error
	DeleteReservation(ctx context.Context, id int64) error
	// ReservationsByTarget returns the reservations claiming a target,
	// optionally filtered by status, ordered by creation.
	ReservationsByTarget(ctx context.Context, target string, status model.ReservationStatus) ([]model.Reservation, error)
	// ReservationsByTargets bulk-fetches reservations for many targets,
	// confirmed ordered before pending.
	ReservationsByTargets(ctx context.Context, targets []string) ([]model.Reservation, error)
	// ReservationsByResource lists a resource's reservations, confirmed
	// before pending, then by creation.
	ReservationsByResource(ctx context.Context, resource string) ([]model.Reservation, error)
	CountReservations(ctx context.Context, target string, status model.ReservationStatus) (int64, error)
	// EarliestPending returns the oldest pending reservation for a target,
	// or nil when the waiting list is empty.
	EarliestPending(ctx context.Context, target string) (*model.Reservation, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
	return translateConflict(err)
}

// translateConflict maps backend serialization failures to model.ErrConflict.
// Postgres reports them as SQLSTATE 40001 (serialization_failure) or 40P01
// (deadlock_detected).
func translateConflict(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "40001" || pgErr.Code == "40P01" {
			return fmt.Errorf("%w: %s", model.ErrConflict, pgErr.Message)
		}
	}
	return err
}

func (s *gormStore) CreateResource(ctx context.Context, r *model.Resource) error {
	return s.db.WithContext(ctx).Create(r).Error
}

func (s *gormStore) GetResource(ctx context.Context, id string) (*model.Resource, error) {
	var r model.Resource
	if err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (s *gormStore) ListResources(ctx context.Context) ([]model.Resource, error) {
	var resources []model.Resource
	if err := s.db.WithContext(ctx).Order("title").Find(&resources).Error; err != nil {
		return nil, err
	}
	return resources, nil
}

func (s *gormStore) CreateAllocations(ctx context.Context, allocations []model.Allocation) error {
	if len(allocations) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&allocations).Error
}

func (s *gormStore) GetAllocation(ctx context.Context, id int64) (*model.Allocation, error) {
	var a model.Allocation
	if err := s.db.WithContext(ctx).First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *gormStore) MastersOverlapping(ctx context.Context, resource string, start, end time.Time) ([]model.Allocation, error) {
	var allocations []model.Allocation
	err := s.db.WithContext(ctx).
		Where(`mirror_of = ? AND resource = mirror_of AND start <= ? AND "end" >= ?`, resource, end, start).
		Order("start").
		Find(&allocations).Error
	if err != nil {
		return nil, err
	}
	return allocations, nil
}

func (s *gormStore) MirrorsOfSlot(ctx context.Context, mirrorOf string, start time.Time) ([]model.Allocation, error) {
	var allocations []model.Allocation
	err := s.db.WithContext(ctx).
		Where("mirror_of = ? AND start = ?", mirrorOf, start).
		Order("id").
		Find(&allocations).Error
	if err != nil {
		return nil, err
	}
	return allocations, nil
}

func (s *gormStore) MastersByGroup(ctx context.Context, group string) ([]model.Allocation, error) {
	var allocations []model.Allocation
	err := s.db.WithContext(ctx).
		Where(`"group" = ? AND resource = mirror_of`, group).
		Order("start").
		Find(&allocations).Error
	if err != nil {
		return nil, err
	}
	return allocations, nil
}

func (s *gormStore) MastersInPeriod(ctx context.Context, resources []string, first, last time.Time) ([]model.Allocation, error) {
	var allocations []model.Allocation
	err := s.db.WithContext(ctx).
		Where("mirror_of IN ? AND resource = mirror_of AND start >= ? AND start <= ?", resources, first, last).
		Order("start").
		Find(&allocations).Error
	if err != nil {
		return nil, err
	}
	return allocations, nil
}

func (s *gormStore) CreateReservation(ctx context.Context, r *model.Reservation) error {
	return translateConflict(s.db.WithContext(ctx).Create(r).Error)
}

func (s *gormStore) GetReservation(ctx context.Context, id int64) (*model.Reservation, error) {
	var r model.Reservation
	if err := s.db.WithContext(ctx).First(&r, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (s *gormStore) UpdateReservation(ctx context.Context, r *model.Reservation) error {
	return translateConflict(s.db.WithContext(ctx).Save(r).Error)
}

func (s *gormStore) DeleteReservation(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).Delete(&model.Reservation{}, id)
	if result.Error != nil {
		return translateConflict(result.Error)
	}
	if result.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *gormStore) ReservationsByTarget(ctx context.Context, target string, status model.ReservationStatus) ([]model.Reservation, error) {
	query := s.db.WithContext(ctx).Where("target = ?", target)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var reservations []model.Reservation
	if err := query.Order("created_at, id").Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

func (s *gormStore) ReservationsByTargets(ctx context.Context, targets []string) ([]model.Reservation, error) {
	if len(targets) == 0 {
		return nil, nil
	}

	var reservations []model.Reservation
	err := s.db.WithContext(ctx).
		Where("target IN ?", targets).
		Order("status, created_at").
		Find(&reservations).Error
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

func (s *gormStore) ReservationsByResource(ctx context.Context, resource string) ([]model.Reservation, error) {
	var reservations []model.Reservation
	err := s.db.WithContext(ctx).
		Where("resource = ?", resource).
		Order("status, created_at").
		Find(&reservations).Error
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

func (s *gormStore) CountReservations(ctx context.Context, target string, status model.ReservationStatus) (int64, error) {
	query := s.db.WithContext(ctx).Model(&model.Reservation{}).Where("target = ?", target)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (s *gormStore) EarliestPending(ctx context.Context, target string) (*model.Reservation, error) {
	var r model.Reservation
	err := s.db.WithContext(ctx).
		Where("target = ? AND status = ?", target, model.StatusPending).
		Order("created_at, id").
		First(&r).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}
