package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherly/server/internal/domain/registrations"
)

// queryer is satisfied by both a pool and a transaction, so every
// repository method works inside or outside WithTx unchanged.
type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Connect opens a pool and verifies the database is reachable.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Store hands out repositories that share this store's transaction, if
// one is open.
type Store struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func NewStore(pool *pgxpool.Pool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("postgres store: pool is nil")
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Users() *UserRepository {
	return &UserRepository{pool: s.pool, tx: s.tx}
}

func (s *Store) Favorites() *FavoriteRepository {
	return &FavoriteRepository{pool: s.pool, tx: s.tx}
}

func (s *Store) OrganizerRequests() *OrganizerRequestRepository {
	return &OrganizerRequestRepository{pool: s.pool, tx: s.tx}
}

func (s *Store) Events() *EventRepository {
	return &EventRepository{pool: s.pool, tx: s.tx}
}

func (s *Store) Registrations() *RegistrationRepository {
	return &RegistrationRepository{pool: s.pool, tx: s.tx}
}

func (s *Store) Participants() *ParticipantRepository {
	return &ParticipantRepository{pool: s.pool, tx: s.tx}
}

func (s *Store) Organizations() *OrganizationRepository {
	return &OrganizationRepository{pool: s.pool, tx: s.tx}
}

func (s *Store) Notifications() *NotificationRepository {
	return &NotificationRepository{pool: s.pool, tx: s.tx}
}

// WithTx runs fn against a store bound to one transaction. Nested calls
// reuse the open transaction.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, *Store) error) error {
	if s.tx != nil {
		return fn(ctx, s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	wrapped := &Store{pool: s.pool, tx: tx}
	if err := fn(ctx, wrapped); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// registrationStore adapts Store to the registration workflow's
// transactional store interface.
type registrationStore struct {
	store *Store
}

// NewRegistrationStore wraps the store for the registration workflow.
func NewRegistrationStore(store *Store) registrations.Store {
	return registrationStore{store: store}
}

func (r registrationStore) Registrations() registrations.Repository {
	return r.store.Registrations()
}

func (r registrationStore) Participants() registrations.ParticipantRepository {
	return r.store.Participants()
}

func (r registrationStore) Events() registrations.EventStore {
	return r.store.Events()
}

func (r registrationStore) WithTx(ctx context.Context, fn func(context.Context, registrations.Store) error) error {
	return r.store.WithTx(ctx, func(ctx context.Context, s *Store) error {
		return fn(ctx, registrationStore{store: s})
	})
}
