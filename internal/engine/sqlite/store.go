package sqlite

import (
	"database/sql"

	"github.com/fleetwarden/fleetwarden/internal/engine/core"
)

// Store aggregates the SQLite-backed repositories over one database.
type Store struct {
	db         *sql.DB
	releases   *ReleaseRepository
	rollouts   *RolloutRepository
	records    *RecordRepository
	appliances *ApplianceRepository
}

var _ core.Repository = (*Store)(nil)

// NewStore builds the repository aggregate over an opened database.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:         db,
		releases:   &ReleaseRepository{db: db},
		rollouts:   &RolloutRepository{db: db},
		records:    &RecordRepository{db: db},
		appliances: &ApplianceRepository{db: db},
	}
}

func (s *Store) Releases() core.ReleaseRepository     { return s.releases }
func (s *Store) Rollouts() core.RolloutRepository     { return s.rollouts }
func (s *Store) Records() core.RecordRepository       { return s.records }
func (s *Store) Appliances() core.ApplianceRepository { return s.appliances }

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }
