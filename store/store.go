// Package store persists orchestrator state in SQLite via GORM: the
// conversation log and summary state, per-agent execution histories,
// trigger schedules, the watcher's seen-message set and the agent roster.
// One Store value implements every store interface in core.
package store

import (
	"fmt"
	"sync/atomic"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultSeenLimit bounds the seen-message set; oldest rows are pruned once
// the limit is exceeded.
const DefaultSeenLimit = 300

// Options configure store construction.
type Options struct {
	// SeenLimit caps the seen-message set. Zero means DefaultSeenLimit.
	SeenLimit int
}

// Store is a SQLite-backed implementation of the core store interfaces.
type Store struct {
	db        *gorm.DB
	seenLimit int
}

// Open opens (creating when absent) the SQLite database at path and runs
// schema migration.
func Open(path string, optFns ...func(o *Options)) (*Store, error) {
	return open(path, optFns...)
}

var memorySeq atomic.Int64

// OpenMemory opens a fresh in-memory database, used by tests. The DSN names
// the database uniquely so the connection pool shares one instance without
// leaking state between opens.
func OpenMemory(optFns ...func(o *Options)) (*Store, error) {
	dsn := fmt.Sprintf("file:steward_mem_%d?mode=memory&cache=shared", memorySeq.Add(1))
	return open(dsn, optFns...)
}

func open(dsn string, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{SeenLimit: DefaultSeenLimit}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.SeenLimit <= 0 {
		opts.SeenLimit = DefaultSeenLimit
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.AutoMigrate(
		&conversationRow{},
		&summaryRow{},
		&historyRow{},
		&triggerRow{},
		&seenRow{},
		&rosterRow{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Store{db: db, seenLimit: opts.SeenLimit}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
