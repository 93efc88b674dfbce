// Package journal persists the terminal outcome of every watched entry.
// Records survive restarts so past runs can be inspected and audited.
package journal

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/add0794/automated-file-mover/internal/domain"
	domainerrors "github.com/add0794/automated-file-mover/internal/errors"
	"github.com/add0794/automated-file-mover/internal/id"
)

// Storage key prefixes. The time index uses inverted timestamps so a
// forward scan yields newest records first.
const (
	recordPrefix         = "record:"
	recordIdxTimePrefix  = "record:idx:time:"
	recordIdxSessPrefix  = "record:idx:session:"
	sessionPrefix        = "session:"
	sessionIdxTimePrefix = "session:idx:time:"
)

// invertedTimestamp returns a string that sorts in descending time order
// during forward iteration.
func invertedTimestamp(t time.Time) string {
	inverted := math.MaxInt64 - t.UnixNano()
	return fmt.Sprintf("%019d", inverted)
}

// Journal wraps a Badger database holding records and sessions.
type Journal struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens (or creates) the journal database at path.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Records must survive a crash right after the move
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal db: %w", err)
	}

	if logger != nil {
		logger.Info("journal opened", "path", path)
	}

	return &Journal{db: db, logger: logger}, nil
}

// OpenReadOnly opens the journal for inspection without taking the write
// lock, so a running daemon keeps it. Writes fail.
func OpenReadOnly(path string, logger *slog.Logger) (*Journal, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.ReadOnly = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal db read-only: %w", err)
	}

	return &Journal{db: db, logger: logger}, nil
}

// Close gracefully closes the database.
func (j *Journal) Close() error {
	if j.logger != nil {
		j.logger.Info("closing journal")
	}
	return j.db.Close()
}

// AppendRecord stores a terminal-transition record with its indexes in a
// single transaction. A zero ID is assigned a fresh time-sortable one.
func (j *Journal) AppendRecord(ctx context.Context, record *domain.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if record.ID == "" {
		record.ID = id.MustSortable("mv")
	}
	if record.Time.IsZero() {
		record.Time = time.Now()
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}

	invertedTS := invertedTimestamp(record.Time)

	return j.db.Update(func(txn *badger.Txn) error {
		// Primary key: record:{id} -> Record JSON
		if err := txn.Set([]byte(recordPrefix+record.ID), data); err != nil {
			return fmt.Errorf("setting primary key: %w", err)
		}

		// Time index: record:idx:time:{inverted_ts}:{id} -> "" (key-only)
		timeKey := []byte(recordIdxTimePrefix + invertedTS + ":" + record.ID)
		if err := txn.Set(timeKey, []byte{}); err != nil {
			return fmt.Errorf("setting time index: %w", err)
		}

		// Session index: record:idx:session:{session}:{id} -> "".
		// Record IDs sort by creation time, so a forward scan of one
		// session's index returns its records in detection order.
		if record.SessionID != "" {
			sessKey := []byte(recordIdxSessPrefix + record.SessionID + ":" + record.ID)
			if err := txn.Set(sessKey, []byte{}); err != nil {
				return fmt.Errorf("setting session index: %w", err)
			}
		}

		return nil
	})
}

// GetRecord retrieves a single record by ID.
func (j *Journal) GetRecord(ctx context.Context, recordID string) (*domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var record domain.Record
	err := j.get([]byte(recordPrefix+recordID), &record)
	if err != nil {
		if domainerrors.Is(err, badger.ErrKeyNotFound) {
			return nil, domainerrors.NotFoundf("record %s not found", recordID)
		}
		return nil, fmt.Errorf("getting record %s: %w", recordID, err)
	}

	return &record, nil
}

// ListRecords returns up to limit records, newest first.
func (j *Journal) ListRecords(ctx context.Context, limit int) ([]*domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []*domain.Record

	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false // Key-only index
		opts.Prefix = []byte(recordIdxTimePrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(recordIdxTimePrefix)); it.ValidForPrefix([]byte(recordIdxTimePrefix)); it.Next() {
			if limit > 0 && len(records) >= limit {
				break
			}

			// Key layout: record:idx:time:{inverted_ts}:{id}
			key := string(it.Item().Key())
			recordID := key[strings.LastIndex(key, ":")+1:]
			if recordID == "" {
				continue
			}

			record, err := j.getRecordInTxn(txn, recordID)
			if err != nil {
				continue
			}
			records = append(records, record)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}

	return records, nil
}

// RecordsBySession returns all records of one session in detection order.
func (j *Journal) RecordsBySession(ctx context.Context, sessionID string) ([]*domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []*domain.Record
	prefix := []byte(recordIdxSessPrefix + sessionID + ":")

	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			recordID := key[len(prefix):]
			if recordID == "" {
				continue
			}

			record, err := j.getRecordInTxn(txn, recordID)
			if err != nil {
				continue
			}
			records = append(records, record)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing session records: %w", err)
	}

	return records, nil
}

// SaveSession stores a session with its time index.
func (j *Journal) SaveSession(ctx context.Context, session domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}

	invertedTS := invertedTimestamp(session.StartedAt)

	return j.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(sessionPrefix+session.ID), data); err != nil {
			return fmt.Errorf("setting session: %w", err)
		}
		timeKey := []byte(sessionIdxTimePrefix + invertedTS + ":" + session.ID)
		if err := txn.Set(timeKey, []byte{}); err != nil {
			return fmt.Errorf("setting session time index: %w", err)
		}
		return nil
	})
}

// GetSession retrieves a session by ID.
func (j *Journal) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var session domain.Session
	err := j.get([]byte(sessionPrefix+sessionID), &session)
	if err != nil {
		if domainerrors.Is(err, badger.ErrKeyNotFound) {
			return nil, domainerrors.NotFoundf("session %s not found", sessionID)
		}
		return nil, fmt.Errorf("getting session %s: %w", sessionID, err)
	}

	return &session, nil
}

// ListSessions returns up to limit sessions, newest first.
func (j *Journal) ListSessions(ctx context.Context, limit int) ([]*domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var sessions []*domain.Session

	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(sessionIdxTimePrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(sessionIdxTimePrefix)); it.ValidForPrefix([]byte(sessionIdxTimePrefix)); it.Next() {
			if limit > 0 && len(sessions) >= limit {
				break
			}

			key := string(it.Item().Key())
			sessionID := key[strings.LastIndex(key, ":")+1:]
			if sessionID == "" {
				continue
			}

			var session domain.Session
			if err := j.getInTxn(txn, []byte(sessionPrefix+sessionID), &session); err != nil {
				continue
			}
			sessions = append(sessions, &session)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	return sessions, nil
}

// get retrieves a value by key.
func (j *Journal) get(key []byte, dest any) error {
	return j.db.View(func(txn *badger.Txn) error {
		return j.getInTxn(txn, key, dest)
	})
}

// getInTxn retrieves a value by key inside an existing transaction.
func (j *Journal) getInTxn(txn *badger.Txn, key []byte, dest any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dest)
	})
}

// getRecordInTxn loads one record inside an existing transaction.
func (j *Journal) getRecordInTxn(txn *badger.Txn, recordID string) (*domain.Record, error) {
	var record domain.Record
	if err := j.getInTxn(txn, []byte(recordPrefix+recordID), &record); err != nil {
		return nil, err
	}
	return &record, nil
}
