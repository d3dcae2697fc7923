// Package ingest implements the Ingestor (C5): it takes the measurement a
// Browser Driver job produced and commits it to the Data Store, retrying
// the narrow set of failures that are safe to retry and translating
// everything else into one of the sentinel errors the Scheduler expects
// (spec.md §4.5).
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pumpkin/internal/common"
	"github.com/ternarybob/pumpkin/internal/models"
)

// urlTestInserter is the storage dependency Ingestor needs, satisfied by
// *sqlite.UrlTestStore. Narrowed to an interface so tests can substitute a
// fake store without a real database.
type urlTestInserter interface {
	InsertUrlTest(ctx context.Context, runID int64, m *models.TestMeasurement) (*models.UrlTest, error)
}

// Ingestor commits one TestMeasurement at a time, matching the teacher's
// RetryPolicy shape (internal/services/crawler/retry.go) generalized from
// HTTP transience to DB transience.
type Ingestor struct {
	store  urlTestInserter
	logger arbor.ILogger
}

func New(store urlTestInserter, logger arbor.ILogger) *Ingestor {
	return &Ingestor{store: store, logger: logger}
}

// NewForTest is an alias of New for test callers.
func NewForTest(store urlTestInserter, logger arbor.ILogger) *Ingestor {
	return New(store, logger)
}

// uuidCollisionRetries bounds the retry loop for the vanishingly unlikely
// case of a UNIQUE constraint hit on the generated uuid column; the store
// itself regenerates the uuid on each InsertUrlTest call, so a retry is
// simply calling it again.
const uuidCollisionRetries = 1

// reconnectRetries bounds the single reconnect-and-retry the spec allows
// for a transient connection drop (spec.md §4.5).
const reconnectRetries = 1

// Insert commits m under runID, retrying once on a UUID collision and
// once on a connection-class failure before giving up. A foreign-key
// violation (the run row is gone) is never retried: the store already
// reports it as common.ErrRunMissing.
func (i *Ingestor) Insert(ctx context.Context, runID int64, m *models.TestMeasurement) (*models.UrlTest, error) {
	uniqueRetries, connRetries := 0, 0

	for {
		t, err := i.store.InsertUrlTest(ctx, runID, m)
		if err == nil {
			return t, nil
		}

		if errors.Is(err, common.ErrRunMissing) {
			return nil, err
		}

		if isUniqueViolation(err) && uniqueRetries < uuidCollisionRetries {
			uniqueRetries++
			if i.logger != nil {
				i.logger.Warn().Err(err).Str("url", m.URL).Msg("uuid collision on url_test insert, retrying")
			}
			continue
		}

		if isConnectionError(err) && connRetries < reconnectRetries {
			connRetries++
			if i.logger != nil {
				i.logger.Warn().Err(err).Str("url", m.URL).Msg("transient connection error on url_test insert, retrying")
			}
			select {
			case <-time.After(50 * time.Millisecond):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", common.ErrIngestPersistent, ctx.Err())
			}
			continue
		}

		return nil, fmt.Errorf("%w: %v", common.ErrIngestPersistent, err)
	}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToUpper(err.Error()), "UNIQUE CONSTRAINT")
}

func isConnectionError(err error) bool {
	return errors.Is(err, common.ErrDatabaseUnavailable) ||
		(err != nil && strings.Contains(strings.ToLower(err.Error()), "connection"))
}
