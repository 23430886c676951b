package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/pipewright/fdkit/internal/core"
	"github.com/pipewright/fdkit/internal/session"
)

const recordPrefix = "sessions"

// Archiver stores session records in a Storage backend under
// sessions/<yyyy-mm-dd>/<id>.json, keyed by the session's start day in UTC.
type Archiver struct {
	storage Storage
}

// NewArchiver creates an archiver over the given backend.
func NewArchiver(storage Storage) *Archiver {
	return &Archiver{storage: storage}
}

func recordKey(rec *session.Record) string {
	day := rec.StartedAt.UTC().Format("2006-01-02")
	return path.Join(recordPrefix, day, rec.ID+".json")
}

// Put persists one record.
func (a *Archiver) Put(ctx context.Context, rec *session.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return core.WrapError(core.ErrArchiveFailed, err)
	}
	if err := a.storage.Write(ctx, recordKey(rec), data); err != nil {
		return core.WrapError(core.ErrArchiveFailed, err)
	}
	return nil
}

// Get finds a record by session ID, whatever day it was stored under.
func (a *Archiver) Get(ctx context.Context, id string) (*session.Record, error) {
	keys, err := a.storage.List(ctx, recordPrefix)
	if err != nil {
		return nil, core.WrapError(core.ErrArchiveFailed, err)
	}

	suffix := "/" + id + ".json"
	for _, key := range keys {
		if !strings.HasSuffix(key, suffix) {
			continue
		}
		data, err := a.storage.Read(ctx, key)
		if err != nil {
			return nil, core.WrapError(core.ErrArchiveFailed, err)
		}
		var rec session.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, core.WrapError(core.ErrArchiveFailed,
				fmt.Errorf("decoding %s: %w", key, err))
		}
		return &rec, nil
	}
	return nil, core.ErrSessionNotFound
}

// ListIDs returns the IDs of all archived records.
func (a *Archiver) ListIDs(ctx context.Context) ([]string, error) {
	keys, err := a.storage.List(ctx, recordPrefix)
	if err != nil {
		return nil, core.WrapError(core.ErrArchiveFailed, err)
	}

	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		base := path.Base(key)
		if !strings.HasSuffix(base, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(base, ".json"))
	}
	return ids, nil
}
