// Package store persists activity records as an append-only CSV file and
// tracks the changelog fetch cursor. The CSV is the durable source of truth:
// the graph and the vector index can always be rebuilt from it.
package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/agenthands/actigraph/internal/logger"
	"github.com/agenthands/actigraph/internal/model"
)

const (
	recordsFile = "activities.csv"
	cursorFile  = ".last_run"
)

var header = []string{
	"owner", "activity_type", "time", "reaction_type", "author_urn",
	"activity_urn", "post_url", "content", "parent_urn",
	"original_post_urn", "created_at",
}

// Store is an append-only, deduplicated record store backed by a CSV file.
type Store struct {
	dataDir string
	path    string

	// seen holds the identity of every record currently in the file so
	// Append can drop duplicates without re-reading the CSV each call.
	seen map[string]struct{}
}

// Open creates the data directory if needed and loads existing record
// identities for deduplication.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir '%s': %w", dataDir, err)
	}

	s := &Store{
		dataDir: dataDir,
		path:    filepath.Join(dataDir, recordsFile),
		seen:    make(map[string]struct{}),
	}

	it, err := s.Load(Filter{})
	if err != nil {
		return nil, err
	}
	for {
		rec, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		s.seen[rec.ID()] = struct{}{}
	}
	if err := it.Close(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the location of the backing CSV file.
func (s *Store) Path() string { return s.path }

// Count returns the number of distinct records currently stored.
func (s *Store) Count() int { return len(s.seen) }

// Append writes the given records to the CSV, skipping any whose identity is
// already present. It returns the number of records actually written.
func (s *Store) Append(records []model.ActivityRecord) (int, error) {
	fresh := make([]model.ActivityRecord, 0, len(records))
	batch := make(map[string]struct{}, len(records))
	for _, rec := range records {
		id := rec.ID()
		if id == "" {
			continue
		}
		if _, dup := s.seen[id]; dup {
			continue
		}
		if _, dup := batch[id]; dup {
			continue
		}
		batch[id] = struct{}{}
		fresh = append(fresh, rec)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	writeHeader := false
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		writeHeader = true
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to open record store: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(header); err != nil {
			return 0, fmt.Errorf("failed to write header: %w", err)
		}
	}
	for _, rec := range fresh {
		if err := w.Write(toRow(rec)); err != nil {
			return 0, fmt.Errorf("failed to write record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("failed to flush record store: %w", err)
	}

	for id := range batch {
		s.seen[id] = struct{}{}
	}
	return len(fresh), nil
}

// Filter selects a subset of stored records. Zero values mean "no bound".
type Filter struct {
	Since int64 // inclusive lower bound on activity time, epoch ms
	Until int64 // exclusive upper bound on activity time, epoch ms
	Types []model.ActivityType
}

func (f Filter) matches(rec model.ActivityRecord) bool {
	if f.Since != 0 && rec.Time < f.Since {
		return false
	}
	if f.Until != 0 && rec.Time >= f.Until {
		return false
	}
	if len(f.Types) > 0 {
		ok := false
		for _, t := range f.Types {
			if rec.ActivityType == t {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// Iterator streams records from the CSV without loading the whole file.
type Iterator struct {
	f       *os.File
	r       *csv.Reader
	filter  Filter
	skipped int
}

// Skipped reports how many malformed rows were dropped so far.
func (it *Iterator) Skipped() int { return it.skipped }

// Next returns the next matching record. The second return value is false
// once the file is exhausted.
func (it *Iterator) Next() (model.ActivityRecord, bool, error) {
	for {
		row, err := it.r.Read()
		if errors.Is(err, io.EOF) {
			return model.ActivityRecord{}, false, nil
		}
		if err != nil {
			// Structurally broken row: skip it and keep going.
			it.skipped++
			logger.Get().Warn("skipping malformed record row", zap.Error(err))
			continue
		}
		rec, err := fromRow(row)
		if err != nil {
			it.skipped++
			logger.Get().Warn("skipping unparseable record row", zap.Error(err))
			continue
		}
		if !it.filter.matches(rec) {
			continue
		}
		return rec, true, nil
	}
}

func (it *Iterator) Close() error {
	if it.f == nil {
		return nil
	}
	return it.f.Close()
}

// Load opens a streaming iterator over stored records matching the filter.
// A missing store file yields an empty iterator, not an error.
func (s *Store) Load(filter Filter) (*Iterator, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &Iterator{r: csv.NewReader(strings.NewReader("")), filter: filter}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(header)

	// Consume the header row.
	if _, err := r.Read(); err != nil && !errors.Is(err, io.EOF) {
		f.Close()
		return nil, fmt.Errorf("failed to read record store header: %w", err)
	}
	return &Iterator{f: f, r: r, filter: filter}, nil
}

// LoadAll reads every matching record into memory. The number of malformed
// rows skipped is returned alongside.
func (s *Store) LoadAll(filter Filter) ([]model.ActivityRecord, int, error) {
	it, err := s.Load(filter)
	if err != nil {
		return nil, 0, err
	}
	defer it.Close()

	var out []model.ActivityRecord
	for {
		rec, ok, err := it.Next()
		if err != nil {
			return nil, it.Skipped(), err
		}
		if !ok {
			break
		}
		out = append(out, rec)
	}
	return out, it.Skipped(), nil
}

// SaveCursor records the processedAt timestamp of the newest ingested event.
func (s *Store) SaveCursor(ms int64) error {
	path := filepath.Join(s.dataDir, cursorFile)
	if err := os.WriteFile(path, []byte(strconv.FormatInt(ms, 10)), 0o644); err != nil {
		return fmt.Errorf("failed to save cursor: %w", err)
	}
	return nil
}

// LoadCursor returns the stored cursor, or 0 if none has been saved yet.
func (s *Store) LoadCursor() (int64, error) {
	data, err := os.ReadFile(filepath.Join(s.dataDir, cursorFile))
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read cursor: %w", err)
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt cursor file: %w", err)
	}
	return ms, nil
}

func toRow(rec model.ActivityRecord) []string {
	return []string{
		rec.Owner,
		string(rec.ActivityType),
		strconv.FormatInt(rec.Time, 10),
		rec.ReactionType,
		rec.AuthorURN,
		rec.ActivityURN,
		rec.PostURL,
		rec.Content,
		rec.ParentURN,
		rec.OriginalPostURN,
		rec.CreatedAt,
	}
}

func fromRow(row []string) (model.ActivityRecord, error) {
	if len(row) != len(header) {
		return model.ActivityRecord{}, fmt.Errorf("expected %d fields, got %d", len(header), len(row))
	}
	ms, err := strconv.ParseInt(row[2], 10, 64)
	if err != nil {
		return model.ActivityRecord{}, fmt.Errorf("invalid time field '%s': %w", row[2], err)
	}
	at := model.ActivityType(row[1])
	if _, known := model.KnownActivityTypes[at]; !known {
		return model.ActivityRecord{}, fmt.Errorf("unknown activity type '%s'", row[1])
	}
	return model.ActivityRecord{
		Owner:           row[0],
		ActivityType:    at,
		Time:            ms,
		ReactionType:    row[3],
		AuthorURN:       row[4],
		ActivityURN:     row[5],
		PostURL:         row[6],
		Content:         row[7],
		ParentURN:       row[8],
		OriginalPostURN: row[9],
		CreatedAt:       row[10],
	}, nil
}
