package kb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"multiverse-copilot-backend/internal/logger"
	"multiverse-copilot-backend/models"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store owns the chunk metadata table and the vector index with its sibling
// id-map file. No other component touches either. The id-map is the only
// linkage between index positions and chunk rows: entry i names the chunk
// whose vector was inserted at position i.
//
// The API server and the ingestion worker may both open the same paths, so
// writers additionally hold an exclusive file lock and adopt the on-disk
// pair before appending; the disk copy is the source of truth across
// processes.
type Store struct {
	db        *sql.DB
	indexPath string

	// mu serializes writers so index appends and id-map appends stay
	// position-aligned. Readers search against a stable snapshot.
	mu    sync.RWMutex
	index *flatIndex // nil until the first embedding fixes the dimension
	idMap []string

	// On-disk id-map stat at last load/persist, for cross-process staleness
	// detection.
	idsModTime time.Time
	idsSize    int64
}

// NewStore opens (or creates) the sqlite metadata database and loads the
// vector index from disk. A missing or inconsistent index/id-map pair is
// discarded and the store starts empty.
func NewStore(dbPath, indexPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(indexPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode=WAL&_pragma=synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS chunks (
			chunk_id TEXT PRIMARY KEY,
			doc_id   TEXT NOT NULL,
			source   TEXT NOT NULL,
			text     TEXT NOT NULL,
			metadata TEXT
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create chunks table: %w", err)
	}

	s := &Store{db: db, indexPath: indexPath}
	s.index, s.idMap = loadIndexPair(indexPath)
	if info, err := os.Stat(s.idsPath()); err == nil {
		s.idsModTime = info.ModTime()
		s.idsSize = info.Size()
	}
	return s, nil
}

func (s *Store) idsPath() string {
	return s.indexPath + ".ids"
}

// lockIndexFiles takes an exclusive advisory lock on the index pair so the
// API server and the ingestion worker never interleave whole-file rewrites.
func (s *Store) lockIndexFiles() (*os.File, error) {
	f, err := os.OpenFile(s.indexPath+".lock", os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open index lock: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to lock index: %w", err)
	}
	return f, nil
}

func unlockIndexFiles(f *os.File) {
	syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	f.Close()
}

// reloadLocked adopts the on-disk index pair when another process persisted
// since this one last loaded it. Every writer persists before releasing the
// file lock, so the disk copy is always a superset of what this process has
// written. Callers hold mu and the file lock.
func (s *Store) reloadLocked() {
	info, err := os.Stat(s.idsPath())
	if err != nil {
		return
	}
	if info.ModTime().Equal(s.idsModTime) && info.Size() == s.idsSize {
		return
	}
	s.index, s.idMap = loadIndexPair(s.indexPath)
	s.idsModTime = info.ModTime()
	s.idsSize = info.Size()
}

// refreshIfStale picks up appends made by the other process so searches do
// not miss chunks ingested elsewhere. Cheap when nothing changed: one stat.
func (s *Store) refreshIfStale() {
	info, err := os.Stat(s.idsPath())
	if err != nil {
		return
	}
	s.mu.RLock()
	fresh := info.ModTime().Equal(s.idsModTime) && info.Size() == s.idsSize
	s.mu.RUnlock()
	if fresh {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	lock, err := s.lockIndexFiles()
	if err != nil {
		logger.Warn("failed to lock index for refresh", "error", err)
		return
	}
	defer unlockIndexFiles(lock)
	s.reloadLocked()
}

// loadIndexPair loads the index and id-map together. Both files must exist
// and agree on length; anything else invalidates the pair and forces an
// empty-store state.
func loadIndexPair(indexPath string) (*flatIndex, []string) {
	idsPath := indexPath + ".ids"
	if _, err := os.Stat(indexPath); err != nil {
		return nil, nil
	}
	if _, err := os.Stat(idsPath); err != nil {
		logger.Warn("index present but id-map missing, starting empty", "index", indexPath)
		return nil, nil
	}

	index, err := readIndexFile(indexPath)
	if err != nil {
		logger.Warn("failed to read vector index, starting empty", "error", err)
		return nil, nil
	}
	raw, err := os.ReadFile(idsPath)
	if err != nil {
		logger.Warn("failed to read id-map, starting empty", "error", err)
		return nil, nil
	}
	var idMap []string
	if err := json.Unmarshal(raw, &idMap); err != nil {
		logger.Warn("failed to decode id-map, starting empty", "error", err)
		return nil, nil
	}
	if len(idMap) != index.count() {
		logger.Warn("id-map length does not match index, starting empty",
			"ids", len(idMap), "vectors", index.count())
		return nil, nil
	}
	return index, idMap
}

func (s *Store) Close() error {
	return s.db.Close()
}

// AddChunks stores chunk texts with their embeddings under a fresh doc_id.
// All embeddings are validated against the index dimensionality before any
// row or vector is written; both index and id-map are persisted before the
// call returns.
func (s *Store) AddChunks(ctx context.Context, source string, chunks []string, embeddings [][]float32) (string, int, error) {
	if len(chunks) != len(embeddings) {
		return "", 0, fmt.Errorf("chunks and embeddings length mismatch: %d vs %d", len(chunks), len(embeddings))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docID := uuid.NewString()
	if len(chunks) == 0 {
		return docID, 0, nil
	}

	lock, err := s.lockIndexFiles()
	if err != nil {
		return "", 0, err
	}
	defer unlockIndexFiles(lock)

	// Another process may have appended since our last load; adopt its
	// vectors before appending or the rewrite below would drop them.
	s.reloadLocked()

	dim := len(embeddings[0])
	if s.index != nil {
		dim = s.index.dim
	}
	for i, emb := range embeddings {
		if len(emb) != dim {
			return "", 0, fmt.Errorf("%w: index dimension %d, embedding %d has dimension %d",
				ErrDimensionMismatch, dim, i, len(emb))
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO chunks (chunk_id, doc_id, source, text, metadata) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return "", 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	if s.index == nil {
		s.index = newFlatIndex(dim)
	}

	appended := 0
	for i, text := range chunks {
		chunkID := uuid.NewString()
		meta, _ := json.Marshal(map[string]int{"dim": dim})
		if _, err := stmt.ExecContext(ctx, chunkID, docID, source, text, string(meta)); err != nil {
			s.rollbackAppends(appended)
			return "", 0, fmt.Errorf("failed to insert chunk: %w", err)
		}
		if err := s.index.add(embeddings[i]); err != nil {
			s.rollbackAppends(appended)
			return "", 0, err
		}
		s.idMap = append(s.idMap, chunkID)
		appended++
	}

	if err := tx.Commit(); err != nil {
		s.rollbackAppends(appended)
		return "", 0, fmt.Errorf("failed to commit: %w", err)
	}

	if err := s.persistIndex(); err != nil {
		return "", 0, err
	}
	return docID, len(chunks), nil
}

// rollbackAppends undoes in-memory appends after a failed write so the
// index stays aligned with the id-map and the on-disk state.
func (s *Store) rollbackAppends(n int) {
	if n == 0 {
		return
	}
	s.index.vectors = s.index.vectors[:len(s.index.vectors)-n]
	s.idMap = s.idMap[:len(s.idMap)-n]
}

func (s *Store) persistIndex() error {
	if err := s.index.writeFile(s.indexPath + ".tmp"); err != nil {
		return fmt.Errorf("failed to persist vector index: %w", err)
	}
	if err := os.Rename(s.indexPath+".tmp", s.indexPath); err != nil {
		return fmt.Errorf("failed to replace vector index: %w", err)
	}
	ids, err := json.Marshal(s.idMap)
	if err != nil {
		return fmt.Errorf("failed to encode id-map: %w", err)
	}
	if err := os.WriteFile(s.idsPath()+".tmp", ids, 0o644); err != nil {
		return fmt.Errorf("failed to persist id-map: %w", err)
	}
	if err := os.Rename(s.idsPath()+".tmp", s.idsPath()); err != nil {
		return fmt.Errorf("failed to replace id-map: %w", err)
	}
	if info, err := os.Stat(s.idsPath()); err == nil {
		s.idsModTime = info.ModTime()
		s.idsSize = info.Size()
	}
	return nil
}

// Search runs a cosine nearest-neighbor query and resolves the winning
// positions to chunk rows. Positions outside the id-map and ids without a
// metadata row are skipped, not failed: the index may have drifted from the
// table and a partial answer beats none.
func (s *Store) Search(ctx context.Context, queryVec []float32, topK int) ([]models.KBMatch, error) {
	s.refreshIfStale()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.index == nil || s.index.count() == 0 {
		return []models.KBMatch{}, nil
	}
	if len(queryVec) != s.index.dim {
		return nil, fmt.Errorf("%w: index dimension %d, query dimension %d",
			ErrDimensionMismatch, s.index.dim, len(queryVec))
	}

	matches := []models.KBMatch{}
	for _, hit := range s.index.search(queryVec, topK) {
		if hit.Position < 0 || hit.Position >= len(s.idMap) {
			continue
		}
		chunkID := s.idMap[hit.Position]
		var source, text string
		err := s.db.QueryRowContext(ctx,
			"SELECT source, text FROM chunks WHERE chunk_id = ?", chunkID).Scan(&source, &text)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to fetch chunk %s: %w", chunkID, err)
		}
		matches = append(matches, models.KBMatch{Text: text, Source: source, Score: float64(hit.Score)})
	}
	return matches, nil
}

// FetchContextByDocIDs returns up to limit chunk texts belonging to the
// given documents, in storage order
func (s *Store) FetchContextByDocIDs(ctx context.Context, docIDs []string, limit int) ([]string, error) {
	if len(docIDs) == 0 {
		return []string{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(docIDs)), ",")
	args := make([]any, 0, len(docIDs)+1)
	for _, id := range docIDs {
		args = append(args, id)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx,
		"SELECT text FROM chunks WHERE doc_id IN ("+placeholders+") ORDER BY rowid LIMIT ?", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch context chunks: %w", err)
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("failed to scan chunk text: %w", err)
		}
		texts = append(texts, text)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate context chunks: %w", err)
	}
	if texts == nil {
		texts = []string{}
	}
	return texts, nil
}

// Stats reports the vector count and id-map length. The two are equal
// whenever no writer is mid-flight.
func (s *Store) Stats() (vectors, ids int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return 0, len(s.idMap)
	}
	return s.index.count(), len(s.idMap)
}

// DeleteChunk removes a single metadata row. The vector stays in the index;
// search tolerates the dangling id-map entry by skipping it.
func (s *Store) DeleteChunk(ctx context.Context, chunkID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE chunk_id = ?", chunkID)
	return err
}

// ChunkIDs returns a copy of the id-map, primarily for diagnostics
func (s *Store) ChunkIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.idMap))
	copy(out, s.idMap)
	return out
}
