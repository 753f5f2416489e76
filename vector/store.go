// Package vector persists embedded document chunks and serves similarity
// queries for the chat path.
//
// All indexed documents share one logical collection: a chat query can
// retrieve chunks from any previously indexed document, with no per-user
// isolation.
package vector

import (
	"context"
	"database/sql"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"go.uber.org/zap"

	"github.com/SnehaChouksey/Acadlyst/errors"
)

// ChunkRecord is one embedded document chunk ready for indexing
type ChunkRecord struct {
	Content   string
	Source    string // original filename
	Position  int    // 1-based chunk locator within the document
	Embedding []float32
}

// SearchResult is one retrieved chunk with its similarity score
type SearchResult struct {
	Content    string  `json:"content"`
	Source     string  `json:"source"`
	Position   int     `json:"position"`
	Distance   float32 `json:"distance"`
	Similarity float32 `json:"similarity"` // 1.0 - normalized L2 distance
}

// Store writes and queries the doc_chunks table and its vec_chunks
// companion virtual table.
type Store struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewStore creates a vector store over the given database
func NewStore(db *sql.DB, logger *zap.SugaredLogger) *Store {
	return &Store{
		db:     db,
		logger: logger.Named("vector"),
	}
}

// UpsertBatch indexes a batch of embedded chunks in one transaction.
// Indexing is additive: re-running a document adds redundant vectors but
// never corrupts existing ones.
func (s *Store) UpsertBatch(ctx context.Context, records []ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin index transaction")
	}
	defer tx.Rollback()

	chunkStmt, err := tx.Prepare(`
		INSERT INTO doc_chunks (content, source, position, created_at)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare chunk insert statement")
	}
	defer chunkStmt.Close()

	vecStmt, err := tx.Prepare(`INSERT INTO vec_chunks (chunk_id, embedding) VALUES (?, ?)`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare vector insert statement")
	}
	defer vecStmt.Close()

	now := time.Now().UTC()
	for _, record := range records {
		blob, err := sqlite_vec.SerializeFloat32(record.Embedding)
		if err != nil {
			return errors.Wrapf(err, "failed to serialize embedding for chunk %d of %s", record.Position, record.Source)
		}

		result, err := chunkStmt.Exec(record.Content, record.Source, record.Position, now)
		if err != nil {
			return errors.Wrapf(err, "failed to insert chunk %d of %s", record.Position, record.Source)
		}

		chunkID, err := result.LastInsertId()
		if err != nil {
			return errors.Wrap(err, "failed to get chunk rowid")
		}

		if _, err := vecStmt.Exec(chunkID, blob); err != nil {
			return errors.Wrapf(err, "failed to insert vector for chunk %d of %s", record.Position, record.Source)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit index transaction")
	}

	s.logger.Infow("Indexed chunks",
		"count", len(records),
		"source", records[0].Source,
	)
	return nil
}

// Search returns the k chunks nearest to the query embedding.
// Lower L2 distance means more similar; similarity is 1 - distance/2 for
// normalized vectors, clamped at 0.
func (s *Store) Search(ctx context.Context, queryEmbedding []float32, k int) ([]*SearchResult, error) {
	if len(queryEmbedding) == 0 {
		return nil, errors.New("query embedding is empty")
	}
	if k <= 0 {
		k = 3
	}

	blob, err := sqlite_vec.SerializeFloat32(queryEmbedding)
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialize query embedding")
	}

	query := `
		SELECT
			d.content,
			d.source,
			d.position,
			vec_distance_L2(v.embedding, ?) as distance
		FROM vec_chunks v
		JOIN doc_chunks d ON v.chunk_id = d.id
		ORDER BY distance
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, blob, k)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to perform similarity search (k=%d)", k)
	}
	defer rows.Close()

	var results []*SearchResult
	for rows.Next() {
		var result SearchResult
		if err := rows.Scan(&result.Content, &result.Source, &result.Position, &result.Distance); err != nil {
			return nil, errors.Wrapf(err, "failed to scan search result at row %d", len(results)+1)
		}

		result.Similarity = 1.0 - (result.Distance / 2.0)
		if result.Similarity < 0 {
			result.Similarity = 0
		}
		results = append(results, &result)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to iterate search results (scanned %d rows)", len(results))
	}

	s.logger.Debugw("Similarity search completed", "results", len(results), "k", k)
	return results, nil
}

// Count returns the number of indexed chunks
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM doc_chunks`).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count chunks")
	}
	return count, nil
}
