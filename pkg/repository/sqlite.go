package repository

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite"
)

const recordSchema = `
CREATE TABLE IF NOT EXISTS memories (
	id          TEXT PRIMARY KEY,
	content     TEXT NOT NULL,
	topics      TEXT NOT NULL,
	embedding   BLOB NOT NULL,
	confidence  REAL NOT NULL DEFAULT 1.0,
	is_proxy    INTEGER NOT NULL DEFAULT 0,
	proxy_agent TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memories_updated_at ON memories(updated_at DESC);
`

// recordDB wraps the per-owner SQLite database holding the authoritative
// record rows. Timestamps are stored as unix nanoseconds and embeddings as
// little-endian float32 blobs.
type recordDB struct {
	db *sql.DB
}

func openRecordDB(path string) (recordDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return recordDB{}, goerr.Wrap(err, "failed to open record database", goerr.V("path", path))
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return recordDB{}, goerr.Wrap(err, "failed to configure record database", goerr.V("pragma", pragma))
		}
	}

	if _, err := db.Exec(recordSchema); err != nil {
		_ = db.Close()
		return recordDB{}, goerr.Wrap(err, "failed to initialize record schema", goerr.V("path", path))
	}

	return recordDB{db: db}, nil
}

func (x recordDB) Close() error {
	return x.db.Close()
}

func (x recordDB) insert(ctx context.Context, rec *model.MemoryRecord) error {
	topics, err := json.Marshal(rec.Topics)
	if err != nil {
		return goerr.Wrap(err, "failed to encode topics", goerr.V("id", rec.ID))
	}

	_, err = x.db.ExecContext(ctx,
		`INSERT INTO memories (id, content, topics, embedding, confidence, is_proxy, proxy_agent, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(rec.ID), rec.Content, string(topics), encodeEmbedding(rec.Embedding),
		rec.Confidence, rec.IsProxy, rec.ProxyAgent,
		rec.CreatedAt.UnixNano(), rec.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to insert record", goerr.V("id", rec.ID))
	}
	return nil
}

func (x recordDB) get(ctx context.Context, id model.MemoryID) (*model.MemoryRecord, error) {
	row := x.db.QueryRowContext(ctx,
		`SELECT id, content, topics, embedding, confidence, is_proxy, proxy_agent, created_at, updated_at
		 FROM memories WHERE id = ?`, string(id))

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerr.Wrap(model.ErrRecordNotFound, "no such record", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to read record", goerr.V("id", id))
	}
	return rec, nil
}

// update overwrites the mutable fields only; id, owner, confidence and proxy
// attribution are fixed at creation.
func (x recordDB) update(ctx context.Context, rec *model.MemoryRecord) error {
	topics, err := json.Marshal(rec.Topics)
	if err != nil {
		return goerr.Wrap(err, "failed to encode topics", goerr.V("id", rec.ID))
	}

	res, err := x.db.ExecContext(ctx,
		`UPDATE memories SET content = ?, topics = ?, embedding = ?, updated_at = ? WHERE id = ?`,
		rec.Content, string(topics), encodeEmbedding(rec.Embedding), rec.UpdatedAt.UnixNano(), string(rec.ID),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to update record", goerr.V("id", rec.ID))
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return goerr.Wrap(err, "failed to check update result", goerr.V("id", rec.ID))
	}
	if rows == 0 {
		return goerr.Wrap(model.ErrRecordNotFound, "no record to update", goerr.V("id", rec.ID))
	}
	return nil
}

func (x recordDB) remove(ctx context.Context, id model.MemoryID) (bool, error) {
	res, err := x.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, string(id))
	if err != nil {
		return false, goerr.Wrap(err, "failed to delete record", goerr.V("id", id))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, goerr.Wrap(err, "failed to check delete result", goerr.V("id", id))
	}
	return rows > 0, nil
}

func (x recordDB) list(ctx context.Context, opt model.ListOption) ([]*model.MemoryRecord, error) {
	rows, err := x.db.QueryContext(ctx,
		`SELECT id, content, topics, embedding, confidence, is_proxy, proxy_agent, created_at, updated_at
		 FROM memories ORDER BY updated_at DESC, id ASC`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list records")
	}
	defer rows.Close()

	topicFilter := model.NormalizeTopics(opt.Topics)
	var recs []*model.MemoryRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan record")
		}
		if len(topicFilter) > 0 && !model.TopicsOverlap(rec.Topics, topicFilter) {
			continue
		}
		recs = append(recs, rec)
		if opt.Limit > 0 && len(recs) >= opt.Limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate records")
	}
	return recs, nil
}

func (x recordDB) count(ctx context.Context) (int, error) {
	var n int
	if err := x.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&n); err != nil {
		return 0, goerr.Wrap(err, "failed to count records")
	}
	return n, nil
}

func (x recordDB) topicStats(ctx context.Context) (map[string]int, error) {
	rows, err := x.db.QueryContext(ctx, `SELECT topics FROM memories`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read topics")
	}
	defer rows.Close()

	stats := map[string]int{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, goerr.Wrap(err, "failed to scan topics")
		}
		var topics []string
		if err := json.Unmarshal([]byte(raw), &topics); err != nil {
			return nil, goerr.Wrap(err, "failed to decode topics")
		}
		for _, t := range topics {
			stats[t]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate topics")
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*model.MemoryRecord, error) {
	var (
		id, content, topicsJSON, proxyAgent string
		emb                                 []byte
		confidence                          float64
		isProxy                             bool
		createdAt, updatedAt                int64
	)
	if err := row.Scan(&id, &content, &topicsJSON, &emb, &confidence, &isProxy, &proxyAgent, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var topics []string
	if err := json.Unmarshal([]byte(topicsJSON), &topics); err != nil {
		return nil, goerr.Wrap(err, "failed to decode topics", goerr.V("id", id))
	}

	return &model.MemoryRecord{
		ID:         model.MemoryID(id),
		Content:    content,
		Topics:     topics,
		Embedding:  decodeEmbedding(emb),
		Confidence: confidence,
		IsProxy:    isProxy,
		ProxyAgent: proxyAgent,
		CreatedAt:  time.Unix(0, createdAt),
		UpdatedAt:  time.Unix(0, updatedAt),
	}, nil
}

func encodeEmbedding(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeEmbedding(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
