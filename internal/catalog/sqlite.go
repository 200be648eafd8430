package catalog

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Store is the SQLite-backed catalog with embedded search vectors.
type Store struct {
	db  *sql.DB
	vec Vectorizer
}

// NewStore opens (or creates) the catalog database at the given path.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: open db")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "catalog: exec %s", pragma)
		}
	}
	return &Store{db: db}, nil
}

const catalogMigration = `
CREATE TABLE IF NOT EXISTS sku_catalog (
	sku_id     TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	category   TEXT NOT NULL,
	specs      TEXT NOT NULL DEFAULT '',
	base_cost  REAL NOT NULL,
	unit       TEXT NOT NULL,
	searchable TEXT NOT NULL,
	embedding  BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sku_catalog_category ON sku_catalog(category);
`

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, catalogMigration)
	return eris.Wrap(err, "catalog: migrate")
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Index embeds and upserts the given SKUs in a single transaction.
// Re-indexing an existing SKU replaces its row.
func (s *Store) Index(ctx context.Context, skus []SKU) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "catalog: begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sku_catalog (sku_id, name, category, specs, base_cost, unit, searchable, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(sku_id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			specs = excluded.specs,
			base_cost = excluded.base_cost,
			unit = excluded.unit,
			searchable = excluded.searchable,
			embedding = excluded.embedding`)
	if err != nil {
		return eris.Wrap(err, "catalog: prepare upsert")
	}
	defer stmt.Close()

	for _, sku := range skus {
		text := SearchableText(sku)
		blob := encodeVector(s.vec.Encode(text))
		if _, err := stmt.ExecContext(ctx,
			sku.ID, sku.Name, sku.Category, sku.Specs, sku.BaseCost, sku.Unit, text, blob,
		); err != nil {
			return eris.Wrapf(err, "catalog: upsert sku %s", sku.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "catalog: commit")
	}
	zap.L().Info("catalog: indexed SKUs", zap.Int("count", len(skus)))
	return nil
}

// Search scores every stored SKU against the query vector and returns the
// topK best, ordered by descending similarity.
func (s *Store) Search(ctx context.Context, query string, topK int, category string) ([]Candidate, error) {
	if topK <= 0 {
		topK = 3
	}
	q := `SELECT sku_id, name, category, specs, base_cost, unit, embedding FROM sku_catalog`
	args := []any{}
	if category != "" {
		q += ` WHERE category = ?`
		args = append(args, category)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: search query")
	}
	defer rows.Close()

	qvec := s.vec.Encode(query)

	var candidates []Candidate
	for rows.Next() {
		var c Candidate
		var blob []byte
		if err := rows.Scan(&c.ID, &c.Name, &c.Category, &c.Specs, &c.BaseCost, &c.Unit, &blob); err != nil {
			return nil, eris.Wrap(err, "catalog: scan row")
		}
		c.Similarity = Cosine(qvec, decodeVector(blob))
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "catalog: iterate rows")
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

// Get looks up a single SKU by its identifier.
func (s *Store) Get(ctx context.Context, id string) (SKU, bool, error) {
	var sku SKU
	err := s.db.QueryRowContext(ctx,
		`SELECT sku_id, name, category, specs, base_cost, unit FROM sku_catalog WHERE sku_id = ?`, id,
	).Scan(&sku.ID, &sku.Name, &sku.Category, &sku.Specs, &sku.BaseCost, &sku.Unit)
	if err == sql.ErrNoRows {
		return SKU{}, false, nil
	}
	if err != nil {
		return SKU{}, false, eris.Wrap(err, "catalog: get sku")
	}
	return sku, true, nil
}

// Count reports how many SKUs are indexed.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sku_catalog`).Scan(&n)
	return n, eris.Wrap(err, "catalog: count")
}

// Categories returns the distinct category names in the catalog.
func (s *Store) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT category FROM sku_catalog ORDER BY category`)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: categories")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, eris.Wrap(err, "catalog: scan category")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "catalog: iterate categories")
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
