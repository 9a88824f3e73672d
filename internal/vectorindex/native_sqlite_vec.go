//go:build sqlite_vec && cgo

package vectorindex

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sync"

	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	// Register the sqlite-vec extension with the mattn/go-sqlite3 driver.
	// vec.Auto() registers it as an auto-loadable extension.
	vec.Auto()
}

// SQLiteVecEngine is the native NativeEngine implementation backed by the
// sqlite-vec virtual table extension. It is opt-in via the sqlite_vec cgo
// build tag; without it, Index falls back to its own brute-force matrix.
type SQLiteVecEngine struct {
	mu  sync.Mutex
	db  *sql.DB
	dim int
}

// NewSQLiteVecEngine opens an in-memory sqlite database with the vec0
// virtual table extension loaded. dim fixes the vector column width; it may
// be zero until the first Add or a successful Load.
func NewSQLiteVecEngine(dim int) (*SQLiteVecEngine, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("vectorindex: open sqlite-vec database: %w", err)
	}
	e := &SQLiteVecEngine{db: db, dim: dim}
	if dim > 0 {
		if err := e.createTable(dim); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *SQLiteVecEngine) createTable(dim int) error {
	_, err := e.db.Exec(fmt.Sprintf(
		"CREATE VIRTUAL TABLE IF NOT EXISTS vec_items USING vec0(vector_id INTEGER PRIMARY KEY, embedding float[%d])", dim))
	if err != nil {
		return fmt.Errorf("vectorindex: create vec0 table: %w", err)
	}
	return nil
}

// Add inserts vec under vectorID, creating the virtual table on the first
// call if it doesn't exist yet.
func (e *SQLiteVecEngine) Add(vectorID int, vec []float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dim == 0 {
		e.dim = len(vec)
		if err := e.createTable(e.dim); err != nil {
			return err
		}
	}
	if len(vec) != e.dim {
		return fmt.Errorf("vectorindex: vector dimension %d does not match index dimension %d", len(vec), e.dim)
	}

	_, err := e.db.Exec("INSERT INTO vec_items(vector_id, embedding) VALUES (?, ?)", vectorID, serializeVector(vec))
	if err != nil {
		return fmt.Errorf("vectorindex: insert into vec0 table: %w", err)
	}
	return nil
}

// Search runs a k-nearest-neighbor query against the vec0 table.
func (e *SQLiteVecEngine) Search(query []float32, k int) ([]NativeHit, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dim == 0 {
		return nil, fmt.Errorf("vectorindex: native engine has no vectors yet")
	}

	rows, err := e.db.Query(
		"SELECT vector_id, distance FROM vec_items WHERE embedding MATCH ? AND k = ? ORDER BY distance",
		serializeVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: vec0 knn query: %w", err)
	}
	defer rows.Close()

	var hits []NativeHit
	for rows.Next() {
		var vectorID int
		var distance float64
		if err := rows.Scan(&vectorID, &distance); err != nil {
			continue
		}
		// vec0 returns L2 distance on unit vectors; convert to the cosine
		// similarity the rest of the package scores with.
		hits = append(hits, NativeHit{VectorID: vectorID, Score: 1 - distance*distance/2})
	}
	return hits, nil
}

// Persist serializes the vec0 table contents to path as a compact binary
// dump (vector_id, vector bytes) pairs, since the virtual table itself is
// an in-memory construct with no native file format of its own here.
func (e *SQLiteVecEngine) Persist(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rows, err := e.db.Query("SELECT vector_id, embedding FROM vec_items ORDER BY vector_id")
	if err != nil {
		return fmt.Errorf("vectorindex: read vec0 table for persist: %w", err)
	}
	defer rows.Close()

	f, err := os.CreateTemp("", "vec-persist-*")
	if err != nil {
		return fmt.Errorf("vectorindex: create native persist temp file: %w", err)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	for rows.Next() {
		var vectorID int
		var raw []byte
		if err := rows.Scan(&vectorID, &raw); err != nil {
			continue
		}
		fmt.Fprintf(f, "%d\t", vectorID)
		f.Write(raw)
		f.Write([]byte{'\n'})
	}

	data, err := os.ReadFile(f.Name())
	if err != nil {
		return fmt.Errorf("vectorindex: read native persist temp file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Load does not read Persist's dump: it always returns an error, so
// Index.Load goes on to parse the file as a raw float32 array.
func (e *SQLiteVecEngine) Load(path string) (int, error) {
	return 0, fmt.Errorf("vectorindex: native load not supported, use brute-force fallback")
}

// Clear drops and recreates the virtual table.
func (e *SQLiteVecEngine) Clear() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dim == 0 {
		return nil
	}
	if _, err := e.db.Exec("DROP TABLE IF EXISTS vec_items"); err != nil {
		return fmt.Errorf("vectorindex: drop vec0 table: %w", err)
	}
	e.dim = 0
	return nil
}

func serializeVector(v []float32) []byte {
	out := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}
