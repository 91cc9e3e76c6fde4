package eventio

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ib-77/l1tnp/pkg/event"
	_ "modernc.org/sqlite"
)

// SQLiteSink stores records in three tables: probes, and the tag and L1
// matches of each probe keyed by probe id.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and its tables.
func OpenSQLite(path string) (*SQLiteSink, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteSink{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSink) initialize() error {
	probes := `
	CREATE TABLE IF NOT EXISTS probes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		process_id INTEGER NOT NULL,
		run INTEGER NOT NULL,
		luminosity_block INTEGER NOT NULL,
		event INTEGER NOT NULL,
		deterministic_seed INTEGER NOT NULL,
		n_probes INTEGER NOT NULL,
		n_muon INTEGER NOT NULL,
		mc_weight REAL,
		probe_index INTEGER NOT NULL,
		pt REAL NOT NULL,
		eta REAL NOT NULL,
		phi REAL NOT NULL,
		mass REAL NOT NULL,
		charge INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_probes_event ON probes(run, luminosity_block, event);
	`

	tags := `
	CREATE TABLE IF NOT EXISTS probe_tags (
		probe_id INTEGER NOT NULL REFERENCES probes(id),
		idx INTEGER NOT NULL,
		pt REAL NOT NULL,
		eta REAL NOT NULL,
		phi REAL NOT NULL,
		mass REAL NOT NULL,
		dr REAL NOT NULL,
		m_inv REAL NOT NULL,
		PRIMARY KEY (probe_id, idx)
	);
	`

	l1 := `
	CREATE TABLE IF NOT EXISTS probe_l1 (
		probe_id INTEGER NOT NULL REFERENCES probes(id),
		idx INTEGER NOT NULL,
		pt REAL NOT NULL,
		eta REAL NOT NULL,
		phi REAL NOT NULL,
		mass REAL NOT NULL,
		hw_qual INTEGER NOT NULL,
		bx INTEGER NOT NULL,
		dr REAL NOT NULL,
		PRIMARY KEY (probe_id, idx)
	);
	`

	for _, table := range []string{probes, tags, l1} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Write stores the records of one chunk in a single transaction.
func (s *SQLiteSink) Write(ctx context.Context, records []event.ProbeRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insProbe, err := tx.PrepareContext(ctx, `INSERT INTO probes
		(process_id, run, luminosity_block, event, deterministic_seed, n_probes, n_muon,
		 mc_weight, probe_index, pt, eta, phi, mass, charge)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare probe insert: %w", err)
	}
	defer insProbe.Close()

	insTag, err := tx.PrepareContext(ctx, `INSERT INTO probe_tags
		(probe_id, idx, pt, eta, phi, mass, dr, m_inv) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare tag insert: %w", err)
	}
	defer insTag.Close()

	insL1, err := tx.PrepareContext(ctx, `INSERT INTO probe_l1
		(probe_id, idx, pt, eta, phi, mass, hw_qual, bx, dr) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare l1 insert: %w", err)
	}
	defer insL1.Close()

	for i := range records {
		r := &records[i]
		var weight sql.NullFloat64
		if r.MCWeight != nil {
			weight = sql.NullFloat64{Float64: *r.MCWeight, Valid: true}
		}

		// SQLite integers are signed; the seed is stored with its bits intact.
		res, err := insProbe.ExecContext(ctx,
			r.ProcessID, r.Run, r.LuminosityBlock, int64(r.EventID), int64(r.DeterministicSeed),
			r.NProbes, r.NMuon, weight, r.ProbeIndex, r.Pt, r.Eta, r.Phi, r.Mass, r.Charge)
		if err != nil {
			return fmt.Errorf("failed to insert probe: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get probe id: %w", err)
		}

		for j, t := range r.Tags {
			if _, err := insTag.ExecContext(ctx, id, j, t.Pt, t.Eta, t.Phi, t.Mass, t.DR, t.MInv); err != nil {
				return fmt.Errorf("failed to insert tag: %w", err)
			}
		}
		for j, m := range r.L1 {
			if _, err := insL1.ExecContext(ctx, id, j, m.Pt, m.Eta, m.Phi, m.Mass, m.HwQual, m.Bx, m.DR); err != nil {
				return fmt.Errorf("failed to insert l1: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit records: %w", err)
	}
	return nil
}

// ReadRecords calls fn for every stored record in insertion order.
func (s *SQLiteSink) ReadRecords(ctx context.Context, fn func(*event.ProbeRecord) error) error {
	tags, err := s.readTags(ctx)
	if err != nil {
		return err
	}
	l1, err := s.readL1(ctx)
	if err != nil {
		return err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, process_id, run, luminosity_block, event,
		deterministic_seed, n_probes, n_muon, mc_weight, probe_index, pt, eta, phi, mass, charge
		FROM probes ORDER BY id`)
	if err != nil {
		return fmt.Errorf("failed to query probes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, eventID, seed int64
			weight            sql.NullFloat64
			rec               event.ProbeRecord
		)
		if err := rows.Scan(&id, &rec.ProcessID, &rec.Run, &rec.LuminosityBlock, &eventID,
			&seed, &rec.NProbes, &rec.NMuon, &weight, &rec.ProbeIndex,
			&rec.Pt, &rec.Eta, &rec.Phi, &rec.Mass, &rec.Charge); err != nil {
			return fmt.Errorf("failed to scan probe: %w", err)
		}
		rec.EventID = uint64(eventID)
		rec.DeterministicSeed = uint64(seed)
		if weight.Valid {
			w := weight.Float64
			rec.MCWeight = &w
		}
		rec.Tags = tags[id]
		if rec.Tags == nil {
			rec.Tags = []event.TagRecord{}
		}
		rec.L1 = l1[id]
		if rec.L1 == nil {
			rec.L1 = []event.L1Record{}
		}
		if err := fn(&rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *SQLiteSink) readTags(ctx context.Context) (map[int64][]event.TagRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT probe_id, pt, eta, phi, mass, dr, m_inv FROM probe_tags ORDER BY probe_id, idx`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]event.TagRecord)
	for rows.Next() {
		var (
			id int64
			t  event.TagRecord
		)
		if err := rows.Scan(&id, &t.Pt, &t.Eta, &t.Phi, &t.Mass, &t.DR, &t.MInv); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		out[id] = append(out[id], t)
	}
	return out, rows.Err()
}

func (s *SQLiteSink) readL1(ctx context.Context) (map[int64][]event.L1Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT probe_id, pt, eta, phi, mass, hw_qual, bx, dr FROM probe_l1 ORDER BY probe_id, idx`)
	if err != nil {
		return nil, fmt.Errorf("failed to query l1: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]event.L1Record)
	for rows.Next() {
		var (
			id int64
			m  event.L1Record
		)
		if err := rows.Scan(&id, &m.Pt, &m.Eta, &m.Phi, &m.Mass, &m.HwQual, &m.Bx, &m.DR); err != nil {
			return nil, fmt.Errorf("failed to scan l1: %w", err)
		}
		out[id] = append(out[id], m)
	}
	return out, rows.Err()
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
