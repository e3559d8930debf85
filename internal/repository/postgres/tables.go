package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tably/tably-go/internal/domain"
)

// TablesRepo reads the dining-table catalog. The catalog is owned by the
// external store; the hold system treats it as reference data.
type TablesRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *TablesRepo) With(db DB) *TablesRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *TablesRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// ListActive returns every table not soft-deleted, ordered by id.
func (r *TablesRepo) ListActive(ctx context.Context) ([]domain.DiningTable, error) {
	const op = "postgres.TablesRepo.ListActive"

	rows, err := r.handle().Query(ctx,
		`SELECT id, label, capacity, pos_x, pos_y, rotation, zone, active
       	 FROM dining_tables
      	 WHERE active
      	 ORDER BY id`,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var tables []domain.DiningTable
	for rows.Next() {
		var t domain.DiningTable
		if err := rows.Scan(
			&t.ID, &t.Label, &t.Capacity,
			&t.Position.X, &t.Position.Y, &t.Position.Rotation,
			&t.Zone, &t.Active,
		); err != nil {
			return nil, wrapDBErr(op, err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return tables, nil
}

// BatchUpsert seeds or updates catalog rows (admin surface).
func (r *TablesRepo) BatchUpsert(ctx context.Context, tables []domain.DiningTable) error {
	const op = "postgres.TablesRepo.BatchUpsert"

	batch := &pgx.Batch{}
	for _, t := range tables {
		batch.Queue(
			`INSERT INTO dining_tables(id, label, capacity, pos_x, pos_y, rotation, zone, active)
         	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
         	 ON CONFLICT (id) DO UPDATE
            	SET label = EXCLUDED.label,
                	capacity = EXCLUDED.capacity,
                	pos_x = EXCLUDED.pos_x,
                	pos_y = EXCLUDED.pos_y,
                	rotation = EXCLUDED.rotation,
                	zone = EXCLUDED.zone,
                	active = EXCLUDED.active`,
			t.ID, t.Label, t.Capacity,
			t.Position.X, t.Position.Y, t.Position.Rotation,
			t.Zone, t.Active,
		)
	}

	if err := r.handle().SendBatch(ctx, batch).Close(); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// Deactivate soft-deletes a table; existing reservations keep referencing it.
func (r *TablesRepo) Deactivate(ctx context.Context, tableID string) error {
	const op = "postgres.TablesRepo.Deactivate"

	tag, err := r.handle().Exec(ctx,
		`UPDATE dining_tables SET active = FALSE WHERE id = $1`,
		tableID,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, pgx.ErrNoRows)
	}

	return nil
}
