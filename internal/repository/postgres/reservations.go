package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tably/tably-go/internal/domain"
)

// ReservationsRepo persists confirmed reservations. Rows are created only by
// the finalizer, always out of a live hold.
type ReservationsRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *ReservationsRepo) With(db DB) *ReservationsRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *ReservationsRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Insert writes one reservation row.
//
// Returns:
//   - error: repository.ErrConflict on a duplicate (slot, table) assignment.
func (r *ReservationsRepo) Insert(ctx context.Context, res *domain.Reservation) error {
	const op = "postgres.ReservationsRepo.Insert"

	_, err := r.handle().Exec(ctx,
		`INSERT INTO reservations(
            id, user_id, slot_date, slot_time, party_size, table_ids,
            status, guest_name, guest_phone, guest_email, guest_notes,
            created_at, updated_at)
       	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		res.ID, res.UserID, res.Slot.Date, res.Slot.Time, res.PartySize,
		res.TableIDs, res.Status,
		res.Guest.Name, res.Guest.Phone, res.Guest.Email, res.Guest.Notes,
		res.CreatedAt, res.UpdatedAt,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// GetByID fetches one reservation.
func (r *ReservationsRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	const op = "postgres.ReservationsRepo.GetByID"

	var res domain.Reservation
	err := r.handle().QueryRow(ctx,
		`SELECT id, user_id, slot_date, slot_time, party_size, table_ids,
            	status, guest_name, guest_phone, guest_email, guest_notes,
            	created_at, updated_at
       	 FROM reservations
      	 WHERE id = $1`,
		id,
	).Scan(
		&res.ID, &res.UserID, &res.Slot.Date, &res.Slot.Time, &res.PartySize,
		&res.TableIDs, &res.Status,
		&res.Guest.Name, &res.Guest.Phone, &res.Guest.Email, &res.Guest.Notes,
		&res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &res, nil
}

// TableIDsForSlot returns every table covered by a confirmed reservation in
// the slot. Used to exclude confirmed-reserved tables from availability and
// from acquire.
func (r *ReservationsRepo) TableIDsForSlot(ctx context.Context, slot domain.Slot) ([]string, error) {
	const op = "postgres.ReservationsRepo.TableIDsForSlot"

	rows, err := r.handle().Query(ctx,
		`SELECT DISTINCT unnest(table_ids)
       	 FROM reservations
      	 WHERE slot_date = $1 AND slot_time = $2 AND status = 'confirmed'`,
		slot.Date, slot.Time,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrapDBErr(op, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return ids, nil
}
