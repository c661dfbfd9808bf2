package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ForeFoldAi/eye-care-api/internal/platform/apperr"
	"github.com/ForeFoldAi/eye-care-api/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

// NewRepoPG returns a Postgres-backed appointment repository.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	if q := db.QuerierFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

const apptColumns = `id, patient_id, doctor_id, hospital_id, branch_id, starts_at,
	type, status, token_number, day_of_week, slot_start, slot_end, notes, booked_by, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.HospitalID, &a.BranchID,
		&a.StartsAt, &a.Type, &a.Status, &a.TokenNumber, &a.DayOfWeek, &a.SlotStart, &a.SlotEnd,
		&a.Notes, &a.BookedBy, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repoPG) Create(ctx context.Context, appt *Appointment) error {
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment (id, patient_id, doctor_id, hospital_id, branch_id,
			starts_at, type, status, token_number, day_of_week, slot_start, slot_end, notes, booked_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at`,
		appt.ID, appt.PatientID, appt.DoctorID, appt.HospitalID, appt.BranchID,
		appt.StartsAt, appt.Type, appt.Status, appt.TokenNumber, appt.DayOfWeek,
		appt.SlotStart, appt.SlotEnd, appt.Notes, appt.BookedBy)
	if err := row.Scan(&appt.CreatedAt, &appt.UpdatedAt); err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptColumns+` FROM appointment WHERE id = $1`, id)
	appt, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("appointment %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE appointment SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, status)
	if err != nil {
		return fmt.Errorf("update appointment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("appointment %s not found", id)
	}
	return nil
}

// Search filters appointments by the given params. Recognized keys:
// hospital_id, branch_id, doctor_id, patient_id, status, date (on the
// calendar day of starts_at). Unknown keys are ignored.
func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	n := 0

	eq := map[string]string{
		"hospital_id": "hospital_id",
		"branch_id":   "branch_id",
		"doctor_id":   "doctor_id",
		"patient_id":  "patient_id",
		"status":      "status",
	}
	for key, col := range eq {
		if v, ok := params[key]; ok && v != "" {
			n++
			where = append(where, fmt.Sprintf("%s = $%d", col, n))
			args = append(args, v)
		}
	}
	if v, ok := params["date"]; ok && v != "" {
		n++
		where = append(where, fmt.Sprintf("starts_at::date = $%d", n))
		args = append(args, v)
	}

	cond := strings.Join(where, " AND ")

	var total int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM appointment WHERE `+cond, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM appointment WHERE %s
		ORDER BY starts_at DESC LIMIT $%d OFFSET $%d`, apptColumns, cond, n+1, n+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search appointments: %w", err)
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan appointment: %w", err)
		}
		out = append(out, appt)
	}
	return out, total, rows.Err()
}
