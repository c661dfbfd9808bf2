package availability

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ForeFoldAi/eye-care-api/internal/platform/apperr"
	"github.com/ForeFoldAi/eye-care-api/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	if q := db.QuerierFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

const scheduleCols = `id, doctor_id, hospital_id, branch_id, day_of_week, is_active,
	added_by_user_id, added_by_role, added_by_name, created_at, updated_at`

func (r *repoPG) scanSchedule(row pgx.Row) (*WeeklySchedule, error) {
	var w WeeklySchedule
	err := row.Scan(&w.ID, &w.DoctorID, &w.HospitalID, &w.BranchID, &w.DayOfWeek, &w.IsActive,
		&w.AddedByUserID, &w.AddedByRole, &w.AddedByName, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("schedule not found")
	}
	return &w, err
}

func (r *repoPG) UpsertDay(ctx context.Context, ws *WeeklySchedule) error {
	if ws.ID == uuid.Nil {
		ws.ID = uuid.New()
	}
	conn := r.conn(ctx)

	err := conn.QueryRow(ctx, `
		INSERT INTO doctor_availability (id, doctor_id, hospital_id, branch_id, day_of_week, is_active,
			added_by_user_id, added_by_role, added_by_name)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (doctor_id, day_of_week) DO UPDATE SET
			hospital_id=EXCLUDED.hospital_id, branch_id=EXCLUDED.branch_id,
			is_active=EXCLUDED.is_active,
			added_by_user_id=EXCLUDED.added_by_user_id, added_by_role=EXCLUDED.added_by_role,
			added_by_name=EXCLUDED.added_by_name, updated_at=NOW()
		RETURNING id`,
		ws.ID, ws.DoctorID, ws.HospitalID, ws.BranchID, ws.DayOfWeek, ws.IsActive,
		ws.AddedByUserID, ws.AddedByRole, ws.AddedByName).Scan(&ws.ID)
	if err != nil {
		return err
	}

	// Full replace-by-key: drop the previous slot set before inserting the
	// new one. Claims on slots whose (start_time, end_time) identity survives
	// the replace are carried over so a re-upload cannot free live tokens.
	// The service runs this method inside a transaction.
	claimed, err := r.claimedTokens(ctx, conn, ws.ID)
	if err != nil {
		return err
	}
	if _, err := conn.Exec(ctx, `DELETE FROM availability_slot WHERE schedule_id = $1`, ws.ID); err != nil {
		return err
	}
	for i := range ws.Slots {
		sl := &ws.Slots[i]
		if sl.ID == uuid.Nil {
			sl.ID = uuid.New()
		}
		sl.BookedTokens = claimed[slotBounds{sl.StartTime, sl.EndTime}]
		if sl.BookedTokens == nil {
			sl.BookedTokens = []int{}
		}
		if _, err := conn.Exec(ctx, `
			INSERT INTO availability_slot (id, schedule_id, start_time, end_time,
				hours_available, token_count, booked_tokens)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			sl.ID, ws.ID, sl.StartTime, sl.EndTime,
			sl.HoursAvailable, sl.TokenCount, sl.BookedTokens); err != nil {
			return err
		}
	}
	return nil
}

type slotBounds struct{ start, end string }

func (r *repoPG) claimedTokens(ctx context.Context, conn db.Querier, scheduleID uuid.UUID) (map[slotBounds][]int, error) {
	rows, err := conn.Query(ctx, `
		SELECT start_time, end_time, booked_tokens
		FROM availability_slot WHERE schedule_id = $1 AND cardinality(booked_tokens) > 0`,
		scheduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	claimed := map[slotBounds][]int{}
	for rows.Next() {
		var b slotBounds
		var tokens []int
		if err := rows.Scan(&b.start, &b.end, &tokens); err != nil {
			return nil, err
		}
		claimed[b] = tokens
	}
	return claimed, rows.Err()
}

func (r *repoPG) GetDay(ctx context.Context, doctorID uuid.UUID, dayOfWeek int) (*WeeklySchedule, error) {
	w, err := r.scanSchedule(r.conn(ctx).QueryRow(ctx,
		`SELECT `+scheduleCols+` FROM doctor_availability WHERE doctor_id = $1 AND day_of_week = $2`,
		doctorID, dayOfWeek))
	if err != nil {
		return nil, err
	}
	if err := r.loadSlots(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (r *repoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*WeeklySchedule, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+scheduleCols+` FROM doctor_availability WHERE doctor_id = $1 ORDER BY day_of_week ASC`,
		doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*WeeklySchedule
	for rows.Next() {
		w, err := r.scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, w := range items {
		if err := r.loadSlots(ctx, w); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (r *repoPG) loadSlots(ctx context.Context, w *WeeklySchedule) error {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, start_time, end_time, hours_available, token_count, booked_tokens
		FROM availability_slot WHERE schedule_id = $1 ORDER BY start_time ASC`, w.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	w.Slots = []Slot{}
	for rows.Next() {
		var sl Slot
		if err := rows.Scan(&sl.ID, &sl.StartTime, &sl.EndTime,
			&sl.HoursAvailable, &sl.TokenCount, &sl.BookedTokens); err != nil {
			return err
		}
		w.Slots = append(w.Slots, sl)
	}
	return rows.Err()
}

func (r *repoPG) DeleteDay(ctx context.Context, doctorID uuid.UUID, dayOfWeek int) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM doctor_availability WHERE doctor_id = $1 AND day_of_week = $2`,
		doctorID, dayOfWeek)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("schedule not found")
	}
	return nil
}

func (r *repoPG) FindSlot(ctx context.Context, doctorID uuid.UUID, dayOfWeek int, hhmm string) (*Slot, error) {
	var sl Slot
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT s.id, s.start_time, s.end_time, s.hours_available, s.token_count, s.booked_tokens
		FROM availability_slot s
		JOIN doctor_availability a ON s.schedule_id = a.id
		WHERE a.doctor_id = $1 AND a.day_of_week = $2 AND a.is_active
		  AND s.start_time <= $3 AND s.end_time >= $3
		ORDER BY s.start_time ASC
		LIMIT 1`,
		doctorID, dayOfWeek, hhmm).Scan(&sl.ID, &sl.StartTime, &sl.EndTime,
		&sl.HoursAvailable, &sl.TokenCount, &sl.BookedTokens)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("no slot covers %s", hhmm)
	}
	if err != nil {
		return nil, err
	}
	return &sl, nil
}

// ClaimToken is the atomic guard against double booking: a single
// conditional update keyed on the slot's full identity that appends the
// token only if it is absent. Of two concurrent claims for the same token
// exactly one sees RowsAffected == 1; the loser gets false and no write.
func (r *repoPG) ClaimToken(ctx context.Context, key SlotKey, token int) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE availability_slot s
		SET booked_tokens = array_append(s.booked_tokens, $5)
		FROM doctor_availability a
		WHERE s.schedule_id = a.id
		  AND a.doctor_id = $1 AND a.day_of_week = $2
		  AND s.start_time = $3 AND s.end_time = $4
		  AND NOT ($5 = ANY(s.booked_tokens))`,
		key.DoctorID, key.DayOfWeek, key.StartTime, key.EndTime, token)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) ReleaseToken(ctx context.Context, key SlotKey, token int) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE availability_slot s
		SET booked_tokens = array_remove(s.booked_tokens, $5)
		FROM doctor_availability a
		WHERE s.schedule_id = a.id
		  AND a.doctor_id = $1 AND a.day_of_week = $2
		  AND s.start_time = $3 AND s.end_time = $4`,
		key.DoctorID, key.DayOfWeek, key.StartTime, key.EndTime, token)
	return err
}
