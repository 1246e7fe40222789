package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/unclebandit/poster-scheduler/internal/clock"
	appErrors "github.com/unclebandit/poster-scheduler/internal/errors"
	"github.com/unclebandit/poster-scheduler/internal/model"
)

type ScheduleRepositoryInterface interface {
	InsertMany(ctx context.Context, records []model.Schedule) ([]model.Schedule, error)
	FindPending(ctx context.Context) iter.Seq2[model.Schedule, error]
	UpdateStatus(ctx context.Context, id string, status model.ScheduleStatus, lastError string) error
	DeleteByID(ctx context.Context, id string) error
	FindByCustomer(ctx context.Context, customerID string) ([]model.Schedule, error)
	FindAll(ctx context.Context, filter model.ScheduleFilter) ([]model.Schedule, int, error)
	Ping(ctx context.Context) error
}

type ScheduleRepository struct {
	DB *sql.DB
}

const selectJoined = `
    SELECT s.id, s.customer_id, s.poster_id, s.category, s.date, s.time, s.status,
           s.selected_poster_urls, s.last_error, s.created_at, s.updated_at,
           c.id, c.company_name, c.whatsapp,
           p.id, p.title
    FROM schedules s
    LEFT JOIN customers c ON c.id = s.customer_id
    LEFT JOIN posters p ON p.id = s.poster_id
`

// ====================== Writes ======================

// InsertMany stores the whole batch in one transaction or nothing at all.
func (r *ScheduleRepository) InsertMany(ctx context.Context, records []model.Schedule) ([]model.Schedule, error) {
	if len(records) == 0 {
		return nil, appErrors.NewPersistence("insert schedules", errors.New("empty batch"))
	}
	out := make([]model.Schedule, len(records))
	for i, rec := range records {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.Status == "" {
			rec.Status = model.StatusPending
		}
		if rec.SelectedPosterURLs == nil {
			rec.SelectedPosterURLs = []string{}
		}
		if err := ValidateSchedule(rec); err != nil {
			return nil, appErrors.NewPersistence("insert schedules", fmt.Errorf("record %d: %w", i, err))
		}
		out[i] = rec
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, appErrors.NewPersistence("begin insert", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO schedules (id, customer_id, poster_id, category, date, time, status, selected_poster_urls, last_error, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, '', NOW(), NOW())
        RETURNING created_at, updated_at
    `)
	if err != nil {
		return nil, appErrors.NewPersistence("prepare insert", err)
	}
	defer stmt.Close()

	for i := range out {
		rec := &out[i]
		err := stmt.QueryRowContext(ctx,
			rec.ID, rec.CustomerID, rec.PosterID, rec.Category, rec.Date, rec.Time,
			string(rec.Status), pq.Array(rec.SelectedPosterURLs),
		).Scan(&rec.CreatedAt, &rec.UpdatedAt)
		if err != nil {
			return nil, appErrors.NewPersistence("insert schedule", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, appErrors.NewPersistence("commit insert", err)
	}
	return out, nil
}

// UpdateStatus moves a Pending record to a terminal status. Terminal records
// are never rewritten.
func (r *ScheduleRepository) UpdateStatus(ctx context.Context, id string, status model.ScheduleStatus, lastError string) error {
	if !status.Terminal() {
		return appErrors.NewTransition(id, string(model.StatusPending), string(status))
	}
	if _, err := uuid.Parse(id); err != nil {
		return appErrors.NewNotFound("schedule", id)
	}

	res, err := r.DB.ExecContext(ctx,
		`UPDATE schedules SET status=$1, last_error=$2, updated_at=NOW() WHERE id=$3 AND status=$4`,
		string(status), lastError, id, string(model.StatusPending),
	)
	if err != nil {
		return appErrors.NewPersistence("update status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return appErrors.NewPersistence("update status", err)
	}
	if n == 1 {
		return nil
	}

	var current string
	err = r.DB.QueryRowContext(ctx, `SELECT status FROM schedules WHERE id=$1`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.NewNotFound("schedule", id)
		}
		return appErrors.NewPersistence("update status", err)
	}
	return appErrors.NewTransition(id, current, string(status))
}

func (r *ScheduleRepository) DeleteByID(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return appErrors.NewNotFound("schedule", id)
	}
	res, err := r.DB.ExecContext(ctx, `DELETE FROM schedules WHERE id=$1`, id)
	if err != nil {
		return appErrors.NewPersistence("delete schedule", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return appErrors.NewPersistence("delete schedule", err)
	}
	if n == 0 {
		return appErrors.NewNotFound("schedule", id)
	}
	return nil
}

// ====================== Reads ======================

// FindPending streams Pending records joined with customer and poster. Each
// call runs a fresh query; iteration stops at the first error.
func (r *ScheduleRepository) FindPending(ctx context.Context) iter.Seq2[model.Schedule, error] {
	return func(yield func(model.Schedule, error) bool) {
		rows, err := r.DB.QueryContext(ctx,
			selectJoined+` WHERE s.status=$1 ORDER BY s.date, s.time, s.created_at`,
			string(model.StatusPending),
		)
		if err != nil {
			yield(model.Schedule{}, appErrors.NewPersistence("find pending", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			s, err := scanJoined(rows)
			if err != nil {
				yield(model.Schedule{}, appErrors.NewPersistence("scan pending", err))
				return
			}
			if !yield(s, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(model.Schedule{}, appErrors.NewPersistence("find pending", err))
		}
	}
}

func (r *ScheduleRepository) FindByCustomer(ctx context.Context, customerID string) ([]model.Schedule, error) {
	schedules, _, err := r.FindAll(ctx, model.ScheduleFilter{CustomerID: customerID})
	return schedules, err
}

// FindAll lists records newest first with optional status/customer filters.
// Limit 0 returns everything. The second result is the unpaginated count.
func (r *ScheduleRepository) FindAll(ctx context.Context, filter model.ScheduleFilter) ([]model.Schedule, int, error) {
	where, args := buildWhere(filter)

	query := selectJoined + where + ` ORDER BY s.created_at DESC, s.id`
	argPos := len(args) + 1
	pageArgs := append([]interface{}{}, args...)
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argPos, argPos+1)
		pageArgs = append(pageArgs, filter.Limit, filter.Offset)
	}

	rows, err := r.DB.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		return nil, 0, appErrors.NewPersistence("list schedules", err)
	}
	defer rows.Close()

	schedules := []model.Schedule{}
	for rows.Next() {
		s, err := scanJoined(rows)
		if err != nil {
			return nil, 0, appErrors.NewPersistence("scan schedule", err)
		}
		schedules = append(schedules, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, appErrors.NewPersistence("list schedules", err)
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM schedules s`+where, args...).Scan(&total); err != nil {
		return nil, 0, appErrors.NewPersistence("count schedules", err)
	}
	return schedules, total, nil
}

func (r *ScheduleRepository) Ping(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}

// ====================== Helpers ======================

// ValidateSchedule is the schema check applied to every record before insert.
func ValidateSchedule(s model.Schedule) error {
	var problems []string
	if strings.TrimSpace(s.CustomerID) == "" {
		problems = append(problems, "customerId is required")
	}
	if strings.TrimSpace(s.PosterID) == "" {
		problems = append(problems, "posterId is required")
	}
	if strings.TrimSpace(s.Category) == "" {
		problems = append(problems, "category is required")
	}
	if !clock.ValidCivil(s.Date, s.Time) {
		problems = append(problems, fmt.Sprintf("date/time %q %q is not YYYY-MM-DD HH:mm", s.Date, s.Time))
	}
	if !s.Status.Valid() {
		problems = append(problems, fmt.Sprintf("unknown status %q", s.Status))
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func buildWhere(filter model.ScheduleFilter) (string, []interface{}) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	argPos := 1
	if filter.Status != "" {
		where += fmt.Sprintf(" AND s.status=$%d", argPos)
		args = append(args, string(filter.Status))
		argPos++
	}
	if filter.CustomerID != "" {
		where += fmt.Sprintf(" AND s.customer_id=$%d", argPos)
		args = append(args, filter.CustomerID)
	}
	return where, args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJoined(row scanner) (model.Schedule, error) {
	var (
		s                        model.Schedule
		status                   string
		custID, custName, custWA sql.NullString
		posterID, posterTitle    sql.NullString
	)
	err := row.Scan(
		&s.ID, &s.CustomerID, &s.PosterID, &s.Category, &s.Date, &s.Time, &status,
		pq.Array(&s.SelectedPosterURLs), &s.LastError, &s.CreatedAt, &s.UpdatedAt,
		&custID, &custName, &custWA,
		&posterID, &posterTitle,
	)
	if err != nil {
		return model.Schedule{}, err
	}
	s.Status = model.ScheduleStatus(status)
	if custID.Valid {
		s.Customer = &model.Customer{ID: custID.String, CompanyName: custName.String, WhatsApp: custWA.String}
	}
	if posterID.Valid {
		s.Poster = &model.Poster{ID: posterID.String, Title: posterTitle.String}
	}
	return s, nil
}

var _ ScheduleRepositoryInterface = (*ScheduleRepository)(nil)
