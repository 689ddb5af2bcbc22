package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/store"
	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/types"
)

type StudentStore struct {
	conn *sql.DB
}

func NewStudentStore(conn *sql.DB) *StudentStore {
	return &StudentStore{conn: conn}
}

func (s *StudentStore) Create(ctx context.Context, st types.Student) (types.Student, error) {
	now := time.Now()
	res, err := s.conn.ExecContext(ctx, `
INSERT INTO students (sid, first_name, last_name, grade, parent_email, low_balance_threshold, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?);
`, st.SID, st.FirstName, st.LastName, st.Grade, st.ParentEmail,
		st.LowBalanceThreshold.StringFixed(2), now.UnixMilli())
	if err != nil {
		return types.Student{}, fmt.Errorf("create student: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return types.Student{}, fmt.Errorf("create student id: %w", err)
	}
	st.ID = id
	st.CreatedAt = now
	return st, nil
}

const studentColumns = `id, sid, first_name, last_name, grade, parent_email, low_balance_threshold, created_at_ms`

func scanStudent(row *sql.Row) (types.Student, error) {
	var (
		st        types.Student
		grade     sql.NullString
		email     sql.NullString
		threshold string
		createdMs int64
	)
	err := row.Scan(&st.ID, &st.SID, &st.FirstName, &st.LastName, &grade, &email, &threshold, &createdMs)
	if err == sql.ErrNoRows {
		return types.Student{}, store.ErrStudentNotFound
	}
	if err != nil {
		return types.Student{}, fmt.Errorf("scan student: %w", err)
	}
	st.Grade = grade.String
	st.ParentEmail = email.String
	if st.LowBalanceThreshold, err = money(threshold); err != nil {
		return types.Student{}, err
	}
	st.CreatedAt = msToTime(createdMs)
	return st, nil
}

func (s *StudentStore) GetByID(ctx context.Context, id int64) (types.Student, error) {
	return scanStudent(s.conn.QueryRowContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE id = ?;`, id))
}

func (s *StudentStore) GetBySID(ctx context.Context, sid string) (types.Student, error) {
	return scanStudent(s.conn.QueryRowContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE sid = ?;`, sid))
}
