package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolbond/core"
	"github.com/trezcool/schoolbond/core/school"
)

const schoolColumns = "id, name, district, city, state, created_at"

// orderable school columns; values are SQL expressions
var schoolOrderings = map[string]string{
	"name":       "LOWER(name)",
	"district":   "LOWER(district)",
	"city":       "LOWER(city)",
	"state":      "LOWER(state)",
	"created_at": "created_at",
}

type schoolRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	District  string    `db:"district"`
	City      string    `db:"city"`
	State     string    `db:"state"`
	CreatedAt time.Time `db:"created_at"`
}

func (row schoolRow) school() school.School {
	return school.School{
		ID:        row.ID,
		Name:      row.Name,
		District:  row.District,
		City:      row.City,
		State:     row.State,
		CreatedAt: row.CreatedAt.UTC(),
	}
}

func toSchools(rows []schoolRow) []school.School {
	schools := make([]school.School, 0, len(rows))
	for _, row := range rows {
		schools = append(schools, row.school())
	}
	return schools
}

type schoolRepository struct {
	db *sqlx.DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *sqlx.DB) *schoolRepository {
	return &schoolRepository{db: db}
}

func (repo *schoolRepository) getBy(ctx context.Context, where string, arg interface{}) (school.School, error) {
	var row schoolRow
	q := repo.db.Rebind("SELECT " + schoolColumns + " FROM schools WHERE " + where + " ORDER BY created_at, id LIMIT 1")
	if err := repo.db.GetContext(ctx, &row, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return school.School{}, school.ErrNotFound
		}
		return school.School{}, errors.Wrap(err, "selecting school")
	}
	return row.school(), nil
}

func (repo *schoolRepository) CreateSchool(ctx context.Context, sch school.School) (school.School, error) {
	sch.ID = newID()
	sch.CreatedAt = dbTime(sch.CreatedAt)

	q := "INSERT INTO schools (" + schoolColumns + ") VALUES (:id, :name, :district, :city, :state, :created_at)"
	row := schoolRow{
		ID:        sch.ID,
		Name:      sch.Name,
		District:  sch.District,
		City:      sch.City,
		State:     sch.State,
		CreatedAt: sch.CreatedAt,
	}
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return school.School{}, errors.Wrap(err, "inserting school")
	}
	return sch, nil
}

func (repo *schoolRepository) GetSchoolByID(ctx context.Context, id string) (school.School, error) {
	return repo.getBy(ctx, "id = ?", id)
}

func (repo *schoolRepository) GetSchoolByName(ctx context.Context, name string) (school.School, error) {
	return repo.getBy(ctx, "LOWER(name) = ?", strings.ToLower(name))
}

func (repo *schoolRepository) SearchSchools(ctx context.Context, query string, limit int) ([]school.School, error) {
	pattern := containsPattern(strings.ToLower(query))
	q := "SELECT " + schoolColumns + " FROM schools" +
		` WHERE LOWER(name) LIKE ? ESCAPE '\' OR LOWER(district) LIKE ? ESCAPE '\'` +
		` OR LOWER(city) LIKE ? ESCAPE '\' OR LOWER(state) LIKE ? ESCAPE '\'` +
		" ORDER BY created_at, id"
	args := []interface{}{pattern, pattern, pattern, pattern}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []schoolRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "searching schools")
	}
	return toSchools(rows), nil
}

func (repo *schoolRepository) QuerySchools(ctx context.Context, ordering []core.DBOrdering) ([]school.School, error) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "name", Ascending: true}}
	}
	orderBy := make([]string, 0, len(ordering)+2)
	for _, ord := range ordering {
		expr, ok := schoolOrderings[ord.Field]
		if !ok {
			return nil, errors.Errorf("unknown school ordering field %q", ord.Field)
		}
		orderBy = append(orderBy, core.DBOrdering{Field: expr, Ascending: ord.Ascending}.String())
	}
	orderBy = append(orderBy, "created_at ASC", "id ASC")

	var rows []schoolRow
	q := "SELECT " + schoolColumns + " FROM schools ORDER BY " + strings.Join(orderBy, ", ")
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying schools")
	}
	return toSchools(rows), nil
}

func (repo *schoolRepository) UpdateSchool(ctx context.Context, sch school.School) (school.School, error) {
	q := "UPDATE schools SET name = :name, district = :district, city = :city, state = :state WHERE id = :id"
	res, err := repo.db.NamedExecContext(ctx, q, schoolRow{
		ID:       sch.ID,
		Name:     sch.Name,
		District: sch.District,
		City:     sch.City,
		State:    sch.State,
	})
	if err != nil {
		return school.School{}, errors.Wrap(err, "updating school")
	}
	if n, err := res.RowsAffected(); err != nil {
		return school.School{}, errors.Wrap(err, "updating school")
	} else if n == 0 {
		return school.School{}, school.ErrNotFound
	}
	return repo.GetSchoolByID(ctx, sch.ID)
}

// DeleteSchool removes the school; its users (and their records) and score snapshots cascade.
func (repo *schoolRepository) DeleteSchool(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind("DELETE FROM schools WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting school")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "deleting school")
	}
	if n == 0 {
		return school.ErrNotFound
	}
	return nil
}
