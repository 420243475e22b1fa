package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/schoolbond/core"
	"github.com/trezcool/schoolbond/core/school"
)

type schoolRow struct {
	seq int64
	school.School
}

type schoolRepository struct {
	db *DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) *schoolRepository {
	return &schoolRepository{db: db}
}

// query returns every school, by insertion order. The lock must be held.
func (repo *schoolRepository) query() []*schoolRow {
	rows := make([]*schoolRow, 0, len(repo.db.schools))
	for _, row := range repo.db.schools {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	return rows
}

func (repo *schoolRepository) CreateSchool(_ context.Context, sch school.School) (school.School, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var seq int64
	sch.ID, seq = repo.db.nextKey()
	sch.CreatedAt = sch.CreatedAt.UTC()
	repo.db.schools[sch.ID] = &schoolRow{seq: seq, School: sch}
	return sch, nil
}

func (repo *schoolRepository) GetSchoolByID(_ context.Context, id string) (school.School, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if row, ok := repo.db.schools[id]; ok {
		return row.School, nil
	}
	return school.School{}, school.ErrNotFound
}

func (repo *schoolRepository) GetSchoolByName(_ context.Context, name string) (school.School, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, row := range repo.query() {
		if strings.EqualFold(row.Name, name) {
			return row.School, nil
		}
	}
	return school.School{}, school.ErrNotFound
}

func (repo *schoolRepository) SearchSchools(_ context.Context, query string, limit int) ([]school.School, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	term := strings.ToLower(query)
	contains := func(s string) bool { return strings.Contains(strings.ToLower(s), term) }

	schools := make([]school.School, 0)
	for _, row := range repo.query() {
		if contains(row.Name) || contains(row.District) || contains(row.City) || contains(row.State) {
			schools = append(schools, row.School)
			if limit > 0 && len(schools) == limit {
				break
			}
		}
	}
	return schools, nil
}

func (repo *schoolRepository) QuerySchools(_ context.Context, ordering []core.DBOrdering) ([]school.School, error) {
	repo.db.mutex.RLock()
	rows := repo.query()
	repo.db.mutex.RUnlock()

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "name", Ascending: true}}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, ord := range ordering {
			if c := compareSchools(rows[i].School, rows[j].School, ord.Field); c != 0 {
				return (c < 0) == ord.Ascending
			}
		}
		return rows[i].seq < rows[j].seq
	})

	schools := make([]school.School, 0, len(rows))
	for _, row := range rows {
		schools = append(schools, row.School)
	}
	return schools, nil
}

func compareSchools(a, b school.School, field string) int {
	switch field {
	case "name":
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	case "district":
		return strings.Compare(strings.ToLower(a.District), strings.ToLower(b.District))
	case "city":
		return strings.Compare(strings.ToLower(a.City), strings.ToLower(b.City))
	case "state":
		return strings.Compare(strings.ToLower(a.State), strings.ToLower(b.State))
	case "created_at":
		switch {
		case a.CreatedAt.Before(b.CreatedAt):
			return -1
		case a.CreatedAt.After(b.CreatedAt):
			return 1
		}
	}
	return 0
}

func (repo *schoolRepository) UpdateSchool(_ context.Context, sch school.School) (school.School, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	row, ok := repo.db.schools[sch.ID]
	if !ok {
		return school.School{}, school.ErrNotFound
	}
	row.Name = sch.Name
	row.District = sch.District
	row.City = sch.City
	row.State = sch.State
	return row.School, nil
}

// DeleteSchool removes the school along with its users (and their records) and score snapshots.
func (repo *schoolRepository) DeleteSchool(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.schools[id]; !ok {
		return school.ErrNotFound
	}
	delete(repo.db.schools, id)

	for uid, usr := range repo.db.users {
		if usr.SchoolID != id {
			continue
		}
		delete(repo.db.users, uid)
		for rid, resp := range repo.db.responses {
			if resp.UserID == uid {
				delete(repo.db.responses, rid)
			}
		}
		for cid, c := range repo.db.completions {
			if c.UserID == uid {
				delete(repo.db.completions, cid)
			}
		}
		for aid, a := range repo.db.attempts {
			if a.UserID == uid {
				delete(repo.db.attempts, aid)
			}
		}
	}
	for sid, score := range repo.db.scores {
		if score.SchoolID == id {
			delete(repo.db.scores, sid)
		}
	}
	return nil
}
