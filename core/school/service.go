package school

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/schoolbond/core"
)

var (
	NowFunc = func() time.Time { return time.Now().UTC() } // mockable

	// errors
	ErrNotFound         = core.NewNotFoundError("school")
	ErrInvalidCSVHeader = core.NewValidationError(errors.New("CSV header must contain name, district, city and state"))

	csvColumns = []string{"name", "district", "city", "state"}
)

type (
	Repository interface {
		CreateSchool(ctx context.Context, sch School) (School, error)
		GetSchoolByID(ctx context.Context, id string) (School, error)
		// GetSchoolByName does a case-insensitive exact match on School.Name.
		GetSchoolByName(ctx context.Context, name string) (School, error)
		// SearchSchools does a case-insensitive substring match on name, district, city or state.
		// A limit <= 0 returns every match.
		SearchSchools(ctx context.Context, query string, limit int) ([]School, error)
		QuerySchools(ctx context.Context, ordering []core.DBOrdering) ([]School, error)
		UpdateSchool(ctx context.Context, sch School) (School, error)
		DeleteSchool(ctx context.Context, id string) error
	}

	Service struct {
		repo        Repository
		logger      core.Logger
		validate    *validator.Validate
		translator  ut.Translator
		searchLimit int
	}
)

func NewService(
	repo Repository,
	logger core.Logger,
	validate *validator.Validate,
	translator ut.Translator,
	conf *core.Config,
) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(logger, "logger"),
		vala.IsNotNil(validate, "validate"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	limit := conf.Survey.SearchLimit
	if limit <= 0 {
		limit = 10
	}
	return &Service{
		repo:        repo,
		logger:      logger,
		validate:    validate,
		translator:  translator,
		searchLimit: limit,
	}
}

func (svc *Service) create(ctx context.Context, ns NewSchool) (School, error) {
	sch, err := svc.repo.CreateSchool(ctx, School{
		Name:      ns.Name,
		District:  ns.District,
		City:      ns.City,
		State:     ns.State,
		CreatedAt: NowFunc(),
	})
	if err != nil {
		return School{}, errors.Wrap(err, "creating school")
	}
	svc.logger.Info(fmt.Sprintf("school created: %s (%s)", sch.Name, sch.ID))
	return sch, nil
}

// Register returns the school whose name matches ns.Name (case-insensitive) or creates a new one.
// The returned bool is true when the school was created.
func (svc *Service) Register(ctx context.Context, ns NewSchool) (School, bool, error) {
	if err := ns.Validate(svc.validate, svc.translator); err != nil {
		return School{}, false, err
	}

	sch, err := svc.repo.GetSchoolByName(ctx, ns.Name)
	switch {
	case err == nil:
		return sch, false, nil
	case errors.Cause(err) != ErrNotFound:
		return School{}, false, errors.Wrap(err, "finding school by name")
	}

	sch, err = svc.create(ctx, ns)
	if err != nil {
		return School{}, false, err
	}
	return sch, true, nil
}

// Create adds a school without checking for name duplicates (admin flow).
func (svc *Service) Create(ctx context.Context, ns NewSchool) (School, error) {
	if err := ns.Validate(svc.validate, svc.translator); err != nil {
		return School{}, err
	}
	return svc.create(ctx, ns)
}

func (svc *Service) GetByID(ctx context.Context, id string) (School, error) {
	return svc.repo.GetSchoolByID(ctx, id)
}

// Search returns the schools matching `query`, most similar names first, capped at the search limit.
func (svc *Service) Search(ctx context.Context, query string) ([]School, error) {
	query = core.CleanString(query)
	if query == "" {
		return []School{}, nil
	}

	schools, err := svc.repo.SearchSchools(ctx, query, 0)
	if err != nil {
		return nil, errors.Wrap(err, "searching schools")
	}

	rankBySimilarity(schools, query)
	if len(schools) > svc.searchLimit {
		schools = schools[:svc.searchLimit]
	}
	return schools, nil
}

func (svc *Service) Query(ctx context.Context, ordering []core.DBOrdering) ([]School, error) {
	if err := core.CheckOrdering(ordering, OrderingFields...); err != nil {
		return nil, err
	}
	return svc.repo.QuerySchools(ctx, ordering)
}

func (svc *Service) Update(ctx context.Context, id string, us UpdateSchool) (School, error) {
	if err := us.Validate(svc.validate, svc.translator); err != nil {
		return School{}, err
	}
	sch, err := svc.repo.GetSchoolByID(ctx, id)
	if err != nil {
		return School{}, err
	}
	return svc.repo.UpdateSchool(ctx, us.apply(sch))
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	if err := svc.repo.DeleteSchool(ctx, id); err != nil {
		return err
	}
	svc.logger.Info(fmt.Sprintf("school deleted: %s", id))
	return nil
}

// errInvalidRow reports a bulk row that could not be decoded into a school.
var errInvalidRow = errors.New("invalid data format")

// bulkRow is one pending row of a bulk import; rows with decodeErr set are reported without being created.
type bulkRow struct {
	school    NewSchool
	raw       interface{}
	decodeErr error
}

// BulkCreate validates and creates every row independently: a failing row does not abort the batch.
func (svc *Service) BulkCreate(ctx context.Context, rows []NewSchool) ([]BulkResult, error) {
	pending := make([]bulkRow, 0, len(rows))
	for _, row := range rows {
		pending = append(pending, bulkRow{school: row, raw: row})
	}
	return svc.createRows(ctx, pending), nil
}

// BulkCreateJSON decodes each row separately so a malformed row fails alone, echoing its raw value.
func (svc *Service) BulkCreateJSON(ctx context.Context, rows []json.RawMessage) ([]BulkResult, error) {
	pending := make([]bulkRow, 0, len(rows))
	for _, raw := range rows {
		row := bulkRow{raw: raw}
		if err := json.Unmarshal(raw, &row.school); err != nil {
			row.decodeErr = errInvalidRow
		} else {
			row.raw = row.school
		}
		pending = append(pending, row)
	}
	return svc.createRows(ctx, pending), nil
}

func (svc *Service) createRows(ctx context.Context, rows []bulkRow) []BulkResult {
	results := make([]BulkResult, 0, len(rows))
	var created int
	for _, row := range rows {
		if row.decodeErr != nil {
			results = append(results, BulkResult{Success: false, Error: row.decodeErr.Error(), Data: row.raw})
			continue
		}
		sch, err := svc.Create(ctx, row.school)
		if err != nil {
			if !core.IsValidationError(err) {
				svc.logger.Error("bulk school import failed", errors.Wrap(err, "creating school"))
			}
			results = append(results, BulkResult{Success: false, Error: err.Error(), Data: row.raw})
			continue
		}
		created++
		results = append(results, BulkResult{Success: true, School: &sch})
	}

	svc.logger.Info(fmt.Sprintf("bulk school import: %d/%d created", created, len(rows)))
	return results
}

// ImportCSV reads schools from a CSV document whose header names the name, district, city and state
// columns (in any order). Rows with a missing field are reported as failures.
func (svc *Service) ImportCSV(ctx context.Context, r io.Reader) ([]BulkResult, error) {
	rows, err := ParseCSV(r)
	if err != nil {
		return nil, err
	}
	return svc.BulkCreate(ctx, rows)
}

// ParseCSV maps the records of a CSV document to NewSchool rows using its header line.
func ParseCSV(r io.Reader) ([]NewSchool, error) {
	rdr := csv.NewReader(r)
	rdr.FieldsPerRecord = -1
	rdr.TrimLeadingSpace = true

	header, err := rdr.Read()
	if err == io.EOF {
		return nil, ErrInvalidCSVHeader
	}
	if err != nil {
		return nil, core.NewValidationError(errors.Wrap(err, "reading CSV header"))
	}

	idx := make(map[string]int, len(csvColumns))
	for i, col := range header {
		idx[core.CleanString(strings.TrimPrefix(col, "\ufeff"), true /* lower */)] = i
	}
	for _, col := range csvColumns {
		if _, ok := idx[col]; !ok {
			return nil, ErrInvalidCSVHeader
		}
	}

	field := func(rec []string, col string) string {
		if i := idx[col]; i < len(rec) {
			return core.CleanString(rec[i])
		}
		return ""
	}

	var rows []NewSchool
	for {
		rec, err := rdr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, core.NewValidationError(errors.Wrap(err, "reading CSV"))
		}
		if len(rec) == 1 && core.CleanString(rec[0]) == "" {
			continue // blank line
		}
		rows = append(rows, NewSchool{
			Name:     field(rec, "name"),
			District: field(rec, "district"),
			City:     field(rec, "city"),
			State:    field(rec, "state"),
		})
	}
	return rows, nil
}

// rankBySimilarity sorts `schools` by decreasing name similarity to `query`, then by name.
func rankBySimilarity(schools []School, query string) {
	q := strings.Split(strings.ToLower(query), "")
	ratios := make(map[string]float64, len(schools))
	for _, sch := range schools {
		m := difflib.NewMatcher(q, strings.Split(strings.ToLower(sch.Name), ""))
		ratios[sch.ID] = m.Ratio()
	}
	sort.SliceStable(schools, func(i, j int) bool {
		ri, rj := ratios[schools[i].ID], ratios[schools[j].ID]
		if ri != rj {
			return ri > rj
		}
		return strings.ToLower(schools[i].Name) < strings.ToLower(schools[j].Name)
	})
}
