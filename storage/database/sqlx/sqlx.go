// Package sqlxrepos implements the repositories on top of a postgres or sqlite3 database.
package sqlxrepos

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolbond/core/survey"
)

func newID() string {
	return uuid.New().String()
}

// dbTime normalizes t to the precision both engines store.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func isUniqueViolation(err error) bool {
	switch e := errors.Cause(err).(type) {
	case *pq.Error:
		return e.Code == "23505"
	case sqlite3.Error:
		return e.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern returns a LIKE pattern matching any string containing s.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// JSON encoded TEXT columns

func scanJSON(src interface{}, dst interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.Errorf("cannot scan %T into a JSON column", src)
	}
	return json.Unmarshal(data, dst)
}

func jsonValue(v interface{}) (driver.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

type options []survey.Option

func (o *options) Scan(src interface{}) error { return scanJSON(src, o) }

func (o options) Value() (driver.Value, error) {
	if o == nil {
		o = options{}
	}
	return jsonValue([]survey.Option(o))
}

type stringList []string

func (l *stringList) Scan(src interface{}) error { return scanJSON(src, l) }

func (l stringList) Value() (driver.Value, error) {
	if l == nil {
		l = stringList{}
	}
	return jsonValue([]string(l))
}

type scoreMap map[string]int

func (m *scoreMap) Scan(src interface{}) error { return scanJSON(src, m) }

func (m scoreMap) Value() (driver.Value, error) {
	if m == nil {
		m = scoreMap{}
	}
	return jsonValue(map[string]int(m))
}
