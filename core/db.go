package core

import (
	"fmt"

	"github.com/pkg/errors"
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// CheckOrdering rejects any ordering field that is not part of `allowed`.
func CheckOrdering(ordering []DBOrdering, allowed ...string) error {
	for _, ord := range ordering {
		var ok bool
		for _, fld := range allowed {
			if ord.Field == fld {
				ok = true
				break
			}
		}
		if !ok {
			return NewValidationError(
				errors.New("invalid ordering"),
				FieldError{Field: "ordering", Error: fmt.Sprintf("unknown field %q", ord.Field)},
			)
		}
	}
	return nil
}
