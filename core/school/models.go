package school

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/schoolbond/core"
)

// Orderable fields of School (admin listing).
var OrderingFields = []string{"name", "district", "city", "state", "created_at"}

type School struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	District  string    `json:"district"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"createdAt"` // UTC
}

// NewSchool contains information needed to create a new School.
type NewSchool struct {
	Name     string `json:"name" validate:"required,notblank,max=255"`
	District string `json:"district" validate:"required,notblank,max=255"`
	City     string `json:"city" validate:"required,notblank,max=255"`
	State    string `json:"state" validate:"required,notblank,max=100"`
}

func (ns *NewSchool) clean() {
	ns.Name = core.CleanString(ns.Name)
	ns.District = core.CleanString(ns.District)
	ns.City = core.CleanString(ns.City)
	ns.State = core.CleanString(ns.State)
}

func (ns *NewSchool) Validate(validate *validator.Validate, translator ut.Translator) error {
	ns.clean()
	return core.ValidateStruct(validate, translator, ns)
}

// UpdateSchool defines what information may be provided to modify an existing School.
// Nil fields are left unchanged.
type UpdateSchool struct {
	Name     *string `json:"name" validate:"omitempty,max=255"`
	District *string `json:"district" validate:"omitempty,max=255"`
	City     *string `json:"city" validate:"omitempty,max=255"`
	State    *string `json:"state" validate:"omitempty,max=100"`
}

func (us *UpdateSchool) Validate(validate *validator.Validate, translator ut.Translator) error {
	fields := []struct {
		name string
		val  *string
	}{
		{"name", us.Name},
		{"district", us.District},
		{"city", us.City},
		{"state", us.State},
	}

	// omitempty would skip a blank value behind a set pointer
	var blank []core.FieldError
	for _, fld := range fields {
		if fld.val == nil {
			continue
		}
		*fld.val = core.CleanString(*fld.val)
		if *fld.val == "" {
			blank = append(blank, core.FieldError{Field: fld.name, Error: core.NotBlankText})
		}
	}
	if len(blank) > 0 {
		return core.NewValidationError(nil, blank...)
	}
	return core.ValidateStruct(validate, translator, us)
}

// apply copies the set fields of `us` onto `sch`.
func (us UpdateSchool) apply(sch School) School {
	if us.Name != nil {
		sch.Name = *us.Name
	}
	if us.District != nil {
		sch.District = *us.District
	}
	if us.City != nil {
		sch.City = *us.City
	}
	if us.State != nil {
		sch.State = *us.State
	}
	return sch
}

// BulkResult reports the outcome of one row of a bulk school import.
type BulkResult struct {
	Success bool        `json:"success"`
	School  *School     `json:"school,omitempty"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}
