package echoapi

import (
	"encoding/json"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/schoolbond/core"
	"github.com/trezcool/schoolbond/core/school"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads a comma separated field list from the ordering query param; a "-" prefix sorts descending.
func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

type (
	registerSchoolResponse struct {
		School school.School `json:"school"`
		IsNew  bool          `json:"isNew"`
	}

	canTakeAssessmentResponse struct {
		CanTakeAssessment bool `json:"canTakeAssessment"`
	}

	assessmentCountResponse struct {
		AssessmentCount int `json:"assessmentCount"`
	}

	adminAuthRequest struct {
		AccessCode string `json:"accessCode"`
	}

	adminAuthResponse struct {
		Authenticated bool   `json:"authenticated"`
		Token         string `json:"token"`
	}

	bulkUploadRequest struct {
		Schools *[]json.RawMessage `json:"schools"`
	}

	bulkUploadResponse struct {
		Results []school.BulkResult `json:"results"`
	}

	messageResponse struct {
		Message string `json:"message"`
	}
)
