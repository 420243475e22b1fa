package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolbond/core/school"
	"github.com/trezcool/schoolbond/core/survey"
)

type schoolApi struct {
	svc       *school.Service
	surveySvc *survey.Service
}

func registerSchoolAPI(g *echo.Group, svc *school.Service, surveySvc *survey.Service) {
	api := schoolApi{svc: svc, surveySvc: surveySvc}

	sg := g.Group("/schools")
	sg.POST("", api.register)
	sg.GET("/search", api.search)

	// detail endpoints
	sg.GET("/:id", api.retrieve)
	sg.GET("/:id/score", api.score)
	sg.GET("/:id/score-history", api.scoreHistory)
	sg.GET("/:id/assessment-count", api.assessmentCount)
}

// Handlers

// register returns the school of the same name (case-insensitive) or creates it.
func (api *schoolApi) register(ctx echo.Context) error {
	var data school.NewSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchool")
	}

	sch, isNew, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering school")
	}

	code := http.StatusOK
	if isNew {
		code = http.StatusCreated
	}
	return ctx.JSON(code, registerSchoolResponse{School: sch, IsNew: isNew})
}

func (api *schoolApi) search(ctx echo.Context) error {
	schools, err := api.svc.Search(ctx.Request().Context(), ctx.QueryParam("q"))
	if err != nil {
		return errors.Wrap(err, "searching schools")
	}
	return ctx.JSON(http.StatusOK, schools)
}

func (api *schoolApi) retrieve(ctx echo.Context) error {
	sch, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding school by ID")
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *schoolApi) score(ctx echo.Context) error {
	score, err := api.surveySvc.LatestSchoolScore(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting latest school score")
	}
	return ctx.JSON(http.StatusOK, score)
}

func (api *schoolApi) scoreHistory(ctx echo.Context) error {
	scores, err := api.surveySvc.SchoolScoreHistory(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting school score history")
	}
	return ctx.JSON(http.StatusOK, scores)
}

func (api *schoolApi) assessmentCount(ctx echo.Context) error {
	count, err := api.surveySvc.AssessmentCount(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "counting assessments")
	}
	return ctx.JSON(http.StatusOK, assessmentCountResponse{AssessmentCount: count})
}
