package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolbond/core/survey"
)

type surveyApi struct {
	svc *survey.Service
}

func registerSurveyAPI(g *echo.Group, svc *survey.Service) {
	api := surveyApi{svc: svc}

	ug := g.Group("/users")
	ug.POST("", api.createUser)
	ug.GET("/access-code/:code", api.retrieveUserByAccessCode)
	ug.GET("/:id", api.retrieveUser)
	ug.GET("/:id/can-take-assessment", api.canTakeAssessment)
	ug.GET("/:id/responses", api.userResponses)
	ug.GET("/:id/micro-ritual-completions", api.userCompletions)
	ug.GET("/:id/micro-ritual-attempts", api.userAttempts)

	g.GET("/questions/:role", api.questions)
	g.POST("/assessments", api.submitAssessment)

	mg := g.Group("/micro-rituals")
	mg.GET("", api.microRituals)
	mg.GET("/category/:category", api.microRitualsByCategory)
	mg.GET("/role/:role", api.microRitualsByRole)

	g.POST("/micro-ritual-completions", api.completeMicroRitual)
	g.POST("/micro-ritual-attempts", api.recordMicroRitualAttempt)
}

// Users

func (api *surveyApi) createUser(ctx echo.Context) error {
	var data survey.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}

	usr, err := api.svc.RegisterUser(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *surveyApi) retrieveUser(ctx echo.Context) error {
	usr, err := api.svc.GetUser(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *surveyApi) retrieveUserByAccessCode(ctx echo.Context) error {
	usr, err := api.svc.GetUserByAccessCode(ctx.Request().Context(), ctx.Param("code"))
	if err != nil {
		return errors.Wrap(err, "finding user by access code")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *surveyApi) canTakeAssessment(ctx echo.Context) error {
	canTake, err := api.svc.CanTakeAssessment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "checking assessment eligibility")
	}
	return ctx.JSON(http.StatusOK, canTakeAssessmentResponse{CanTakeAssessment: canTake})
}

func (api *surveyApi) userResponses(ctx echo.Context) error {
	responses, err := api.svc.ResponsesByUser(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting user responses")
	}
	return ctx.JSON(http.StatusOK, responses)
}

func (api *surveyApi) userCompletions(ctx echo.Context) error {
	completions, err := api.svc.CompletionsByUser(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting user micro ritual completions")
	}
	return ctx.JSON(http.StatusOK, completions)
}

func (api *surveyApi) userAttempts(ctx echo.Context) error {
	attempts, err := api.svc.AttemptsByUser(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting user micro ritual attempts")
	}
	return ctx.JSON(http.StatusOK, attempts)
}

// Assessments

func (api *surveyApi) questions(ctx echo.Context) error {
	questions, err := api.svc.QuestionsByRole(ctx.Request().Context(), ctx.Param("role"))
	if err != nil {
		return errors.Wrap(err, "getting questions")
	}
	return ctx.JSON(http.StatusOK, questions)
}

func (api *surveyApi) submitAssessment(ctx echo.Context) error {
	var data survey.NewAssessment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssessment")
	}

	res, err := api.svc.SubmitAssessment(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "submitting assessment")
	}
	return ctx.JSON(http.StatusOK, res)
}

// Micro rituals

func (api *surveyApi) microRituals(ctx echo.Context) error {
	rituals, err := api.svc.MicroRituals(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting micro rituals")
	}
	return ctx.JSON(http.StatusOK, rituals)
}

func (api *surveyApi) microRitualsByCategory(ctx echo.Context) error {
	rituals, err := api.svc.MicroRitualsByCategory(ctx.Request().Context(), ctx.Param("category"))
	if err != nil {
		return errors.Wrap(err, "getting micro rituals by category")
	}
	return ctx.JSON(http.StatusOK, rituals)
}

func (api *surveyApi) microRitualsByRole(ctx echo.Context) error {
	rituals, err := api.svc.MicroRitualsByRole(ctx.Request().Context(), ctx.Param("role"))
	if err != nil {
		return errors.Wrap(err, "getting micro rituals by role")
	}
	return ctx.JSON(http.StatusOK, rituals)
}

func (api *surveyApi) completeMicroRitual(ctx echo.Context) error {
	var data survey.NewMicroRitualCompletion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMicroRitualCompletion")
	}

	completion, err := api.svc.CompleteMicroRitual(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "completing micro ritual")
	}
	return ctx.JSON(http.StatusCreated, completion)
}

func (api *surveyApi) recordMicroRitualAttempt(ctx echo.Context) error {
	var data survey.NewMicroRitualAttempt
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMicroRitualAttempt")
	}

	attempt, err := api.svc.RecordMicroRitualAttempt(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "recording micro ritual attempt")
	}
	return ctx.JSON(http.StatusCreated, attempt)
}
