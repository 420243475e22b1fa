package echoapi

import (
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolbond/core/school"
)

type adminApi struct {
	auth      *adminAuth
	schoolSvc *school.Service
}

func registerAdminAPI(g *echo.Group, auth *adminAuth, schoolSvc *school.Service) {
	api := adminApi{auth: auth, schoolSvc: schoolSvc}

	ag := g.Group("/admin")
	ag.POST("/auth", api.authenticate)

	sg := ag.Group("/schools", auth.jwtMiddleware(), auth.adminMiddleware())
	sg.GET("", api.listSchools)
	sg.POST("", api.createSchool)
	sg.POST("/bulk-upload", api.bulkUpload)
	sg.POST("/import", api.importCSV)
	sg.PUT("/:id", api.updateSchool)
	sg.DELETE("/:id", api.deleteSchool)
}

func (api *adminApi) authenticate(ctx echo.Context) error {
	var data adminAuthRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to adminAuthRequest")
	}

	if !api.auth.checkCode(strings.TrimSpace(data.AccessCode)) {
		return errInvalidAccessCode
	}

	token, err := api.auth.GenerateToken(api.auth.newClaims())
	if err != nil {
		return errors.Wrap(err, "generating admin token")
	}
	return ctx.JSON(http.StatusOK, adminAuthResponse{Authenticated: true, Token: token})
}

func (api *adminApi) listSchools(ctx echo.Context) error {
	var ord Ordering
	ord.Bind(ctx)

	schools, err := api.schoolSvc.Query(ctx.Request().Context(), ord.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying schools")
	}
	return ctx.JSON(http.StatusOK, schools)
}

func (api *adminApi) createSchool(ctx echo.Context) error {
	var data school.NewSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchool")
	}

	sch, err := api.schoolSvc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating school")
	}
	return ctx.JSON(http.StatusCreated, sch)
}

func (api *adminApi) updateSchool(ctx echo.Context) error {
	var data school.UpdateSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSchool")
	}

	sch, err := api.schoolSvc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating school")
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *adminApi) deleteSchool(ctx echo.Context) error {
	if err := api.schoolSvc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting school")
	}
	return ctx.JSON(http.StatusOK, messageResponse{Message: "School deleted successfully"})
}

func (api *adminApi) bulkUpload(ctx echo.Context) error {
	var data bulkUploadRequest
	if err := ctx.Bind(&data); err != nil {
		return errInvalidDataFormat
	}
	if data.Schools == nil {
		return errInvalidDataFormat
	}

	results, err := api.schoolSvc.BulkCreateJSON(ctx.Request().Context(), *data.Schools)
	if err != nil {
		return errors.Wrap(err, "bulk creating schools")
	}
	return ctx.JSON(http.StatusOK, bulkUploadResponse{Results: results})
}

// importCSV accepts either a multipart "file" field or a raw text/csv body.
func (api *adminApi) importCSV(ctx echo.Context) error {
	var body io.Reader = ctx.Request().Body
	if strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, err := ctx.FormFile("file")
		if err != nil {
			return errInvalidDataFormat
		}
		file, err := fh.Open()
		if err != nil {
			return errors.Wrap(err, "opening uploaded file")
		}
		defer file.Close()
		body = file
	}

	results, err := api.schoolSvc.ImportCSV(ctx.Request().Context(), body)
	if err != nil {
		return errors.Wrap(err, "importing schools")
	}
	return ctx.JSON(http.StatusOK, bulkUploadResponse{Results: results})
}
