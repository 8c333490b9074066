package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/chetansharma-meta/Exam-Portal/core"
	"github.com/chetansharma-meta/Exam-Portal/core/exam"
	"github.com/chetansharma-meta/Exam-Portal/core/user"
)

// legacyApi serves the un-versioned endpoints the frontend registers and logs in with.
type legacyApi struct {
	usrSvc   user.Service
	examSvc  exam.Service
	validate *validator.Validate
}

func registerLegacyAPI(e *echo.Echo, usrSvc user.Service, examSvc exam.Service, validate *validator.Validate) {
	api := legacyApi{usrSvc: usrSvc, examSvc: examSvc, validate: validate}

	e.POST("/register_student", api.registerStudent)
	e.POST("/register_teacher", api.registerTeacher)
	e.POST("/login_student", api.loginStudent)
	e.POST("/login_teacher", api.loginTeacher)
	e.GET("/questions", api.queryQuestions)
	e.GET("/subjects", api.querySubjects)
}

// Handlers

func (api *legacyApi) registerStudent(ctx echo.Context) error {
	var data user.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate, api.usrSvc); err != nil {
		return err
	}

	usr, err := api.usrSvc.RegisterStudent(data)
	if err != nil {
		return errors.Wrap(err, "registering student")
	}
	return ctx.JSON(http.StatusCreated, RegisterResponse{
		Success: true,
		Message: "Student registered successfully",
		ID:      usr.ID,
		Name:    usr.Name,
	})
}

func (api *legacyApi) registerTeacher(ctx echo.Context) error {
	var data user.NewTeacher
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTeacher")
	}
	if err := data.Validate(api.validate, api.usrSvc); err != nil {
		return err
	}

	usr, err := api.usrSvc.RegisterTeacher(data)
	if err != nil {
		return errors.Wrap(err, "registering teacher")
	}
	return ctx.JSON(http.StatusCreated, RegisterResponse{
		Success: true,
		Message: "Teacher registered successfully",
		ID:      usr.ID,
		Name:    usr.Name,
	})
}

func (api *legacyApi) login(ctx echo.Context, role, login, pwd string) error {
	usr, claims, err := authenticate(role, login, pwd, api.usrSvc)
	if err != nil {
		return err
	}
	token, err := GenerateToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{
		Success: true,
		ID:      usr.ID,
		Name:    usr.Name,
		Role:    usr.Role,
		Token:   token,
	})
}

func (api *legacyApi) loginStudent(ctx echo.Context) error {
	var data StudentLoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StudentLoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	return api.login(ctx, user.RoleStudent, data.RollNo, data.Password)
}

func (api *legacyApi) loginTeacher(ctx echo.Context) error {
	var data TeacherLoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TeacherLoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	return api.login(ctx, user.RoleTeacher, data.Username, data.Password)
}

func (api *legacyApi) queryQuestions(ctx echo.Context) error {
	var filter exam.QuestionFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QuestionFilter")
	}
	if err := filter.Validate(api.validate); err != nil {
		return err
	}

	qs, err := api.examSvc.Questions(filter)
	if err != nil {
		return errors.Wrap(err, "querying questions")
	}
	return ctx.JSON(http.StatusOK, qs)
}

func (api *legacyApi) querySubjects(ctx echo.Context) error {
	subjects, err := api.examSvc.Subjects()
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	return ctx.JSON(http.StatusOK, subjects)
}

type (
	StudentLoginRequest struct {
		RollNo   string `json:"roll_no" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	TeacherLoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Success bool   `json:"success"`
		ID      string `json:"id"`
		Name    string `json:"name"`
		Role    string `json:"role"`
		Token   string `json:"token"`
	}

	RegisterResponse struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		ID      string `json:"id"`
		Name    string `json:"name"`
	}
)

func (lr *StudentLoginRequest) Validate(validate *validator.Validate) error {
	lr.RollNo = core.CleanString(lr.RollNo)
	return validate.Struct(lr)
}

func (lr *TeacherLoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}
