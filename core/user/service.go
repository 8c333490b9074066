package user

import (
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/chetansharma-meta/Exam-Portal/core"
)

var (
	// errors
	ErrNotFound             = core.NewNotFoundError("user")
	ErrRollNoExists         = errors.New("a student with this roll number already exists")
	ErrUsernameExists       = errors.New("a teacher with this username already exists")
	ErrEmailExists          = errors.New("a user with this email already exists")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrAccountDeactivated   = errors.New("account deactivated")
)

type (
	Repository interface {
		// CheckUniqueness returns ErrRollNoExists, ErrUsernameExists or ErrEmailExists for the first
		// non-empty value already taken by a user other than excludedUsers.
		CheckUniqueness(rollNo, username, email string, excludedUsers ...User) error
		// CreateUser checks uniqueness and inserts atomically.
		CreateUser(usr User) (User, error)
		GetUserByID(id string) (User, error)
		GetUserByRollNo(rollNo string) (User, error)
		GetUserByUsername(username string) (User, error)
		GetUserByEmail(email string) (User, error)
		// FilterUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Name, RollNo, Username or Email.
		FilterUsers(filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		UpdateUser(usr User) (User, error)
		DeleteUsersByID(ids ...string) error
	}

	Service interface {
		CheckUniqueness(rollNo, uname, email string, exclUsers ...User) error
		RegisterStudent(ns NewStudent) (User, error)
		RegisterTeacher(nt NewTeacher) (User, error)
		AuthenticateStudent(rollNo, pwd string) (User, error)
		AuthenticateTeacher(uname, pwd string) (User, error)
		GetByID(id string) (User, error)
		GetByEmail(email string) (User, error)
		// GetByLogin finds a user by roll number, username or email.
		GetByLogin(login string) (User, error)
		Query(filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		Update(usr User, uu UpdateUser) (User, error)
		SetActive(usr User, active bool) (User, error)
		SetPassword(usr User, pwd string) (User, error)
		SetLastLogin(usr User) (User, error)
		Delete(ids ...string) error
		RequestPasswordReset(email string) error
		ResetPassword(data ResetUserPassword) error
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	configureTokens(conf)
	return &service{repo: repo, mailSvc: mailSvc}
}

func configureTokens(conf *core.Config) {
	secretKey = []byte(conf.SecretKey)
	passwordResetTimeoutDelta = conf.PasswordResetTimeoutDelta
}

func (svc *service) CheckUniqueness(rollNo, uname, email string, exclUsers ...User) error {
	return uniquenessError(svc.repo.CheckUniqueness(rollNo, uname, email, exclUsers...))
}

// uniquenessError converts repository uniqueness errors into field validation errors.
func uniquenessError(err error) error {
	if err == nil {
		return nil
	}
	var field string
	switch pkgerrors.Cause(err) {
	case ErrRollNoExists:
		field = "roll_no"
	case ErrUsernameExists:
		field = "username"
	case ErrEmailExists:
		field = "email"
	default:
		return err
	}
	return core.NewValidationError(err, core.FieldError{Field: field, Error: pkgerrors.Cause(err).Error()})
}

func (svc *service) create(usr User, pwd string) (User, error) {
	now := time.Now().UTC()
	usr.ID = uuid.New().String()
	usr.IsActive = true
	usr.CreatedAt = now
	usr.UpdatedAt = now
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, err
	}
	usr, err := svc.repo.CreateUser(usr)
	if err != nil {
		return User{}, uniquenessError(err)
	}
	return usr, nil
}

func (svc *service) RegisterStudent(ns NewStudent) (User, error) {
	return svc.create(User{
		Name:       ns.Name,
		Role:       RoleStudent,
		RollNo:     ns.RollNo,
		Email:      ns.Email,
		Department: ns.Department,
		Semester:   ns.Semester,
	}, ns.Password)
}

func (svc *service) RegisterTeacher(nt NewTeacher) (User, error) {
	return svc.create(User{
		Name:       nt.Name,
		Role:       RoleTeacher,
		Username:   nt.Username,
		Email:      nt.Email,
		Department: nt.Department,
	}, nt.Password)
}

func (svc *service) authenticate(usr User, err error, role, pwd string) (User, error) {
	if err != nil {
		if core.IsNotFound(err) {
			return User{}, ErrAuthenticationFailed
		}
		return User{}, pkgerrors.Wrap(err, "finding user")
	}
	if usr.Role != role || usr.CheckPassword(pwd) != nil {
		return User{}, ErrAuthenticationFailed
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}
	usr, err = svc.SetLastLogin(usr)
	return usr, pkgerrors.Wrap(err, "setting lastLogin")
}

func (svc *service) AuthenticateStudent(rollNo, pwd string) (User, error) {
	usr, err := svc.repo.GetUserByRollNo(core.CleanString(rollNo))
	return svc.authenticate(usr, err, RoleStudent, pwd)
}

func (svc *service) AuthenticateTeacher(uname, pwd string) (User, error) {
	usr, err := svc.repo.GetUserByUsername(core.CleanString(uname, true /* lower */))
	return svc.authenticate(usr, err, RoleTeacher, pwd)
}

func (svc *service) GetByID(id string) (User, error) {
	return svc.repo.GetUserByID(id)
}

func (svc *service) GetByEmail(email string) (User, error) {
	return svc.repo.GetUserByEmail(core.CleanString(email, true /* lower */))
}

func (svc *service) GetByLogin(login string) (User, error) {
	login = core.CleanString(login)
	usr, err := svc.repo.GetUserByRollNo(login)
	if err == nil || !core.IsNotFound(err) {
		return usr, err
	}
	usr, err = svc.repo.GetUserByUsername(core.CleanString(login, true /* lower */))
	if err == nil || !core.IsNotFound(err) {
		return usr, err
	}
	return svc.GetByEmail(login)
}

func (svc *service) Query(filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	return svc.repo.FilterUsers(filter, ordering)
}

func (svc *service) Update(usr User, uu UpdateUser) (User, error) {
	usr.Name = uu.Name
	usr.Email = uu.Email
	usr.Department = uu.Department
	if usr.IsStudent() {
		usr.Semester = uu.Semester
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, err
		}
	}
	return svc.save(usr)
}

func (svc *service) SetActive(usr User, active bool) (User, error) {
	usr.IsActive = active
	return svc.save(usr)
}

func (svc *service) SetPassword(usr User, pwd string) (User, error) {
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, err
	}
	return svc.save(usr)
}

func (svc *service) SetLastLogin(usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(usr)
}

func (svc *service) save(usr User) (User, error) {
	usr.UpdatedAt = time.Now().UTC()
	usr, err := svc.repo.UpdateUser(usr)
	if err != nil {
		return User{}, uniquenessError(err)
	}
	return usr, nil
}

func (svc *service) Delete(ids ...string) error {
	return svc.repo.DeleteUsersByID(ids...)
}

func (svc *service) RequestPasswordReset(email string) error {
	usr, err := svc.GetByEmail(email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return nil
	}
	go svc.sendPasswordResetMail(usr)
	return nil
}

type passwordResetData struct {
	Name  string
	UID   string
	Token string
}

func (svc *service) sendPasswordResetMail(usr User) {
	to, ok := usr.MailAddress()
	if !ok {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{to},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: passwordResetData{
			Name:  usr.Name,
			UID:   EncodeUID(usr),
			Token: makeToken(usr),
		},
	})
}

func (svc *service) ResetPassword(data ResetUserPassword) error {
	invalidErr := func(err error) error {
		return core.NewValidationError(err, core.FieldError{Field: "token", Error: err.Error()})
	}

	id, err := decodeUID(data.UID)
	if err != nil {
		return invalidErr(errInvalidToken)
	}
	usr, err := svc.GetByID(id)
	if err != nil {
		if core.IsNotFound(err) {
			return invalidErr(errInvalidToken)
		}
		return pkgerrors.Wrap(err, "finding user by ID")
	}
	if err = verifyToken(usr, data.Token); err != nil {
		return invalidErr(err)
	}
	if _, err = svc.SetPassword(usr, data.Password); err != nil {
		return pkgerrors.Wrap(err, fmt.Sprintf("setting password of %s", usr.ID))
	}
	return nil
}
