package user

import (
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/chetansharma-meta/Exam-Portal/core"
)

// Roles
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
)

var Roles = []Role{
	{Name: "Student", Value: RoleStudent},
	{Name: "Teacher", Value: RoleTeacher},
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// User is either a student (identified by RollNo) or a teacher (identified by Username).
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	RollNo       string    `json:"roll_no,omitempty"`
	Username     string    `json:"username,omitempty"`
	Email        string    `json:"email,omitempty"`
	Department   string    `json:"department,omitempty"`
	Semester     string    `json:"semester,omitempty"`
	IsActive     bool      `json:"is_active"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsStudent() bool { return u.Role == RoleStudent }
func (u *User) IsTeacher() bool { return u.Role == RoleTeacher }

// Login returns the identifier the user logs in with.
func (u *User) Login() string {
	if u.IsStudent() {
		return u.RollNo
	}
	return u.Username
}

// MailAddress returns the user's address, if any.
func (u *User) MailAddress() (mail.Address, bool) {
	if u.Email == "" {
		return mail.Address{}, false
	}
	return mail.Address{Name: u.Name, Address: u.Email}, true
}

// NewStudent contains information needed to register a student.
type NewStudent struct {
	Name            string `json:"name" validate:"required"`
	RollNo          string `json:"roll_no" validate:"required,alphanum"`
	Email           string `json:"email" validate:"omitempty,email"`
	Department      string `json:"department"`
	Semester        string `json:"semester"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"omitempty,eqfield=Password"`
}

func (ns *NewStudent) Validate(validate *validator.Validate, svc Service) error {
	ns.Name = core.CleanString(ns.Name)
	ns.RollNo = core.CleanString(ns.RollNo)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Department = core.CleanString(ns.Department)
	ns.Semester = core.CleanString(ns.Semester)

	if err := validate.Struct(ns); err != nil {
		return err
	}
	return svc.CheckUniqueness(ns.RollNo, "", ns.Email)
}

// NewTeacher contains information needed to register a teacher.
type NewTeacher struct {
	Name            string `json:"name" validate:"required"`
	Username        string `json:"username" validate:"required,min=3,alphanum_"`
	Email           string `json:"email" validate:"omitempty,email"`
	Department      string `json:"department"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"omitempty,eqfield=Password"`
}

func (nt *NewTeacher) Validate(validate *validator.Validate, svc Service) error {
	nt.Name = core.CleanString(nt.Name)
	nt.Username = core.CleanString(nt.Username, true /* lower */)
	nt.Email = core.CleanString(nt.Email, true /* lower */)
	nt.Department = core.CleanString(nt.Department)

	if err := validate.Struct(nt); err != nil {
		return err
	}
	return svc.CheckUniqueness("", nt.Username, nt.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
// Roll numbers and usernames are immutable.
type UpdateUser struct {
	Name            string `json:"name"`
	Email           string `json:"email" validate:"omitempty,email"`
	Department      string `json:"department"`
	Semester        string `json:"semester"`
	Password        string `json:"password" validate:"omitempty"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`

	// used by the password policy
	rollNo   string
	username string
}

func (uu *UpdateUser) Validate(origUsr User, validate *validator.Validate, svc Service) error {
	if name := core.CleanString(uu.Name); name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}
	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}
	if dept := core.CleanString(uu.Department); dept != "" {
		uu.Department = dept
	} else {
		uu.Department = origUsr.Department
	}
	if sem := core.CleanString(uu.Semester); sem != "" {
		uu.Semester = sem
	} else {
		uu.Semester = origUsr.Semester
	}
	uu.rollNo = origUsr.RollNo
	uu.username = origUsr.Username

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness("", "", uu.Email, origUsr)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp *ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type QueryFilter struct {
	Search     string `json:"search" query:"search"`
	Role       string `json:"role" query:"role" validate:"omitempty,role"`
	Department string `json:"department" query:"department"`
	IsActive   *bool  `json:"is_active" query:"is_active"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Role == "" && qf.Department == "" && qf.IsActive == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Role = core.CleanString(qf.Role, true /* lower */)
	qf.Department = core.CleanString(qf.Department)
}

func (qf *QueryFilter) Validate(validate *validator.Validate) error {
	qf.Clean()
	return validate.Struct(qf)
}
