package main

import (
	"github.com/chetansharma-meta/Exam-Portal/core"
	"github.com/chetansharma-meta/Exam-Portal/core/user"
)

type newUser struct {
	role       string
	name       string
	rollNo     string
	username   string
	email      string
	department string
	semester   string
}

func (nu newUser) valid() bool {
	switch nu.role {
	case user.RoleStudent:
		return nu.name != "" && nu.rollNo != ""
	case user.RoleTeacher:
		return nu.name != "" && nu.username != ""
	}
	return false
}

func (nu newUser) login() string {
	if nu.role == user.RoleStudent {
		return core.CleanString(nu.rollNo)
	}
	return core.CleanString(nu.username, true /* lower */)
}

// addUser creates a user.User, or reactivates the existing one and sets its password.
// The password policy does not apply.
func (cli *commandLine) addUser(nu newUser, pwd string) error {
	usr, err := cli.usrSvc.GetByLogin(nu.login())
	if err == nil {
		if usr.Role != nu.role {
			return core.NewValidationError(nil, core.FieldError{Field: "role", Error: "login already taken by a " + usr.Role})
		}
		if usr, err = cli.usrSvc.SetActive(usr, true); err != nil {
			return err
		}
		_, err = cli.usrSvc.SetPassword(usr, pwd)
		return err
	}
	if !core.IsNotFound(err) {
		return err
	}

	if nu.role == user.RoleStudent {
		_, err = cli.usrSvc.RegisterStudent(user.NewStudent{
			Name:       core.CleanString(nu.name),
			RollNo:     nu.login(),
			Email:      core.CleanString(nu.email, true /* lower */),
			Department: core.CleanString(nu.department),
			Semester:   core.CleanString(nu.semester),
			Password:   pwd,
		})
		return err
	}
	_, err = cli.usrSvc.RegisterTeacher(user.NewTeacher{
		Name:       core.CleanString(nu.name),
		Username:   nu.login(),
		Email:      core.CleanString(nu.email, true /* lower */),
		Department: core.CleanString(nu.department),
		Password:   pwd,
	})
	return err
}
