package main

import (
	"context"

	"github.com/akilisha/darasa/core"
	"github.com/akilisha/darasa/core/user"
)

// addUser updates or creates a user.User. CLI-created users are active
// and approved from the start.
func (cli *commandLine) addUser(name, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if err != user.ErrNotFound {
			return err
		}
		usr = user.User{
			Name:  name,
			Email: email,
		}
	}
	usr.Name = name
	if isAdmin {
		usr.Roles = user.AllRoles
	} else if len(usr.Roles) == 0 {
		usr.Roles = user.TutorRoles
	}
	usr.SetActive(true)
	usr.Approved = true
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}

	if usr.ID == "" {
		_, err = cli.usrRepo.CreateUser(ctx, usr)
		return err
	}
	active, approved := true, true
	_, err = cli.usrRepo.UpdateUser(ctx, usr, &active, &approved)
	return err
}
