package main

import (
	"context"

	"github.com/akilisha/darasa/core"
	"github.com/akilisha/darasa/storage/cache"
)

func (cli *commandLine) approveUser(email string) error {
	ctx := context.Background()
	usr, err := cli.usrRepo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}

	approved := true
	if _, err = cli.usrRepo.UpdateUser(ctx, usr, nil, &approved); err != nil {
		return err
	}

	// drop any stale cached approval status so the change takes effect now
	client, err := cache.NewClient(cli.conf)
	if err != nil {
		return err
	}
	defer client.Close()
	return cache.NewApprovalCache(client, cli.conf).DeleteApproval(ctx, usr.ID)
}
