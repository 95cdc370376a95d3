package main

import (
	"context"

	"github.com/akilisha/darasa/storage/object"
)

func (cli *commandLine) ensureBucket() error {
	store, err := object.NewReceiptStore(cli.conf)
	if err != nil {
		return err
	}
	return store.EnsureBucket(context.Background())
}
