package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/urfave/cli"

	"github.com/mmynk/hearth/internal/backup"
	"github.com/mmynk/hearth/internal/household"
)

var householdFlag = cli.StringFlag{
	Name:  "household",
	Usage: "household `ID`",
}

func backupCommand() cli.Command {
	return cli.Command{
		Name:  "backup",
		Usage: "export a household's encrypted records to a file",
		Flags: []cli.Flag{
			householdFlag,
			cli.StringFlag{Name: "out, o", Usage: "write the archive to `FILE`"},
		},
		Action: func(c *cli.Context) error {
			householdID, out := c.String("household"), c.String("out")
			if householdID == "" || out == "" {
				return errors.New("--household and --out are required")
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			archive, err := backup.Export(context.Background(), store, householdID, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "exported household %s (%d members) to %s\n", archive.HouseholdID, len(archive.Members), out)
			return nil
		},
	}
}

func restoreCommand() cli.Command {
	return cli.Command{
		Name:  "restore",
		Usage: "load a household archive into the store",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "in, i", Usage: "read the archive from `FILE`"},
		},
		Action: func(c *cli.Context) error {
			in := c.String("in")
			if in == "" {
				return errors.New("--in is required")
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			archive, err := backup.Restore(context.Background(), store, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "restored household %s (%d members)\n", archive.HouseholdID, len(archive.Members))
			return nil
		},
	}
}

func cleanupInvitesCommand() cli.Command {
	return cli.Command{
		Name:  "cleanup-invites",
		Usage: "delete a household's expired and used-up invites",
		Flags: []cli.Flag{householdFlag},
		Action: func(c *cli.Context) error {
			householdID := c.String("household")
			if householdID == "" {
				return errors.New("--household is required")
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			manager, err := household.NewManager(store, household.WithLogger(slog.Default()))
			if err != nil {
				return err
			}
			removed, err := manager.CleanupInvites(context.Background(), householdID)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "removed %d invites\n", removed)
			return nil
		},
	}
}
