package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trezcool/masomo/core/roster"
)

func (cli *commandLine) seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Upsert the demo students, doctors and courses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, closeRepo, err := cli.rosterRepository(cmd.Context())
			if err != nil {
				return err
			}
			defer closeRepo()

			res, err := roster.NewService(repo).Seed(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "seeded %d students, %d doctors, %d courses\n", len(res.Students), len(res.Doctors), len(res.Courses))
			return nil
		},
	}
}
