package main

import (
	"pve-lxc/internal/domain"

	"github.com/spf13/cobra"
)

type cmdDelete struct {
	global *cmdGlobal
}

func (c *cmdDelete) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "delete <vmid>"
	cmd.Aliases = []string{"rm"}
	cmd.Short = "Delete a container"
	cmd.Args = cobra.ExactArgs(1)
	cmd.RunE = c.Run

	return cmd
}

func (c *cmdDelete) Run(cmd *cobra.Command, args []string) error {
	task, err := c.global.svc.Delete(cmd.Context(), domain.VMID(args[0]))
	if err != nil {
		return err
	}

	return printTask(c.global.out, task)
}
