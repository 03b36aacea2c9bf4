package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type cmdCheck struct {
	global *cmdGlobal
}

func (c *cmdCheck) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "check"
	cmd.Short = "Verify that the configured credentials are accepted"
	cmd.Args = cobra.NoArgs
	cmd.RunE = c.Run

	return cmd
}

func (c *cmdCheck) Run(cmd *cobra.Command, args []string) error {
	if err := c.global.svc.Check(cmd.Context()); err != nil {
		return err
	}

	_, err := fmt.Fprintf(c.global.out, "OK: %s on node %s\n", c.global.svc.Host, c.global.svc.Node)
	return err
}
