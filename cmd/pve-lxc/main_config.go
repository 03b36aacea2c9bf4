package main

import (
	"pve-lxc/internal/domain"

	"github.com/spf13/cobra"
)

type cmdConfig struct {
	global *cmdGlobal
}

func (c *cmdConfig) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "config"
	cmd.Short = "Read or change container configuration"

	cmd.AddCommand(&cobra.Command{
		Use:   "get <vmid>",
		Short: "Show the configuration of a container",
		Args:  cobra.ExactArgs(1),
		RunE:  c.RunGet,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <vmid> <key>=<value>...",
		Short: "Change configuration keys of a container",
		Args:  cobra.MinimumNArgs(2),
		RunE:  c.RunSet,
	})

	return cmd
}

func (c *cmdConfig) RunGet(cmd *cobra.Command, args []string) error {
	cfg, err := c.global.svc.Config(cmd.Context(), domain.VMID(args[0]))
	if err != nil {
		return err
	}

	return printYAML(c.global.out, cfg)
}

func (c *cmdConfig) RunSet(cmd *cobra.Command, args []string) error {
	cfg, err := parseKeyValues(args[1:])
	if err != nil {
		return err
	}

	return c.global.svc.SetConfig(cmd.Context(), domain.VMID(args[0]), cfg)
}
