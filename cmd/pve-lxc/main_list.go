package main

import (
	"fmt"
	"pve-lxc/internal/domain"
	"sort"

	"github.com/fvbommel/sortorder"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

type cmdList struct {
	global *cmdGlobal

	flagFormat string
}

func (c *cmdList) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "list"
	cmd.Aliases = []string{"ls"}
	cmd.Short = "List containers"
	cmd.Args = cobra.NoArgs
	cmd.RunE = c.Run

	cmd.Flags().StringVarP(&c.flagFormat, "format", "f", "table", "Output format (table, yaml)")

	return cmd
}

func (c *cmdList) Run(cmd *cobra.Command, args []string) error {
	switch c.flagFormat {
	case "table":
		infos, err := c.global.svc.ListInfo(cmd.Context())
		if err != nil {
			return err
		}

		printContainers(c.global.out, infos)
		return nil
	case "yaml":
		list, err := c.global.svc.List(cmd.Context())
		if err != nil {
			return err
		}

		keys := make([]string, 0, len(list))
		for vmid := range list {
			keys = append(keys, string(vmid))
		}
		sort.Sort(sortorder.Natural(keys))

		out := make(yaml.MapSlice, 0, len(keys))
		for _, key := range keys {
			out = append(out, yaml.MapItem{Key: key, Value: plain(list[domain.VMID(key)])})
		}

		raw, err := yaml.Marshal(out)
		if err != nil {
			return err
		}

		_, err = c.global.out.Write(raw)
		return err
	default:
		return fmt.Errorf("unknown format %q", c.flagFormat)
	}
}
