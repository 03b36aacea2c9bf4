package main

import (
	"pve-lxc/internal/domain"

	"github.com/spf13/cobra"
)

type cmdStatus struct {
	global *cmdGlobal
}

func (c *cmdStatus) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "status <vmid>"
	cmd.Short = "Show the current status of a container"
	cmd.Args = cobra.ExactArgs(1)
	cmd.RunE = c.Run

	return cmd
}

func (c *cmdStatus) Run(cmd *cobra.Command, args []string) error {
	status, err := c.global.svc.Status(cmd.Context(), domain.VMID(args[0]))
	if err != nil {
		return err
	}

	return printYAML(c.global.out, status)
}

type cmdAction struct {
	global *cmdGlobal
	action string
}

var actionDescriptions = map[string]string{
	"start":    "Start a container",
	"stop":     "Stop a container immediately",
	"shutdown": "Shut a container down cleanly",
}

func (c *cmdAction) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = c.action + " <vmid>"
	cmd.Short = actionDescriptions[c.action]
	cmd.Args = cobra.ExactArgs(1)
	cmd.RunE = c.Run

	return cmd
}

func (c *cmdAction) Run(cmd *cobra.Command, args []string) error {
	var task domain.TaskID
	var err error

	vmid := domain.VMID(args[0])
	switch c.action {
	case "start":
		task, err = c.global.svc.Start(cmd.Context(), vmid)
	case "stop":
		task, err = c.global.svc.Stop(cmd.Context(), vmid)
	case "shutdown":
		task, err = c.global.svc.Shutdown(cmd.Context(), vmid)
	}

	if err != nil {
		return err
	}

	return printTask(c.global.out, task)
}
