package main

import (
	"os"
	"pve-lxc/internal/domain"
	"pve-lxc/internal/service"
	"strings"

	"github.com/spf13/cobra"
)

type cmdCreate struct {
	global *cmdGlobal

	options           domain.ContainerOptions
	flagSSHPublicKeys string
	flagKeysFrom      []string
	flagKeysURL       string
	flagSet           []string
}

func (c *cmdCreate) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "create <ostemplate> <vmid>"
	cmd.Short = "Create a container from a template in local:vztmpl"
	cmd.Long = `Create a container from a template in local:vztmpl.

The template is given by name only, e.g. debian-12-standard_12.7-1_amd64;
it is resolved to local:vztmpl/<name>.tar.gz. Prints the task id.`
	cmd.Args = cobra.ExactArgs(2)
	cmd.RunE = c.Run

	flags := cmd.Flags()
	flags.StringVar(&c.options.Hostname, "hostname", "", "Container hostname")
	flags.StringVar(&c.options.Description, "description", "", "Container description")
	flags.StringVar(&c.options.Password, "password", "", "Root password")
	flags.StringVar(&c.flagSSHPublicKeys, "ssh-public-keys", "", "File with SSH public keys for root")
	flags.IntVar(&c.options.Cores, "cores", 0, "Number of cores")
	flags.IntVar(&c.options.Memory, "memory", 0, "Memory in MiB")
	flags.IntVar(&c.options.Swap, "swap", 0, "Swap in MiB")
	flags.StringVar(&c.options.Storage, "storage", "", "Default storage")
	flags.StringVar(&c.options.RootFS, "rootfs", "", "Root volume, e.g. local-lvm:8")
	flags.StringVar(&c.options.Net0, "net0", "", "First network interface, e.g. name=eth0,bridge=vmbr0,ip=dhcp")
	flags.StringVar(&c.options.Nameserver, "nameserver", "", "DNS servers")
	flags.StringVar(&c.options.Searchdomain, "searchdomain", "", "DNS search domains")
	flags.StringVar(&c.options.Pool, "pool", "", "Resource pool")
	flags.StringVar(&c.options.Tags, "tags", "", "Tags, separated by ';'")
	flags.BoolVar(&c.options.OnBoot, "onboot", false, "Start at boot")
	flags.BoolVar(&c.options.Unprivileged, "unprivileged", false, "Create an unprivileged container")
	flags.BoolVar(&c.options.Start, "start", false, "Start after creation")
	flags.StringArrayVar(&c.flagKeysFrom, "ssh-keys-from", nil, "Add the published SSH keys of a GitHub user (repeatable)")
	flags.StringVar(&c.flagKeysURL, "keys-url", service.DefaultKeysURL, "Base URL serving <user>.keys")
	flags.StringArrayVar(&c.flagSet, "set", nil, "Extra key=value parameter (repeatable)")

	return cmd
}

func (c *cmdCreate) Run(cmd *cobra.Command, args []string) error {
	extra, err := parseKeyValues(c.flagSet)
	if err != nil {
		return err
	}

	if c.flagSSHPublicKeys != "" {
		keys, err := os.ReadFile(c.flagSSHPublicKeys)
		if err != nil {
			return err
		}

		c.options.SSHPublicKeys = strings.TrimSpace(string(keys))
	}

	if len(c.flagKeysFrom) > 0 {
		keys, err := service.NewKeyService(c.flagKeysURL).PublicKeys(cmd.Context(), c.flagKeysFrom...)
		if err != nil {
			return err
		}

		if c.options.SSHPublicKeys != "" {
			keys = c.options.SSHPublicKeys + "\n" + keys
		}
		c.options.SSHPublicKeys = keys
	}

	task, err := c.global.svc.CreateWithOptions(cmd.Context(), args[0], domain.VMID(args[1]), &c.options, extra)
	if err != nil {
		return err
	}

	return printTask(c.global.out, task)
}
