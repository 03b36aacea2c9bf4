package main

import (
	"encoding/json"
	"fmt"
	"io"
	"pve-lxc/internal/domain"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v2"
)

func printYAML(out io.Writer, data map[string]any) error {
	raw, err := yaml.Marshal(plain(data))
	if err != nil {
		return err
	}

	_, err = out.Write(raw)
	return err
}

// plain turns json.Number back into int64 or float64 so they print unquoted.
func plain(data map[string]any) map[string]any {
	ret := make(map[string]any, len(data))

	for key, value := range data {
		n, ok := value.(json.Number)
		if !ok {
			ret[key] = value
			continue
		}

		if i, err := n.Int64(); err == nil {
			ret[key] = i
		} else if f, err := n.Float64(); err == nil {
			ret[key] = f
		} else {
			ret[key] = n.String()
		}
	}

	return ret
}

func printTask(out io.Writer, task domain.TaskID) error {
	_, err := fmt.Fprintln(out, task)
	return err
}

func printContainers(out io.Writer, infos []*domain.ContainerInfo) {
	table := tablewriter.NewWriter(out)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader([]string{"VMID", "NAME", "STATUS", "CPUS", "MEMORY", "DISK", "UPTIME"})

	for _, info := range infos {
		table.Append([]string{
			fmt.Sprint(info.VMID),
			info.Name,
			string(info.Status),
			fmt.Sprint(info.CPUs),
			usage(info.Mem, info.MaxMem),
			usage(info.Disk, info.MaxDisk),
			uptime(info.Uptime),
		})
	}

	table.Render()
}

func usage(used, total uint64) string {
	if total == 0 {
		return "-"
	}

	return fmt.Sprintf("%s / %s", humanize.IBytes(used), humanize.IBytes(total))
}

func uptime(seconds int64) string {
	if seconds <= 0 {
		return "-"
	}

	return (time.Duration(seconds) * time.Second).String()
}

// parseKeyValues reads key=value arguments. Values may contain '='.
func parseKeyValues(args []string) (domain.ContainerConfig, error) {
	ret := make(domain.ContainerConfig, len(args))

	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid key=value pair %q", arg)
		}

		ret[key] = value
	}

	return ret, nil
}
