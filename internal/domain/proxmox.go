package domain

import (
	"fmt"
	"strconv"

	"github.com/mitchellh/mapstructure"
)

type VmType string

const (
	VmTypeQemu VmType = "qemu"
	VmTypeLXC  VmType = "lxc"
)

type VmStatus string

const (
	VmStatusRunning VmStatus = "running"
	VmStatusStopped VmStatus = "stopped"
	VmStatusPaused  VmStatus = "paused"
	VmStatusUnknown VmStatus = "unknown"
)

// VMID identifies a container on a node. It is kept in string form since
// that is how it appears in request paths and list keys.
type VMID string

func VMIDFromInt(id int) VMID {
	return VMID(strconv.Itoa(id))
}

func (v VMID) String() string {
	return string(v)
}

// TaskID is the UPID handed back by asynchronous operations.
type TaskID string

// ContainerSummary is one entry of the node's container list, as sent by the API.
type ContainerSummary map[string]any

// ContainerList maps vmid to summary.
type ContainerList map[VMID]ContainerSummary

// ContainerStatus is the current runtime state of one container.
type ContainerStatus map[string]any

// ContainerConfig holds configuration keys such as hostname, memory or swap.
type ContainerConfig map[string]any

// ContainerInfo is a typed view over a ContainerSummary or ContainerStatus.
type ContainerInfo struct {
	VMID      int      `json:"vmid"`
	Type      VmType   `json:"type"`
	Status    VmStatus `json:"status"`
	Name      string   `json:"name"`
	Lock      string   `json:"lock"`
	Tags      string   `json:"tags"`
	Template  bool     `json:"template"`
	Uptime    int64    `json:"uptime"`
	PID       int      `json:"pid"`
	CPUs      float64  `json:"cpus"`
	CPU       float64  `json:"cpu"`
	MaxMem    uint64   `json:"maxmem"`
	Mem       uint64   `json:"mem"`
	MaxSwap   uint64   `json:"maxswap"`
	Swap      uint64   `json:"swap"`
	Disk      uint64   `json:"disk"`
	MaxDisk   uint64   `json:"maxdisk"`
	NetIn     uint64   `json:"netin"`
	NetOut    uint64   `json:"netout"`
	DiskRead  uint64   `json:"diskread"`
	DiskWrite uint64   `json:"diskwrite"`
}

// ParseContainerInfo decodes a raw summary or status map. Inputs are weakly
// typed: the API sends vmid as a number on recent releases and as a string
// on older ones.
func ParseContainerInfo(raw map[string]any) (*ContainerInfo, error) {
	var info ContainerInfo

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &info,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode container info: %w", err)
	}

	if info.Status == "" {
		info.Status = VmStatusUnknown
	}

	return &info, nil
}
