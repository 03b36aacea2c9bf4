package domain

import (
	"fmt"

	"github.com/google/go-querystring/query"
)

// ContainerOptions covers the creation parameters used most often. Anything
// else can be merged into the ContainerConfig returned by Config.
type ContainerOptions struct {
	Hostname      string `url:"hostname,omitempty"`
	Description   string `url:"description,omitempty"`
	Password      string `url:"password,omitempty"`
	SSHPublicKeys string `url:"ssh-public-keys,omitempty"`
	Cores         int    `url:"cores,omitempty"`
	Memory        int    `url:"memory,omitempty"`
	Swap          int    `url:"swap,omitempty"`
	Storage       string `url:"storage,omitempty"`
	RootFS        string `url:"rootfs,omitempty"`
	Net0          string `url:"net0,omitempty"`
	Nameserver    string `url:"nameserver,omitempty"`
	Searchdomain  string `url:"searchdomain,omitempty"`
	Pool          string `url:"pool,omitempty"`
	Tags          string `url:"tags,omitempty"`
	OnBoot        bool   `url:"onboot,omitempty,int"`
	Unprivileged  bool   `url:"unprivileged,omitempty,int"`
	Start         bool   `url:"start,omitempty,int"`
}

func (o *ContainerOptions) Config() (ContainerConfig, error) {
	values, err := query.Values(o)
	if err != nil {
		return nil, fmt.Errorf("failed to encode container options: %w", err)
	}

	ret := make(ContainerConfig, len(values))
	for key := range values {
		ret[key] = values.Get(key)
	}

	return ret, nil
}
