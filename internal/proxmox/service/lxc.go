package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"pve-lxc/internal/domain"
	"pve-lxc/internal/logger"
)

// LXC manages the containers of a single node. Every method maps to exactly
// one request; nothing is cached and tasks are not waited on.
type LXC struct {
	log       *logger.Logger
	node      string
	transport Transport
}

func NewLXCService(node string, transport Transport) *LXC {
	return &LXC{
		log:       logger.NewLogger("LXCService"),
		node:      node,
		transport: transport,
	}
}

// TemplateVolume names an OS template stored in the local vztmpl directory.
func TemplateVolume(ostemplate string) string {
	return fmt.Sprintf("local:vztmpl/%s.tar.gz", ostemplate)
}

// List returns the node's containers keyed by vmid. If the API ever reports
// the same vmid twice, the later entry wins.
func (l *LXC) List(ctx context.Context) (domain.ContainerList, error) {
	data, err := l.transport.Get(ctx, l.basePath())
	if err != nil {
		return nil, err
	}

	var entries []domain.ContainerSummary
	if err := decode(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode container list: %w", err)
	}

	ret := make(domain.ContainerList, len(entries))
	for _, entry := range entries {
		raw, ok := entry["vmid"]
		if !ok || raw == nil {
			l.log.Warn("Skipping container without vmid on node %s: %v", l.node, entry)
			continue
		}

		vmid := domain.VMID(fmt.Sprint(raw))
		if _, dup := ret[vmid]; dup {
			l.log.Warn("Duplicate vmid %s on node %s, keeping the last entry", vmid, l.node)
		}

		ret[vmid] = entry
	}

	return ret, nil
}

// Create creates a container from a template in local:vztmpl. ostemplate is
// the bare template name, without volume prefix or extension. config is not
// modified.
func (l *LXC) Create(ctx context.Context, ostemplate string, vmid domain.VMID, config domain.ContainerConfig) (domain.TaskID, error) {
	body := formValues(config)
	body.Set("vmid", vmid.String())
	body.Set("ostemplate", TemplateVolume(ostemplate))

	data, err := l.transport.Post(ctx, l.basePath(), body)
	if err != nil {
		return "", err
	}

	return decodeTask(data)
}

func (l *LXC) Delete(ctx context.Context, vmid domain.VMID) (domain.TaskID, error) {
	data, err := l.transport.Delete(ctx, l.containerPath(vmid))
	if err != nil {
		return "", err
	}

	return decodeTask(data)
}

func (l *LXC) Status(ctx context.Context, vmid domain.VMID) (domain.ContainerStatus, error) {
	data, err := l.transport.Get(ctx, l.containerPath(vmid, "status", "current"))
	if err != nil {
		return nil, err
	}

	var ret domain.ContainerStatus
	if err := decode(data, &ret); err != nil {
		return nil, fmt.Errorf("failed to decode status of %s: %w", vmid, err)
	}

	return ret, nil
}

func (l *LXC) Start(ctx context.Context, vmid domain.VMID) (domain.TaskID, error) {
	return l.action(ctx, vmid, "start")
}

// Stop kills the container without waiting for its init to shut down.
func (l *LXC) Stop(ctx context.Context, vmid domain.VMID) (domain.TaskID, error) {
	return l.action(ctx, vmid, "stop")
}

func (l *LXC) Shutdown(ctx context.Context, vmid domain.VMID) (domain.TaskID, error) {
	return l.action(ctx, vmid, "shutdown")
}

func (l *LXC) Config(ctx context.Context, vmid domain.VMID) (domain.ContainerConfig, error) {
	data, err := l.transport.Get(ctx, l.containerPath(vmid, "config"))
	if err != nil {
		return nil, err
	}

	var ret domain.ContainerConfig
	if err := decode(data, &ret); err != nil {
		return nil, fmt.Errorf("failed to decode config of %s: %w", vmid, err)
	}

	return ret, nil
}

// SetConfig updates only the keys present in config.
func (l *LXC) SetConfig(ctx context.Context, vmid domain.VMID, config domain.ContainerConfig) error {
	_, err := l.transport.Put(ctx, l.containerPath(vmid, "config"), formValues(config))
	return err
}

func (l *LXC) action(ctx context.Context, vmid domain.VMID, action string) (domain.TaskID, error) {
	data, err := l.transport.Post(ctx, l.containerPath(vmid, "status", action), nil)
	if err != nil {
		return "", err
	}

	return decodeTask(data)
}

func (l *LXC) basePath() string {
	return fmt.Sprintf("nodes/%s/lxc", l.node)
}

func (l *LXC) containerPath(vmid domain.VMID, parts ...string) string {
	ret := fmt.Sprintf("%s/%s", l.basePath(), vmid)
	for _, part := range parts {
		ret += "/" + part
	}

	return ret
}

// decode keeps numbers as json.Number so values come back exactly as sent.
func decode(data json.RawMessage, target any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	return decoder.Decode(target)
}

func decodeTask(data json.RawMessage) (domain.TaskID, error) {
	var upid string
	if err := decode(data, &upid); err != nil {
		return "", fmt.Errorf("failed to decode task id: %w", err)
	}

	return domain.TaskID(upid), nil
}

// formValues flattens a config map into a form body. Booleans are sent as
// 1/0, nil values are dropped and slices become repeated keys.
func formValues(config map[string]any) url.Values {
	ret := make(url.Values, len(config)+2)

	for key, value := range config {
		switch v := value.(type) {
		case nil:
			continue
		case bool:
			if v {
				ret.Set(key, "1")
			} else {
				ret.Set(key, "0")
			}
		case string:
			ret.Set(key, v)
		case []string:
			for _, item := range v {
				ret.Add(key, item)
			}
		default:
			ret.Set(key, fmt.Sprint(v))
		}
	}

	return ret
}
