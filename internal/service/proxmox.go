package service

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"pve-lxc/internal/config"
	"pve-lxc/internal/domain"
	"pve-lxc/internal/logger"
	pve "pve-lxc/internal/proxmox/service"
	"sort"
	"strings"

	"github.com/Telmate/proxmox-api-go/proxmox"
	"github.com/fvbommel/sortorder"
	"github.com/hashicorp/go-cleanhttp"
)

// ProxmoxService is what the CLI drives: the LXC client of the configured
// node plus logging, typed views and a credential check.
type ProxmoxService struct {
	config.ProxmoxConfig
	log *logger.Logger
	lxc *pve.LXC
}

func NewProxmoxService(cfg *config.ProxmoxConfig, transport pve.Transport) *ProxmoxService {
	return &ProxmoxService{
		ProxmoxConfig: *cfg,
		log:           logger.NewLogger("ProxmoxService"),
		lxc:           pve.NewLXCService(cfg.Node, transport),
	}
}

// NewProxmoxServiceFromConfig wires the HTTP transport described by cfg.
func NewProxmoxServiceFromConfig(cfg *config.ProxmoxConfig) (*ProxmoxService, error) {
	transport, err := pve.NewHTTPTransport(cfg)
	if err != nil {
		return nil, err
	}

	return NewProxmoxService(cfg, transport), nil
}

func (p *ProxmoxService) List(ctx context.Context) (domain.ContainerList, error) {
	p.log.Debug("Listing LXC containers on node %s", p.Node)

	list, err := p.lxc.List(ctx)
	if err != nil {
		p.log.Error("Failed to list LXC containers: %v", err)
		return nil, err
	}

	return list, nil
}

// ListInfo returns typed entries in natural vmid order.
func (p *ProxmoxService) ListInfo(ctx context.Context) ([]*domain.ContainerInfo, error) {
	list, err := p.List(ctx)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(list))
	for vmid := range list {
		keys = append(keys, string(vmid))
	}
	sort.Sort(sortorder.Natural(keys))

	ret := make([]*domain.ContainerInfo, 0, len(keys))
	for _, key := range keys {
		info, err := domain.ParseContainerInfo(list[domain.VMID(key)])
		if err != nil {
			p.log.Error("Failed to parse LXC container %s: %v", key, err)
			return nil, err
		}
		ret = append(ret, info)
	}

	return ret, nil
}

func (p *ProxmoxService) Create(ctx context.Context, ostemplate string, vmid domain.VMID, cfg domain.ContainerConfig) (domain.TaskID, error) {
	p.log.Info("Creating LXC container %s from template %s", vmid, ostemplate)

	task, err := p.lxc.Create(ctx, ostemplate, vmid, cfg)
	if err != nil {
		p.log.Error("Failed to create LXC container %s: %v", vmid, err)
		return "", err
	}

	p.logTask(task)

	return task, nil
}

// CreateWithOptions merges extra over the encoded options before creating.
func (p *ProxmoxService) CreateWithOptions(ctx context.Context, ostemplate string, vmid domain.VMID, opts *domain.ContainerOptions, extra domain.ContainerConfig) (domain.TaskID, error) {
	cfg, err := opts.Config()
	if err != nil {
		p.log.Error("Failed to encode options for LXC container %s: %v", vmid, err)
		return "", err
	}

	for key, value := range extra {
		cfg[key] = value
	}

	return p.Create(ctx, ostemplate, vmid, cfg)
}

func (p *ProxmoxService) Delete(ctx context.Context, vmid domain.VMID) (domain.TaskID, error) {
	p.log.Info("Deleting LXC container %s", vmid)

	task, err := p.lxc.Delete(ctx, vmid)
	if err != nil {
		p.log.Error("Failed to delete LXC container %s: %v", vmid, err)
		return "", err
	}

	p.logTask(task)

	return task, nil
}

func (p *ProxmoxService) Status(ctx context.Context, vmid domain.VMID) (domain.ContainerStatus, error) {
	p.log.Debug("Checking status of LXC container %s", vmid)

	status, err := p.lxc.Status(ctx, vmid)
	if err != nil {
		p.log.Error("Failed to get LXC status %s: %v", vmid, err)
		return nil, err
	}

	return status, nil
}

func (p *ProxmoxService) StatusInfo(ctx context.Context, vmid domain.VMID) (*domain.ContainerInfo, error) {
	status, err := p.Status(ctx, vmid)
	if err != nil {
		return nil, err
	}

	info, err := domain.ParseContainerInfo(status)
	if err != nil {
		p.log.Error("Failed to parse LXC status %s: %v", vmid, err)
		return nil, err
	}

	return info, nil
}

func (p *ProxmoxService) Start(ctx context.Context, vmid domain.VMID) (domain.TaskID, error) {
	p.log.Info("Starting LXC container %s", vmid)

	task, err := p.lxc.Start(ctx, vmid)
	if err != nil {
		p.log.Error("Failed to start LXC container %s: %v", vmid, err)
		return "", err
	}

	p.logTask(task)

	return task, nil
}

func (p *ProxmoxService) Stop(ctx context.Context, vmid domain.VMID) (domain.TaskID, error) {
	p.log.Info("Stopping LXC container %s", vmid)

	task, err := p.lxc.Stop(ctx, vmid)
	if err != nil {
		p.log.Error("Failed to stop LXC container %s: %v", vmid, err)
		return "", err
	}

	p.logTask(task)

	return task, nil
}

func (p *ProxmoxService) Shutdown(ctx context.Context, vmid domain.VMID) (domain.TaskID, error) {
	p.log.Info("Shutting down LXC container %s", vmid)

	task, err := p.lxc.Shutdown(ctx, vmid)
	if err != nil {
		p.log.Error("Failed to shut down LXC container %s: %v", vmid, err)
		return "", err
	}

	p.logTask(task)

	return task, nil
}

func (p *ProxmoxService) Config(ctx context.Context, vmid domain.VMID) (domain.ContainerConfig, error) {
	p.log.Debug("Reading config of LXC container %s", vmid)

	cfg, err := p.lxc.Config(ctx, vmid)
	if err != nil {
		p.log.Error("Failed to get LXC config %s: %v", vmid, err)
		return nil, err
	}

	return cfg, nil
}

func (p *ProxmoxService) SetConfig(ctx context.Context, vmid domain.VMID, cfg domain.ContainerConfig) error {
	p.log.Info("Updating config of LXC container %s: %d keys", vmid, len(cfg))

	if err := p.lxc.SetConfig(ctx, vmid, cfg); err != nil {
		p.log.Error("Failed to update LXC config %s: %v", vmid, err)
		return err
	}

	return nil
}

// Check verifies the configured credentials. Passwords are checked with a
// login through proxmox-api-go. API tokens cannot log in, so a container
// listing stands in for them.
func (p *ProxmoxService) Check(ctx context.Context) error {
	if p.UsesToken() {
		p.log.Debug("Checking API token %s", p.TokenID)
		_, err := p.List(ctx)
		return err
	}

	tlsConfig := &tls.Config{InsecureSkipVerify: p.InsecureSkipVerify}

	transport := cleanhttp.DefaultPooledTransport()
	transport.TLSClientConfig = tlsConfig

	httpClient := &http.Client{
		Transport: transport,
		Timeout:   p.RequestTimeout(),
	}

	client, err := proxmox.NewClient(
		strings.TrimSuffix(p.APIURL(), "/"),
		httpClient,
		"",
		tlsConfig,
		"",
		p.Timeout,
	)
	if err != nil {
		p.log.Error("Failed to create Proxmox client: %v", err)
		return fmt.Errorf("failed to create proxmox client: %w", err)
	}

	if err := client.Login(ctx, p.UserID(), p.Password, ""); err != nil {
		p.log.Error("Failed to login to Proxmox as %s: %v", p.UserID(), err)
		return err
	}

	p.log.Info("Logged in to Proxmox as %s", p.UserID())

	return nil
}

func (p *ProxmoxService) logTask(task domain.TaskID) {
	parsed, err := domain.ParseUPID(task)
	if err != nil {
		p.log.Warn("Unexpected task id %q: %v", task, err)
		return
	}

	p.log.Info("Queued %s task for %s on node %s: %s", parsed.Type, parsed.ID, parsed.Node, task)
}
