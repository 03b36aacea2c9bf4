package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"pve-lxc/internal/domain"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	Method string
	Path   string
	Body   url.Values
}

type fakeTransport struct {
	mu    sync.Mutex
	calls []call
	reply json.RawMessage
	err   error
}

func (f *fakeTransport) record(method, path string, body url.Values) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, call{Method: method, Path: path, Body: body})
	if f.err != nil {
		return nil, f.err
	}

	return f.reply, nil
}

func (f *fakeTransport) Get(_ context.Context, path string) (json.RawMessage, error) {
	return f.record("GET", path, nil)
}

func (f *fakeTransport) Post(_ context.Context, path string, body url.Values) (json.RawMessage, error) {
	return f.record("POST", path, body)
}

func (f *fakeTransport) Put(_ context.Context, path string, body url.Values) (json.RawMessage, error) {
	return f.record("PUT", path, body)
}

func (f *fakeTransport) Delete(_ context.Context, path string) (json.RawMessage, error) {
	return f.record("DELETE", path, nil)
}

func (f *fakeTransport) last(t *testing.T) call {
	t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()

	require.NotEmpty(t, f.calls)
	return f.calls[len(f.calls)-1]
}

const upid = "UPID:localhost:000BC66A:1279E395:521EFC4E:vzcreate:200:root@pam:"

func TestListKeysByVMID(t *testing.T) {
	transport := &fakeTransport{reply: json.RawMessage(`[
		{"vmid": "101", "name": "test2.domain.com", "status": "running", "cpu": 0.00031670581100007, "maxmem": 536870912},
		{"vmid": 102, "name": "web", "status": "stopped", "mem": 0}
	]`)}
	lxc := NewLXCService("pve1", transport)

	list, err := lxc.List(context.Background())
	require.NoError(t, err)

	assert.Equal(t, call{Method: "GET", Path: "nodes/pve1/lxc"}, transport.last(t))
	require.Len(t, list, 2)

	first := list["101"]
	assert.Equal(t, "test2.domain.com", first["name"])
	assert.Equal(t, "running", first["status"])
	assert.Equal(t, json.Number("0.00031670581100007"), first["cpu"])
	assert.Equal(t, json.Number("536870912"), first["maxmem"])
	assert.Equal(t, "101", first["vmid"])

	second := list["102"]
	assert.Equal(t, json.Number("102"), second["vmid"])
	assert.Equal(t, "stopped", second["status"])
	assert.Len(t, second, 4)
}

func TestListDuplicateVMIDLastWins(t *testing.T) {
	transport := &fakeTransport{reply: json.RawMessage(`[
		{"vmid": 100, "name": "old"},
		{"name": "orphan"},
		{"vmid": 100, "name": "new"}
	]`)}

	list, err := NewLXCService("pve1", transport).List(context.Background())
	require.NoError(t, err)

	require.Len(t, list, 1)
	assert.Equal(t, "new", list["100"]["name"])
}

func TestListEmpty(t *testing.T) {
	list, err := NewLXCService("pve1", &fakeTransport{reply: json.RawMessage(`[]`)}).List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestListMalformed(t *testing.T) {
	_, err := NewLXCService("pve1", &fakeTransport{reply: json.RawMessage(`{"vmid": 1}`)}).List(context.Background())
	assert.Error(t, err)
}

func TestCreate(t *testing.T) {
	transport := &fakeTransport{reply: json.RawMessage(`"` + upid + `"`)}
	lxc := NewLXCService("pve1", transport)

	config := domain.ContainerConfig{"hostname": "test.test.com", "password": "testt"}
	task, err := lxc.Create(context.Background(), "ubuntu-10.04-standard_10.04-4_i386", domain.VMIDFromInt(200), config)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskID(upid), task)

	last := transport.last(t)
	assert.Equal(t, "POST", last.Method)
	assert.Equal(t, "nodes/pve1/lxc", last.Path)

	encoded := last.Body.Encode()
	assert.Contains(t, encoded, "ostemplate=local%3Avztmpl%2Fubuntu-10.04-standard_10.04-4_i386.tar.gz")
	assert.Contains(t, encoded, "vmid=200")
	assert.Contains(t, encoded, "hostname=test.test.com")
	assert.Contains(t, encoded, "password=testt")

	assert.Len(t, config, 2, "caller config must not be modified")
}

func TestCreateEncodesReservedCharacters(t *testing.T) {
	transport := &fakeTransport{reply: json.RawMessage(`"` + upid + `"`)}

	_, err := NewLXCService("pve1", transport).Create(context.Background(), "debian-12", "201", domain.ContainerConfig{
		"password":     "a&b=c",
		"net0":         "name=eth0,bridge=vmbr0,ip=dhcp",
		"unprivileged": true,
		"onboot":       false,
		"memory":       512,
		"description":  nil,
	})
	require.NoError(t, err)

	body := transport.last(t).Body
	assert.Equal(t, "a&b=c", body.Get("password"))
	assert.Equal(t, "1", body.Get("unprivileged"))
	assert.Equal(t, "0", body.Get("onboot"))
	assert.Equal(t, "512", body.Get("memory"))
	assert.NotContains(t, body, "description")

	encoded := body.Encode()
	assert.Contains(t, encoded, "password=a%26b%3Dc")
	assert.Contains(t, encoded, "net0=name%3Deth0%2Cbridge%3Dvmbr0%2Cip%3Ddhcp")
}

func TestCreateOverridesReservedKeys(t *testing.T) {
	transport := &fakeTransport{reply: json.RawMessage(`"` + upid + `"`)}

	_, err := NewLXCService("pve1", transport).Create(context.Background(), "alpine", "300", domain.ContainerConfig{
		"vmid":       "999",
		"ostemplate": "other",
	})
	require.NoError(t, err)

	body := transport.last(t).Body
	assert.Equal(t, []string{"300"}, body["vmid"])
	assert.Equal(t, []string{"local:vztmpl/alpine.tar.gz"}, body["ostemplate"])
}

func TestTaskOperations(t *testing.T) {
	tests := []struct {
		name   string
		run    func(*LXC) (domain.TaskID, error)
		method string
		path   string
	}{
		{"delete", func(l *LXC) (domain.TaskID, error) { return l.Delete(context.Background(), "200") }, "DELETE", "nodes/pve1/lxc/200"},
		{"start", func(l *LXC) (domain.TaskID, error) { return l.Start(context.Background(), "200") }, "POST", "nodes/pve1/lxc/200/status/start"},
		{"stop", func(l *LXC) (domain.TaskID, error) { return l.Stop(context.Background(), "200") }, "POST", "nodes/pve1/lxc/200/status/stop"},
		{"shutdown", func(l *LXC) (domain.TaskID, error) { return l.Shutdown(context.Background(), "200") }, "POST", "nodes/pve1/lxc/200/status/shutdown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &fakeTransport{reply: json.RawMessage(`"` + upid + `"`)}

			task, err := tt.run(NewLXCService("pve1", transport))
			require.NoError(t, err)

			assert.Equal(t, domain.TaskID(upid), task)
			assert.Equal(t, call{Method: tt.method, Path: tt.path}, transport.last(t))
		})
	}
}

func TestStatus(t *testing.T) {
	transport := &fakeTransport{reply: json.RawMessage(`{"status": "running", "vmid": 200, "mem": 22487040}`)}

	status, err := NewLXCService("pve1", transport).Status(context.Background(), "200")
	require.NoError(t, err)

	assert.Equal(t, call{Method: "GET", Path: "nodes/pve1/lxc/200/status/current"}, transport.last(t))
	assert.Equal(t, domain.ContainerStatus{
		"status": "running",
		"vmid":   json.Number("200"),
		"mem":    json.Number("22487040"),
	}, status)
}

func TestConfig(t *testing.T) {
	transport := &fakeTransport{reply: json.RawMessage(`{"hostname": "test.test.com", "memory": 256, "swap": 256, "digest": "e7e6e21a215af6b9da87a8ecb934956b8983f960"}`)}

	config, err := NewLXCService("pve1", transport).Config(context.Background(), "200")
	require.NoError(t, err)

	assert.Equal(t, call{Method: "GET", Path: "nodes/pve1/lxc/200/config"}, transport.last(t))
	assert.Equal(t, domain.ContainerConfig{
		"hostname": "test.test.com",
		"memory":   json.Number("256"),
		"swap":     json.Number("256"),
		"digest":   "e7e6e21a215af6b9da87a8ecb934956b8983f960",
	}, config)
}

func TestSetConfig(t *testing.T) {
	transport := &fakeTransport{reply: json.RawMessage(`null`)}

	err := NewLXCService("pve1", transport).SetConfig(context.Background(), "200", domain.ContainerConfig{"swap": 2048})
	require.NoError(t, err)

	assert.Equal(t, call{
		Method: "PUT",
		Path:   "nodes/pve1/lxc/200/config",
		Body:   url.Values{"swap": {"2048"}},
	}, transport.last(t))
}

func TestErrorsPropagateUnchanged(t *testing.T) {
	boom := errors.New("connection refused")
	lxc := NewLXCService("pve1", &fakeTransport{err: boom})
	ctx := context.Background()

	_, err := lxc.List(ctx)
	assert.Same(t, boom, err)

	_, err = lxc.Create(ctx, "alpine", "200", nil)
	assert.Same(t, boom, err)

	_, err = lxc.Delete(ctx, "200")
	assert.Same(t, boom, err)

	_, err = lxc.Status(ctx, "200")
	assert.Same(t, boom, err)

	_, err = lxc.Start(ctx, "200")
	assert.Same(t, boom, err)

	_, err = lxc.Stop(ctx, "200")
	assert.Same(t, boom, err)

	_, err = lxc.Shutdown(ctx, "200")
	assert.Same(t, boom, err)

	_, err = lxc.Config(ctx, "200")
	assert.Same(t, boom, err)

	err = lxc.SetConfig(ctx, "200", domain.ContainerConfig{"swap": 2048})
	assert.Same(t, boom, err)
}

func TestDecodeTaskRejectsNonString(t *testing.T) {
	_, err := NewLXCService("pve1", &fakeTransport{reply: json.RawMessage(`{"upid": 1}`)}).Start(context.Background(), "200")
	assert.Error(t, err)
}
