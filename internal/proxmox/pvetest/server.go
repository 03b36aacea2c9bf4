// Package pvetest runs an in-memory imitation of the api2/json LXC endpoints
// of a single Proxmox node.
package pvetest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

const (
	Ticket = "PVE:root@pam:4EEC61E2::rsKoApxDTLYPn6H3NNT6iP2mv"
	CSRF   = "4EEC61E2:Y1Td3aNrgwvfJXuOt6G/xf/1rcI"
)

// Request is a recorded call, login included.
type Request struct {
	Method string
	Path   string
	Form   url.Values
	Header http.Header
}

type Server struct {
	*httptest.Server

	Node string

	// Token, when set, is the only accepted "user@realm!name=secret" API token.
	// Otherwise clients must log in as Username/Password.
	Token    string
	Username string
	Password string

	mu         sync.Mutex
	containers map[string]map[string]any
	configs    map[string]map[string]any
	requests   []Request
	logins     int
	revoked    bool
	pid        int
}

func NewServer(node string) *Server {
	s := &Server{
		Node:       node,
		Username:   "root@pam",
		Password:   "secret",
		containers: make(map[string]map[string]any),
		configs:    make(map[string]map[string]any),
	}

	router := mux.NewRouter()
	api := router.PathPrefix("/api2/json").Subrouter()
	api.HandleFunc("/access/ticket", s.handleLogin).Methods(http.MethodPost)

	lxc := api.PathPrefix("/nodes/{node}/lxc").Subrouter()
	lxc.Use(s.authenticate, s.checkNode)
	lxc.HandleFunc("", s.handleList).Methods(http.MethodGet)
	lxc.HandleFunc("", s.handleCreate).Methods(http.MethodPost)
	lxc.HandleFunc("/{vmid}", s.handleDelete).Methods(http.MethodDelete)
	lxc.HandleFunc("/{vmid}/status/current", s.handleStatus).Methods(http.MethodGet)
	lxc.HandleFunc("/{vmid}/status/{action:start|stop|shutdown}", s.handleAction).Methods(http.MethodPost)
	lxc.HandleFunc("/{vmid}/config", s.handleGetConfig).Methods(http.MethodGet)
	lxc.HandleFunc("/{vmid}/config", s.handleSetConfig).Methods(http.MethodPut)

	s.Server = httptest.NewServer(s.record(router))

	return s
}

// AddContainer seeds a container. summary must hold at least vmid.
func (s *Server) AddContainer(summary map[string]any, config map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vmid := fmt.Sprint(summary["vmid"])
	s.containers[vmid] = summary
	if config == nil {
		config = map[string]any{}
	}
	s.configs[vmid] = config
}

func (s *Server) Container(vmid string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ret, ok := s.containers[vmid]
	return ret, ok
}

func (s *Server) Config(vmid string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.configs[vmid]
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Request(nil), s.requests...)
}

func (s *Server) LastRequest() Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.requests) == 0 {
		return Request{}
	}

	return s.requests[len(s.requests)-1]
}

func (s *Server) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.logins
}

// RevokeTicket makes the server refuse Ticket until the next login.
func (s *Server) RevokeTicket() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.revoked = true
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := parseBody(r); err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Form:   r.PostForm,
			Header: r.Header.Clone(),
		})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Token != "" {
			if r.Header.Get("Authorization") != "PVEAPIToken="+s.Token {
				writeError(w, http.StatusUnauthorized, "authentication failure", nil)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		s.mu.Lock()
		revoked := s.revoked
		s.mu.Unlock()

		cookie, err := r.Cookie("PVEAuthCookie")
		if err != nil || cookie.Value != Ticket || revoked {
			writeError(w, http.StatusUnauthorized, "authentication failure", nil)
			return
		}

		if r.Method != http.MethodGet && r.Header.Get("CSRFPreventionToken") != CSRF {
			writeError(w, http.StatusUnauthorized, "Permission check failed (invalid csrf token)", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkNode(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		node := mux.Vars(r)["node"]
		if node != s.Node {
			writeError(w, 595, fmt.Sprintf("no such cluster node '%s'", node), nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.logins++
	s.mu.Unlock()

	if r.PostForm.Get("username") != s.Username || r.PostForm.Get("password") != s.Password {
		writeError(w, http.StatusUnauthorized, "authentication failure", nil)
		return
	}

	s.mu.Lock()
	s.revoked = false
	s.mu.Unlock()

	writeData(w, map[string]string{
		"username":            s.Username,
		"ticket":              Ticket,
		"CSRFPreventionToken": CSRF,
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.containers))
	for k := range s.containers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	list := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		list = append(list, s.containers[k])
	}

	writeData(w, list)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	form := r.PostForm

	missing := map[string]string{}
	for _, key := range []string{"vmid", "ostemplate"} {
		if form.Get(key) == "" {
			missing[key] = "property is missing and it is not optional"
		}
	}
	if len(missing) > 0 {
		writeError(w, http.StatusBadRequest, "Parameter verification failed.", missing)
		return
	}

	vmid := form.Get("vmid")
	id, err := strconv.Atoi(vmid)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Parameter verification failed.", map[string]string{"vmid": "type check ('integer') failed"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.containers[vmid]; ok {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("CT %s already exists on node '%s'", vmid, s.Node), nil)
		return
	}

	config := map[string]any{}
	for key := range form {
		if key != "vmid" && key != "password" {
			config[key] = form.Get(key)
		}
	}

	s.containers[vmid] = map[string]any{
		"vmid":   id,
		"name":   form.Get("hostname"),
		"status": "stopped",
		"type":   "lxc",
	}
	s.configs[vmid] = config

	writeData(w, s.upid("vzcreate", vmid))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	vmid := mux.Vars(r)["vmid"]

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.exists(w, vmid) {
		return
	}

	delete(s.containers, vmid)
	delete(s.configs, vmid)

	writeData(w, s.upid("vzdestroy", vmid))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	vmid := mux.Vars(r)["vmid"]

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.exists(w, vmid) {
		return
	}

	writeData(w, s.containers[vmid])
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	vmid, action := vars["vmid"], vars["action"]

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.exists(w, vmid) {
		return
	}

	if action == "start" {
		s.containers[vmid]["status"] = "running"
	} else {
		s.containers[vmid]["status"] = "stopped"
	}

	writeData(w, s.upid("vz"+action, vmid))
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	vmid := mux.Vars(r)["vmid"]

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.exists(w, vmid) {
		return
	}

	writeData(w, s.configs[vmid])
}

func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	vmid := mux.Vars(r)["vmid"]

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.exists(w, vmid) {
		return
	}

	for key := range r.PostForm {
		s.configs[vmid][key] = r.PostForm.Get(key)
	}

	writeData(w, nil)
}

// exists must be called with s.mu held.
func (s *Server) exists(w http.ResponseWriter, vmid string) bool {
	if _, ok := s.containers[vmid]; ok {
		return true
	}

	writeError(w, http.StatusInternalServerError, fmt.Sprintf("Configuration file 'nodes/%s/lxc/%s.conf' does not exist", s.Node, vmid), nil)
	return false
}

// upid must be called with s.mu held.
func (s *Server) upid(kind, vmid string) string {
	s.pid++
	return fmt.Sprintf("UPID:%s:%08X:%08X:%08X:%s:%s:%s:", s.Node, 0x1000+s.pid, 0x2000+s.pid, time.Now().Unix(), kind, vmid, s.Username)
}

// parseBody decodes POST and PUT bodies as urlencoded forms whatever the
// Content-Type, the way pveproxy does.
func parseBody(r *http.Request) error {
	r.PostForm = url.Values{}

	if r.Method == http.MethodPost || r.Method == http.MethodPut {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			return err
		}

		form, err := url.ParseQuery(string(raw))
		if err != nil {
			return err
		}
		r.PostForm = form
	}

	return r.ParseForm()
}

func writeData(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

// writeError mimics pveproxy: the message rides in the status line.
func writeError(w http.ResponseWriter, code int, message string, errs map[string]string) {
	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	w.WriteHeader(code)

	body := map[string]any{"data": nil, "message": message + "\n"}
	if len(errs) > 0 {
		body["errors"] = errs
	}

	_ = json.NewEncoder(w).Encode(body)
}
