package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Control-D-Inc/dnsmgr"
	"github.com/Control-D-Inc/dnsmgr/internal/dnsmanager"
)

const (
	contentTypeJson  = "application/json"
	beginPath        = "/begin"
	endPath          = "/end"
	addConfigPath    = "/config/add"
	removeConfigPath = "/config/remove"
	hostnamePath     = "/hostname"
	statusPath       = "/status"
	reloadPath       = "/reload"
)

// batchRequest is the body of begin and end requests.
type batchRequest struct {
	Caller string `json:"caller"`
}

// addConfigRequest adds an IP config of an interface.
type addConfigRequest struct {
	Iface  string           `json:"iface"`
	Kind   string           `json:"kind"`
	Config *dnsmgr.IPConfig `json:"config"`
}

type addConfigResponse struct {
	ID uint64 `json:"id"`
}

type removeConfigRequest struct {
	ID uint64 `json:"id"`
}

type hostnameRequest struct {
	Hostname string `json:"hostname"`
}

type controlServer struct {
	server *http.Server
	mux    *http.ServeMux
	addr   string
}

func newControlServer(addr string) (*controlServer, error) {
	mux := http.NewServeMux()
	s := &controlServer{
		server: &http.Server{Handler: mux},
		mux:    mux,
	}
	s.addr = addr
	return s, nil
}

func (s *controlServer) start() error {
	if err := os.MkdirAll(filepath.Dir(s.addr), 0o755); err != nil {
		return err
	}
	_ = os.Remove(s.addr)
	unixListener, err := net.Listen("unix", s.addr)
	if err != nil {
		return err
	}
	if l, ok := unixListener.(*net.UnixListener); ok {
		l.SetUnlinkOnClose(true)
	}
	go s.server.Serve(unixListener)
	return nil
}

func (s *controlServer) stop() error {
	_ = os.Remove(s.addr)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*2)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *controlServer) register(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, jsonResponse(handler))
}

// configRegistry maps the ids handed out to control clients to IP configs.
type configRegistry struct {
	mu      sync.Mutex
	nextID  uint64
	configs map[uint64]*dnsmgr.IPConfig
}

func (r *configRegistry) add(c *dnsmgr.IPConfig) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.configs == nil {
		r.configs = make(map[uint64]*dnsmgr.IPConfig)
	}
	r.nextID++
	r.configs[r.nextID] = c
	return r.nextID
}

func (r *configRegistry) take(id uint64) *dnsmgr.IPConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.configs[id]
	delete(r.configs, id)
	return c
}

// registerControlServerHandler routes the control requests to dm.
func registerControlServerHandler(s *controlServer, dm *dnsmanager.Manager, registry *configRegistry, reload func()) {
	s.register("POST "+beginPath, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := batchRequest{Caller: "control"}
		_ = json.NewDecoder(r.Body).Decode(&req)
		dm.BeginUpdates(req.Caller)
		w.WriteHeader(http.StatusOK)
	}))
	s.register("POST "+endPath, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := batchRequest{Caller: "control"}
		_ = json.NewDecoder(r.Body).Decode(&req)
		dm.EndUpdates(req.Caller)
		w.WriteHeader(http.StatusOK)
	}))
	s.register("POST "+addConfigPath, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req addConfigRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Config == nil {
			http.Error(w, "missing config", http.StatusBadRequest)
			return
		}
		typ, err := dnsmgr.ParseIPConfigType(req.Kind)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := dm.AddIPConfig(req.Iface, req.Config, typ); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		id := registry.add(req.Config)
		mainLog.Load().Debug().Msgf("added %s config of %s, id: %d", typ, req.Iface, id)
		if err := json.NewEncoder(w).Encode(&addConfigResponse{ID: id}); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}))
	s.register("POST "+removeConfigPath, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req removeConfigRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		c := registry.take(req.ID)
		if c == nil || !dm.RemoveIPConfig(c) {
			http.Error(w, "unknown config", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	s.register("POST "+hostnamePath, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req hostnameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		dm.SetHostname(req.Hostname)
		w.WriteHeader(http.StatusOK)
	}))
	s.register("GET "+statusPath, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewEncoder(w).Encode(dm.Status()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}))
	s.register("POST "+reloadPath, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reload == nil {
			http.Error(w, "reload is not supported", http.StatusNotImplemented)
			return
		}
		reload()
		w.WriteHeader(http.StatusOK)
	}))
}

func jsonResponse(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentTypeJson)
		next.ServeHTTP(w, r)
	})
}

// errControlServer is returned by the control client for non 200 responses.
var errControlServer = errors.New("control server error")
