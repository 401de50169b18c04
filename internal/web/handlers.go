package web

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cjeanneret/RoverGo/internal/logic/program"
)

// maxBodyBytes bounds POST bodies.
const maxBodyBytes = 1 << 20

// Runner is the program layer driven by the web UI. *program.Runner
// implements it.
type Runner interface {
	Programs() []program.Program
	Selected() string
	Select(name string) error
	Next() string
	State() (program.State, string)
	Start(ctx context.Context, name string) (string, <-chan error, error)
}

// RunRequest is the body of POST /run. An empty program runs the selected one.
type RunRequest struct {
	Program string `json:"program"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	State    string `json:"state"`
	Program  string `json:"program,omitempty"`
	Selected string `json:"selected,omitempty"`
}

// ProgramInfo describes one program in GET /programs.
type ProgramInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Steps       int    `json:"steps"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Runner      Runner
	staticFS    fs.FS
	upgrader    websocket.Upgrader

	mu      sync.Mutex
	base    context.Context
	current *activeRun
}

// activeRun is a program started from the web UI.
type activeRun struct {
	name   string
	cancel context.CancelFunc
}

// NewHandlers creates handlers with the given dependencies.
// If runner is nil, program endpoints return 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, runner Runner, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		Runner:      runner,
		staticFS:    staticFS,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		base: context.Background(),
	}
}

// setBase sets the parent context of program runs.
func (h *Handlers) setBase(ctx context.Context) {
	h.mu.Lock()
	h.base = ctx
	h.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (h *Handlers) available(w http.ResponseWriter) bool {
	if h.Runner == nil {
		http.Error(w, "programs not configured", http.StatusServiceUnavailable)
		return false
	}
	return true
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandlePrograms lists the loaded programs in run order.
func (h *Handlers) HandlePrograms(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	progs := h.Runner.Programs()
	out := make([]ProgramInfo, 0, len(progs))
	for _, p := range progs {
		out = append(out, ProgramInfo{Name: p.Name, Description: p.Description, Steps: len(p.Steps)})
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleStatus returns the sequencer state.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	writeJSON(w, http.StatusOK, h.status())
}

func (h *Handlers) status() StatusResponse {
	st, cur := h.Runner.State()
	return StatusResponse{State: st.String(), Program: cur, Selected: h.Runner.Selected()}
}

// HandleRun handles POST /run to start a program.
func (h *Handlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RunRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if !h.available(w) {
		return
	}

	h.mu.Lock()
	ctx, cancel := context.WithCancel(h.base)
	h.mu.Unlock()

	name, done, err := h.Runner.Start(ctx, req.Program)
	switch {
	case errors.Is(err, program.ErrUnknownProgram):
		cancel()
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, program.ErrSequenceActive):
		cancel()
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		cancel()
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	run := &activeRun{name: name, cancel: cancel}
	h.mu.Lock()
	h.current = run
	h.mu.Unlock()
	h.Broadcaster.BroadcastState(program.Running.String(), name)

	go func() {
		err := <-done
		h.mu.Lock()
		if h.current == run {
			h.current = nil
		}
		h.mu.Unlock()
		cancel()

		if err != nil {
			h.Broadcaster.Broadcast("error", "Program "+name+" failed: "+err.Error())
			log.Printf("program %s failed: %v", name, err)
		} else {
			h.Broadcaster.Broadcast("info", "Program "+name+" complete")
		}
		h.Broadcaster.BroadcastState(program.Idle.String(), "")
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started", "program": name})
}

// HandleStop cancels the running program. The drive base is stopped by the
// control loop that observes the cancellation.
func (h *Handlers) HandleStop(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	run := h.current
	h.mu.Unlock()
	if run == nil {
		http.Error(w, "no program running", http.StatusConflict)
		return
	}
	run.cancel()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "stopping", "program": run.name})
}

// HandleSelect selects a program by name, or the next one when the body
// names none.
func (h *Handlers) HandleSelect(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if !h.available(w) {
		return
	}
	selected := ""
	if req.Program == "" {
		selected = h.Runner.Next()
	} else {
		if err := h.Runner.Select(req.Program); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		selected = req.Program
	}
	writeJSON(w, http.StatusOK, map[string]string{"selected": selected})
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// HandleStatusWS mirrors the status stream over a websocket. The first
// message is the current state.
func (h *Handlers) HandleStatusWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrading status websocket: %v", err)
		return
	}
	defer ws.Close()

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	state := StatusEvent{Time: time.Now().Format(time.RFC3339), Level: "state", State: program.Idle.String()}
	if h.Runner != nil {
		st := h.status()
		state.State, state.Program = st.State, st.Program
	}
	if err := ws.WriteJSON(state); err != nil {
		return
	}

	// The client only listens; reading detects when it goes away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}
