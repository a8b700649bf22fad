package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/runtrace/runtrace/internal/export"
	"github.com/runtrace/runtrace/internal/feed"
	"github.com/runtrace/runtrace/internal/geo"
	"github.com/runtrace/runtrace/internal/records"
	"github.com/runtrace/runtrace/internal/render"
	"github.com/runtrace/runtrace/internal/session"
	"github.com/shirou/gopsutil/v3/process"
)

const (
	minRouteSize = 64
	maxRouteSize = 2048
	maxFixBody   = 1 << 20
)

// Controller is the run API the server drives. *tracker.Tracker
// implements it.
type Controller interface {
	Snapshotter
	Start() error
	Pause() bool
	Resume() bool
	Stop() bool
	Clear()
	Summary() session.Summary
	FeedStatus() session.FeedStatus
}

// ControlResponse answers a run control request. Changed is false when
// the request did not apply in the current phase.
type ControlResponse struct {
	Changed bool             `json:"changed"`
	Run     session.Snapshot `json:"run"`
}

// HealthResponse is served by /api/health.
type HealthResponse struct {
	Status    string             `json:"status"`
	Phase     session.Phase      `json:"phase"`
	Feed      session.FeedStatus `json:"feed"`
	Clients   int                `json:"clients"`
	UptimeSec float64            `json:"uptimeSec"`
	RSSBytes  uint64             `json:"rssBytes,omitempty"`
	CPU       float64            `json:"cpuPercent"`
}

// RecordsResponse is served by /api/records.
type RecordsResponse struct {
	Stats        *records.Stats     `json:"stats"`
	Achievements []records.Unlocked `json:"achievements"`
}

type Server struct {
	ctrl           Controller
	broadcaster    *Broadcaster
	archive        *export.Archive
	book           *records.Book
	push           *feed.Push
	privacy        *session.PrivacyFilter
	route          render.Options
	frontend       http.Handler
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	authToken      string
	started        time.Time
	proc           *process.Process
	now            func() time.Time
}

func NewServer(ctrl Controller, broadcaster *Broadcaster, allowedOrigins []string, authToken string) *Server {
	s := &Server{
		ctrl:           ctrl,
		broadcaster:    broadcaster,
		privacy:        &session.PrivacyFilter{},
		route:          render.DefaultOptions(),
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		authToken:      authToken,
		started:        time.Now(),
		now:            time.Now,
	}

	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		s.proc = p
	}

	return s
}

// SetArchive enables the /api/runs endpoints.
func (s *Server) SetArchive(a *export.Archive) { s.archive = a }

// SetRecords enables /api/records.
func (s *Server) SetRecords(b *records.Book) { s.book = b }

// SetPush enables POST /api/fixes.
func (s *Server) SetPush(p *feed.Push) { s.push = p }

// SetPrivacy sets the filter applied to exports and route images.
func (s *Server) SetPrivacy(f *session.PrivacyFilter) {
	if f == nil {
		f = &session.PrivacyFilter{}
	}
	s.privacy = f
}

// SetRouteOptions sets the default route image style and size.
func (s *Server) SetRouteOptions(o render.Options) { s.route = o }

// SetFrontend serves h at "/" for anything the API does not handle.
func (s *Server) SetFrontend(h http.Handler) { s.frontend = h }

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("GET /api/run", s.handleRun)
	mux.HandleFunc("GET /api/run/summary", s.handleSummary)
	mux.HandleFunc("POST /api/run/{action}", s.handleControl)
	mux.HandleFunc("GET /api/run/export.json", s.handleExportJSON)
	mux.HandleFunc("GET /api/run/export.gpx", s.handleExportGPX)
	mux.HandleFunc("GET /api/run/route.png", s.handleRoutePNG)
	mux.HandleFunc("GET /api/runs", s.handleRunList)
	mux.HandleFunc("/api/runs/{id}", s.handleArchivedRun)
	mux.HandleFunc("GET /api/runs/{id}/{file}", s.handleArchivedFile)
	mux.HandleFunc("POST /api/fixes", s.handleFixes)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/records", s.handleRecords)

	if s.frontend != nil {
		mux.Handle("/", s.frontend)
	}
}

// Handler returns the routes wrapped with the security headers.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return securityHeaders(mux)
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Content-Security-Policy", "default-src 'self'")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}

	c, err := s.broadcaster.AddClient(conn)
	if err != nil {
		log.Printf("Rejecting WebSocket client %s: %v", r.RemoteAddr, err)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()),
			time.Now().Add(time.Second))
		conn.Close()
		return
	}
	log.Printf("WebSocket client connected: %s", r.RemoteAddr)

	go func() {
		defer func() {
			s.broadcaster.RemoveClient(c)
			log.Printf("WebSocket client disconnected: %s", r.RemoteAddr)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Summary())
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	changed := true
	switch r.PathValue("action") {
	case "start":
		if err := s.ctrl.Start(); err != nil {
			if s.broadcaster != nil {
				s.broadcaster.QueueError(err.Error())
			}
			status := http.StatusInternalServerError
			if errors.Is(err, feed.ErrUnavailable) {
				status = http.StatusServiceUnavailable
			}
			writeJSON(w, status, ErrorPayload{Message: err.Error()})
			return
		}
	case "pause":
		changed = s.ctrl.Pause()
	case "resume":
		changed = s.ctrl.Resume()
	case "stop":
		changed = s.ctrl.Stop()
	case "clear":
		s.ctrl.Clear()
	default:
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, ControlResponse{Changed: changed, Run: s.ctrl.Snapshot()})
}

func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	s.writeExportJSON(w, s.privacy.Apply(s.ctrl.Snapshot()))
}

func (s *Server) handleExportGPX(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	s.writeExportGPX(w, s.privacy.Apply(s.ctrl.Snapshot()))
}

func (s *Server) handleRoutePNG(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	s.writeRoutePNG(w, r, s.privacy.Apply(s.ctrl.Snapshot()))
}

func (s *Server) handleRunList(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if s.archive == nil {
		http.Error(w, "archive not available", http.StatusServiceUnavailable)
		return
	}

	entries, err := s.archive.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleArchivedRun(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if s.archive == nil {
		http.Error(w, "archive not available", http.StatusServiceUnavailable)
		return
	}

	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		rec, err := s.archive.Load(id)
		if err != nil {
			writeArchiveError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	case http.MethodDelete:
		if err := s.archive.Delete(id); err != nil {
			writeArchiveError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleArchivedFile(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if s.archive == nil {
		http.Error(w, "archive not available", http.StatusServiceUnavailable)
		return
	}

	rec, err := s.archive.Load(r.PathValue("id"))
	if err != nil {
		writeArchiveError(w, err)
		return
	}
	snap := s.privacy.Apply(rec.Run)

	switch r.PathValue("file") {
	case "export.json":
		s.writeExportJSON(w, snap)
	case "export.gpx":
		s.writeExportGPX(w, snap)
	case "route.png":
		s.writeRoutePNG(w, r, snap)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// fixRequest is the body of POST /api/fixes: either a fix or a feed error.
type fixRequest struct {
	Fix   *geo.Fix `json:"fix"`
	Error string   `json:"error"`
}

func (s *Server) handleFixes(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if s.push == nil {
		http.Error(w, "push feed not enabled", http.StatusNotFound)
		return
	}

	var req fixRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFixBody)).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid body: %v", err), http.StatusBadRequest)
		return
	}

	var err error
	switch {
	case req.Fix != nil:
		err = s.push.Ingest(*req.Fix)
	case req.Error != "":
		err = s.push.Report(req.Error)
	default:
		http.Error(w, `body needs "fix" or "error"`, http.StatusBadRequest)
		return
	}

	switch {
	case err == nil:
		w.WriteHeader(http.StatusAccepted)
	case errors.Is(err, geo.ErrInvalidFix):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, feed.ErrNoSubscribers):
		http.Error(w, "no active run", http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	fs := s.ctrl.FeedStatus()
	resp := HealthResponse{
		Status:    "ok",
		Phase:     s.ctrl.Snapshot().Phase,
		Feed:      fs,
		UptimeSec: s.now().Sub(s.started).Seconds(),
	}
	if fs.Health == "failed" {
		resp.Status = "degraded"
	}
	if s.broadcaster != nil {
		resp.Clients = s.broadcaster.ClientCount()
	}
	if s.proc != nil {
		if mi, err := s.proc.MemoryInfo(); err == nil {
			resp.RSSBytes = mi.RSS
		}
		if cpu, err := s.proc.CPUPercent(); err == nil {
			resp.CPU = cpu
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if s.book == nil {
		http.Error(w, "records not available", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, RecordsResponse{
		Stats:        s.book.Stats(),
		Achievements: s.book.Achievements(),
	})
}

func (s *Server) writeExportJSON(w http.ResponseWriter, snap session.Snapshot) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", attachment(export.Filename(snap, "json")))
	if err := export.WriteJSON(w, snap, s.now()); err != nil {
		log.Printf("JSON export failed: %v", err)
	}
}

func (s *Server) writeExportGPX(w http.ResponseWriter, snap session.Snapshot) {
	w.Header().Set("Content-Type", "application/gpx+xml")
	w.Header().Set("Content-Disposition", attachment(export.Filename(snap, "gpx")))
	if err := export.WriteGPX(w, snap, s.now()); err != nil {
		log.Printf("GPX export failed: %v", err)
	}
}

func (s *Server) writeRoutePNG(w http.ResponseWriter, r *http.Request, snap session.Snapshot) {
	opts := s.route
	if v, ok := sizeParam(r, "w"); ok {
		opts.Width = v
	}
	if v, ok := sizeParam(r, "h"); ok {
		opts.Height = v
	}

	w.Header().Set("Content-Type", "image/png")
	if err := render.RoutePNG(w, snap.Points, opts); err != nil {
		log.Printf("Route render failed: %v", err)
	}
}

func sizeParam(r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return min(max(v, minRouteSize), maxRouteSize), true
}

func attachment(name string) string {
	return fmt.Sprintf("attachment; filename=%q", name)
}

func writeArchiveError(w http.ResponseWriter, err error) {
	if errors.Is(err, export.ErrNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func (s *Server) authorize(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}

	if r.URL.Query().Get("token") == s.authToken {
		return true
	}

	if r.Header.Get("X-Runtrace-Token") == s.authToken {
		return true
	}

	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.authToken {
		return true
	}

	return false
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	host := parsed.Host
	if host == r.Host {
		return true
	}

	hostname := parsed.Hostname()
	return hostname == "localhost" || hostname == "127.0.0.1" || hostname == "::1"
}

// ListenAndServe runs srv until it is shut down.
func ListenAndServe(srv *http.Server) error {
	log.Printf("Server listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
