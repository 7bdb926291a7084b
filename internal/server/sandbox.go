package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/multiverse/internal/imaging"
	"github.com/desertthunder/multiverse/internal/models"
	"github.com/desertthunder/multiverse/internal/services"
	"github.com/desertthunder/multiverse/internal/shared"
)

const (
	maxUploadBytes   = 32 << 20
	defaultNumThemes = 9
	sandboxEngine    = "sandbox"
)

// SandboxOpts configures the fake backend.
type SandboxOpts struct {
	NotReadyPolls int // not-ready answers per result before the image is served
	StartCredits  int // balance of a user seen for the first time
	ImageSize     int // edge length of placeholder images
	Logger        *log.Logger
}

// DefaultSandboxOpts derives the options from the [server] config section.
func DefaultSandboxOpts(conf shared.ServerConfig, logger *log.Logger) SandboxOpts {
	return SandboxOpts{
		NotReadyPolls: conf.NotReadyPolls,
		StartCredits:  conf.StartCredits,
		ImageSize:     conf.ImageDimension,
		Logger:        logger,
	}
}

// catalog is the built-in theme list handed out in the default album mode.
var catalog = []models.AlbumTheme{
	{ThemeID: "theme-anime", Name: "Anime"},
	{ThemeID: "theme-watercolor", Name: "Watercolor"},
	{ThemeID: "theme-cyberpunk", Name: "Cyberpunk"},
	{ThemeID: "theme-renaissance", Name: "Renaissance"},
	{ThemeID: "theme-pixel", Name: "Pixel Art"},
	{ThemeID: "theme-noir", Name: "Film Noir"},
	{ThemeID: "theme-claymation", Name: "Claymation"},
	{ThemeID: "theme-ukiyoe", Name: "Ukiyo-e"},
	{ThemeID: "theme-vaporwave", Name: "Vaporwave"},
	{ThemeID: "theme-comic", Name: "Comic Book"},
	{ThemeID: "theme-lowpoly", Name: "Low Poly"},
	{ThemeID: "theme-stainedglass", Name: "Stained Glass"},
}

type sandboxUser struct {
	credits   int
	album     []models.AlbumTheme
	custom    []models.AlbumTheme
	purchases map[string]bool
}

type sandboxResult struct {
	owner string
	polls int
}

// Action is a telemetry event received by the sandbox.
type Action struct {
	UserID   string            `json:"user_id"`
	Action   string            `json:"action"`
	Metadata map[string]string `json:"metadata"`
}

// Sandbox is an in-memory fake of the generation backend.
//
// Every result image answers not-ready NotReadyPolls times, then serves a placeholder
// JPEG tagged with the X-Engine header.
type Sandbox struct {
	opts   SandboxOpts
	logger *log.Logger
	mux    *http.ServeMux
	routes []string

	mu         sync.Mutex
	users      map[string]*sandboxUser
	sources    map[string]string // source image id -> owner
	results    map[string]*sandboxResult
	jobs       int
	actions    []Action
	deviceLogs []string
}

// NewSandbox creates an empty sandbox.
func NewSandbox(opts SandboxOpts) *Sandbox {
	if opts.ImageSize <= 0 {
		opts.ImageSize = 256
	}
	if opts.NotReadyPolls < 0 {
		opts.NotReadyPolls = 0
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	s := &Sandbox{
		opts:    opts,
		logger:  opts.Logger,
		mux:     http.NewServeMux(),
		users:   make(map[string]*sandboxUser),
		sources: make(map[string]string),
		results: make(map[string]*sandboxResult),
	}

	handlers := map[string]http.HandlerFunc{
		"POST /api/upload":        s.handleUpload,
		"POST /api/create":        s.handleCreate,
		"POST /api/roll":          s.handleRoll,
		"POST /api/roll/test":     s.handleRoll,
		"GET /api/image/{id}":     s.handleImage,
		"GET /api/credits/{user}": s.handleCredits,
		"POST /api/use_credits":   s.handleUseCredits,
		"POST /one-time-purchase": s.handlePurchase,
		"GET /api/album":          s.handleGetAlbum,
		"DELETE /api/album":       s.handleRemoveFromAlbum,
		"POST /api/add_to_album":  s.handleAddToAlbum,
		"POST /api/create_theme":  s.handleCreateTheme,
		"POST /api/init_user":     s.handleInitUser,
		"POST /api/action":        s.handleAction,
		"POST /api/device/logs":   s.handleDeviceLog,
	}
	for pattern, h := range handlers {
		s.mux.Handle(pattern, h)
		s.routes = append(s.routes, pattern)
	}
	slices.Sort(s.routes)
	return s
}

// NewSandboxHandler returns the sandbox behind a [BasicRouter] with recovery and
// request logging.
func NewSandboxHandler(s *Sandbox) http.Handler {
	router := NewBasicRouter()
	router.Use(RecoverMiddleware(s.logger), LoggingMiddleware(s.logger))
	router.Handler(s)
	return router
}

// Routes implements [Handler].
func (s *Sandbox) Routes() []string { return s.routes }

// ServeHTTP implements [http.Handler].
func (s *Sandbox) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// Credits returns the balance of userID, creating the user if needed.
func (s *Sandbox) Credits(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user(userID).credits
}

// Actions returns a copy of every telemetry event received.
func (s *Sandbox) Actions() []Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.actions)
}

// DeviceLogs returns a copy of every device log message received.
func (s *Sandbox) DeviceLogs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.deviceLogs)
}

// user returns the record for id, creating it with the starting balance. Callers hold mu.
func (s *Sandbox) user(id string) *sandboxUser {
	u, ok := s.users[id]
	if !ok {
		u = &sandboxUser{credits: s.opts.StartCredits, purchases: make(map[string]bool)}
		s.users[id] = u
	}
	return u
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *Sandbox) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	userID := r.FormValue("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if _, _, err := r.FormFile("image"); err != nil {
		writeError(w, http.StatusBadRequest, "image is required")
		return
	}

	id := shared.GenerateID()
	s.mu.Lock()
	s.sources[id] = userID
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"source_image_id": id})
}

func (s *Sandbox) handleCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	userID := r.FormValue("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	_, _, imgErr := r.FormFile("image")
	if imgErr != nil && r.FormValue("user_description") == "" {
		writeError(w, http.StatusBadRequest, "an image or a description is required")
		return
	}

	sourceID := shared.GenerateID()
	s.mu.Lock()
	s.sources[sourceID] = userID
	s.mu.Unlock()

	s.writeJob(w, userID, sourceID, r.FormValue("num_themes"), r.FormValue("album"))
}

func (s *Sandbox) handleRoll(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	userID := r.FormValue("user_id")
	sourceID := r.FormValue("source_image_id")
	if userID == "" || sourceID == "" {
		writeError(w, http.StatusBadRequest, "user_id and source_image_id are required")
		return
	}

	s.mu.Lock()
	_, known := s.sources[sourceID]
	if !known {
		// sources from a previous sandbox run are adopted rather than rejected
		s.sources[sourceID] = userID
	}
	s.mu.Unlock()

	s.writeJob(w, userID, sourceID, r.FormValue("num_themes"), r.FormValue("album"))
}

func (s *Sandbox) writeJob(w http.ResponseWriter, userID, sourceID, numThemes, album string) {
	n := defaultNumThemes
	if numThemes != "" {
		v, err := strconv.Atoi(numThemes)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, "num_themes must be a non-negative integer")
			return
		}
		if v > 0 {
			n = v
		}
	}
	mode, err := models.ParseAlbumMode(album)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	themes := catalog
	if mode == models.AlbumModeMyAlbum {
		if mine := s.user(userID).album; len(mine) > 0 {
			themes = mine
		}
	}

	s.jobs++
	job := models.GenerationJob{RequestID: shared.GenerateID(), SourceImageID: sourceID}
	offset := (s.jobs - 1) * n
	for i := range n {
		theme := themes[(offset+i)%len(themes)]
		id := shared.GenerateID()
		s.results[id] = &sandboxResult{owner: userID}
		job.Images = append(job.Images, models.ThemeResult{
			ResultImageID: id,
			ThemeID:       theme.ThemeID,
			ThemeName:     theme.Name,
		})
	}

	s.logger.Debug("sandbox job created", "request_id", job.RequestID, "themes", n, "album", mode)
	writeJSON(w, http.StatusOK, job)
}

func (s *Sandbox) handleImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	userID := r.URL.Query().Get("user_id")

	s.mu.Lock()
	res, ok := s.results[id]
	if !ok || res.owner != userID {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "image not found")
		return
	}
	res.polls++
	polls := res.polls
	s.mu.Unlock()

	if polls <= s.opts.NotReadyPolls {
		status := services.StatusProcessing
		if polls == 1 {
			status = services.StatusNew
		}
		writeJSON(w, http.StatusOK, map[string]any{"ready": false, "status": status})
		return
	}

	data, err := imaging.Placeholder(id, s.opts.ImageSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set(services.EngineHeader, sandboxEngine)
	w.Write(data)
}

func (s *Sandbox) handleCredits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"credits": s.Credits(r.PathValue("user"))})
}

func (s *Sandbox) handleUseCredits(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID  string `json:"user_id"`
		Credits int    `json:"credits"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.UserID == "" || body.Credits <= 0 {
		writeError(w, http.StatusBadRequest, "user_id and a positive credits amount are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(body.UserID)
	if u.credits < body.Credits {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success":           false,
			"error":             "insufficient credits",
			"remaining_credits": u.credits,
		})
		return
	}
	u.credits -= body.Credits
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "remaining_credits": u.credits})
}

func (s *Sandbox) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID        string `json:"user_id"`
		TransactionID string `json:"transaction_id"`
		Credits       int    `json:"credits"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.UserID == "" || body.TransactionID == "" || body.Credits <= 0 {
		writeError(w, http.StatusBadRequest, "user_id, transaction_id and credits are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(body.UserID)
	if !u.purchases[body.TransactionID] {
		u.purchases[body.TransactionID] = true
		u.credits += body.Credits
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "credits": u.credits})
}

func (s *Sandbox) handleGetAlbum(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	s.mu.Lock()
	themes := slices.Clone(s.user(userID).album)
	s.mu.Unlock()

	if themes == nil {
		themes = []models.AlbumTheme{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"themes": themes})
}

type albumRequest struct {
	UserID  string `json:"user_id"`
	ThemeID string `json:"theme_id"`
}

func (s *Sandbox) handleAddToAlbum(w http.ResponseWriter, r *http.Request) {
	var body albumRequest
	if !decodeBody(w, r, &body) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(body.UserID)

	idx := slices.IndexFunc(slices.Concat(catalog, u.custom), func(t models.AlbumTheme) bool {
		return t.ThemeID == body.ThemeID
	})
	if idx < 0 {
		writeError(w, http.StatusNotFound, "theme not found")
		return
	}
	theme := slices.Concat(catalog, u.custom)[idx]
	if !slices.ContainsFunc(u.album, func(t models.AlbumTheme) bool { return t.ThemeID == theme.ThemeID }) {
		u.album = append(u.album, theme)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Sandbox) handleRemoveFromAlbum(w http.ResponseWriter, r *http.Request) {
	var body albumRequest
	if !decodeBody(w, r, &body) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(body.UserID)
	idx := slices.IndexFunc(u.album, func(t models.AlbumTheme) bool { return t.ThemeID == body.ThemeID })
	if idx < 0 {
		writeError(w, http.StatusNotFound, "theme not in album")
		return
	}
	u.album = slices.Delete(u.album, idx, idx+1)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Sandbox) handleCreateTheme(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID      string `json:"user_id"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.UserID == "" || body.Name == "" {
		writeError(w, http.StatusBadRequest, "user_id and name are required")
		return
	}

	theme := models.AlbumTheme{ThemeID: "custom-" + shared.GenerateID(), Name: body.Name}
	s.mu.Lock()
	u := s.user(body.UserID)
	u.custom = append(u.custom, theme)
	u.album = append(u.album, theme)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"theme_id": theme.ThemeID})
}

func (s *Sandbox) handleInitUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"user_id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if !shared.IsUUID(body.UserID) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("user_id %q is not a UUID", body.UserID))
		return
	}
	s.mu.Lock()
	credits := s.user(body.UserID).credits
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "credits": credits})
}

func (s *Sandbox) handleAction(w http.ResponseWriter, r *http.Request) {
	var body Action
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Action == "" {
		writeError(w, http.StatusBadRequest, "action is required")
		return
	}
	s.mu.Lock()
	s.actions = append(s.actions, body)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Sandbox) handleDeviceLog(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID  string `json:"user_id"`
		Message string `json:"message"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.mu.Lock()
	s.deviceLogs = append(s.deviceLogs, body.Message)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
