package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/aryannaik/holocron/internal/collection"
	"github.com/aryannaik/holocron/internal/mutation"
	"github.com/aryannaik/holocron/internal/search"
	"github.com/aryannaik/holocron/internal/session"
	"github.com/aryannaik/holocron/internal/swapi"
)

const maxBodyBytes = 1 << 20

// BreakerStater reports the gateway circuit breaker state.
type BreakerStater interface {
	BreakerState() string
}

type Handlers struct {
	session      *session.Session
	hub          *Hub
	breaker      BreakerStater
	previewLimit int
	logger       *log.Logger
}

func NewHandlers(sess *session.Session, hub *Hub, breaker BreakerStater, previewLimit int, logger *log.Logger) *Handlers {
	return &Handlers{
		session:      sess,
		hub:          hub,
		breaker:      breaker,
		previewLimit: previewLimit,
		logger:       logger,
	}
}

type searchResponse struct {
	search.Snapshot
	Preview []search.Group `json:"preview"`
}

func (h *Handlers) searchBody(snap search.Snapshot, limit int) searchResponse {
	return searchResponse{Snapshot: snap, Preview: search.Preview(snap.Results, limit)}
}

// HandleSearch commits ?q= and waits for it to settle. Without q it returns
// the current snapshot.
func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), h.previewLimit)
	if !r.URL.Query().Has("q") {
		writeJSON(w, http.StatusOK, h.searchBody(h.session.Search().Snapshot(), limit))
		return
	}

	snap, err := h.session.Search().Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil && r.Context().Err() != nil {
		// client went away; nobody to answer
		return
	}
	if err != nil && !errors.Is(err, search.ErrStaleResult) {
		h.logger.Printf("search error: %v", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.searchBody(snap, limit))
}

type queryRequest struct {
	Text string `json:"text"`
}

// HandleQueryChange records one keystroke. The settled result is pushed over
// the websocket.
func (h *Handlers) HandleQueryChange(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	h.session.Search().OnQueryChange(req.Text)
	writeJSON(w, http.StatusAccepted, h.searchBody(h.session.Search().Snapshot(), h.previewLimit))
}

// HandleList applies page and sort intents and returns the collection state.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	if q.Has("sort") {
		col := q.Get("sort")
		if col == "" {
			v.ClearSort()
		} else {
			dir, err := collection.ParseDirection(q.Get("dir"))
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
				return
			}
			if err := v.SetSort(col, dir); err != nil {
				writeError(w, err)
				return
			}
		}
	}

	page := v.CurrentPage()
	if s := q.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid page"))
			return
		}
		page = n
	}
	if err := v.GoToPage(r.Context(), page); err != nil {
		h.logger.Printf("list %s page %d: %v", v.Resource(), page, err)
		writeError(w, err)
		return
	}
	h.respondState(w, http.StatusOK, v)
}

func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	rt, ok := resourceType(w, r)
	if !ok {
		return
	}
	e, err := h.session.Detail(r.Context(), rt, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	e, ok := decodeEntity(w, r, v.Resource())
	if !ok {
		return
	}
	m, err := h.session.Mutations(v.Resource())
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := m.Create(e); err != nil {
		writeError(w, err)
		return
	}
	h.respondState(w, http.StatusCreated, v)
}

func (h *Handlers) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	existing, ok := h.row(w, r, v)
	if !ok {
		return
	}
	e, ok := decodeEntity(w, r, v.Resource())
	if !ok {
		return
	}
	b := e.Common()
	b.URL = existing.Identity()
	if b.Created == "" {
		b.Created = existing.Common().Created
	}

	m, err := h.session.Mutations(v.Resource())
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := m.Update(e); err != nil {
		writeError(w, err)
		return
	}
	h.respondState(w, http.StatusOK, v)
}

func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	existing, ok := h.row(w, r, v)
	if !ok {
		return
	}
	m, err := h.session.Mutations(v.Resource())
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := m.Delete(existing); err != nil {
		writeError(w, err)
		return
	}
	h.respondState(w, http.StatusOK, v)
}

type statusResponse struct {
	CacheEntries int    `json:"cacheEntries"`
	Breaker      string `json:"breaker,omitempty"`
	Subscribers  int    `json:"subscribers"`
	SearchState  string `json:"searchState"`
}

func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		CacheEntries: h.session.Cache().Len(),
		Subscribers:  h.hub.Clients(),
		SearchState:  h.session.Search().Snapshot().State.String(),
	}
	if h.breaker != nil {
		resp.Breaker = h.breaker.BreakerState()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) respondState(w http.ResponseWriter, status int, v *collection.View) {
	state := v.State()
	h.hub.Broadcast(Message{Type: MessageCollection, Data: state})
	writeJSON(w, status, state)
}

func (h *Handlers) view(w http.ResponseWriter, r *http.Request) (*collection.View, bool) {
	rt, ok := resourceType(w, r)
	if !ok {
		return nil, false
	}
	v, err := h.session.View(rt)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return nil, false
	}
	return v, true
}

// row finds {id} on the view's current page.
func (h *Handlers) row(w http.ResponseWriter, r *http.Request, v *collection.View) (swapi.Entity, bool) {
	id := r.PathValue("id")
	e, ok := v.Find(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("no "+string(v.Resource())+" "+id+" on current page"))
		return nil, false
	}
	return e, true
}

func resourceType(w http.ResponseWriter, r *http.Request) (swapi.ResourceType, bool) {
	rt, err := swapi.ParseResourceType(r.PathValue("type"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return "", false
	}
	return rt, true
}

func decodeEntity(w http.ResponseWriter, r *http.Request, rt swapi.ResourceType) (swapi.Entity, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("read body"))
		return nil, false
	}
	e, err := swapi.DecodeEntity(rt, body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid "+string(rt)+" body: "+err.Error()))
		return nil, false
	}
	return e, true
}

// statusFor maps core errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case swapi.IsNotFound(err), errors.Is(err, session.ErrUnknownID):
		return http.StatusNotFound
	case swapi.IsFormat(err):
		return http.StatusBadGateway
	case swapi.IsTransport(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, collection.ErrPageOutOfRange),
		errors.Is(err, collection.ErrUnknownColumn),
		errors.Is(err, mutation.ErrResourceMismatch):
		return http.StatusBadRequest
	case errors.Is(err, mutation.ErrPageNotLoaded):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorBody(err.Error()))
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func parseInt(s string, def int) int {
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return def
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
