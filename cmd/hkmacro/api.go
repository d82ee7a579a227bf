package main

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	sse "github.com/alexandrevicenzi/go-sse"
	"github.com/gorilla/mux"
	"github.com/mastercactapus/hkmacro/config"
	"github.com/mastercactapus/hkmacro/extract"
	"github.com/mastercactapus/hkmacro/hk"
	"github.com/mastercactapus/hkmacro/machine"
	"github.com/mastercactapus/hkmacro/storage"
	"github.com/mastercactapus/hkmacro/validate"
)

type api struct {
	http.Handler
	cfg   *config.Config
	store *storage.Store
	disp  *machine.Dispatcher
	log   *slog.Logger
	sse   *sse.Server
}

// event is published on /events/uploads.
type event struct {
	Type string       `json:"type"`
	Meta storage.Meta `json:"meta"`
}

type errorResponse struct {
	Error string `json:"error"`

	Line     int    `json:"line,omitempty"`
	Expected string `json:"expected,omitempty"`
	Text     string `json:"text,omitempty"`

	Issues []hk.Issue `json:"issues,omitempty"`
}

type extractResponse struct {
	storage.Meta
	URL string `json:"url"`
}

func newAPI(cfg *config.Config, store *storage.Store, disp *machine.Dispatcher, logger *slog.Logger) *api {
	r := mux.NewRouter()

	a := &api{
		Handler: r,
		cfg:     cfg,
		store:   store,
		disp:    disp,
		log:     logger,
		sse: sse.NewServer(&sse.Options{
			Logger: log.New(io.Discard, "", 0),
		}),
	}

	r.HandleFunc("/api/uploads", a.upload).Methods("POST")
	r.HandleFunc("/api/uploads", a.listUploads).Methods("GET")
	r.HandleFunc("/api/uploads/{id}", a.getUpload).Methods("GET")
	r.HandleFunc("/api/uploads/{id}/operations/{op:[0-9]+}/extract", a.extract).Methods("POST")
	r.HandleFunc("/api/uploads/{id}/dispatch", a.dispatch).Methods("POST")
	r.HandleFunc("/api/uploads/{id}/release", a.release).Methods("POST")
	r.HandleFunc("/api/audit", a.auditLog).Methods("GET")
	r.HandleFunc("/health", a.health).Methods("GET")

	fs := http.FileServer(http.Dir(store.Root()))
	r.PathPrefix("/data/").Handler(http.StripPrefix("/data", fs)).Methods("GET", "HEAD")
	r.PathPrefix("/events/").Handler(a.sse)

	return a
}

func (a *api) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		a.log.Error("write response", "err", err)
	}
}

func (a *api) fail(w http.ResponseWriter, status int, msg string, err error) {
	if status >= 500 {
		a.log.Error(msg, "err", err)
	}
	resp := errorResponse{Error: msg}
	if err != nil {
		resp.Error = msg + ": " + err.Error()
	}
	a.writeJSON(w, status, resp)
}

func (a *api) publish(typ string, meta storage.Meta) {
	data, err := json.Marshal(event{Type: typ, Meta: meta})
	if err != nil {
		a.log.Error("marshal event", "err", err)
		return
	}
	a.sse.SendMessage("/events/uploads", sse.SimpleMessage(string(data)))
}

func (a *api) forwardState(states <-chan machine.State) {
	for state := range states {
		data, err := json.Marshal(state)
		if err != nil {
			a.log.Error("marshal state", "err", err)
			continue
		}
		a.sse.SendMessage("/events/machine", sse.SimpleMessage(string(data)))
	}
}

func (a *api) upload(w http.ResponseWriter, req *http.Request) {
	if req.ContentLength > a.cfg.MaxUploadBytes() {
		a.fail(w, http.StatusRequestEntityTooLarge, "upload too large", nil)
		return
	}
	req.Body = http.MaxBytesReader(w, req.Body, a.cfg.MaxUploadBytes())
	file, hdr, err := req.FormFile("file")
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		a.fail(w, http.StatusRequestEntityTooLarge, "upload too large", nil)
		return
	}
	if err != nil {
		a.fail(w, http.StatusBadRequest, "missing file", err)
		return
	}
	defer file.Close()

	if !a.cfg.AllowedExtension(hdr.Filename) {
		a.fail(w, http.StatusUnsupportedMediaType, "unsupported file type "+strconv.Quote(hdr.Filename), nil)
		return
	}
	content, err := io.ReadAll(file)
	if err != nil {
		a.fail(w, http.StatusBadRequest, "read upload", err)
		return
	}

	p, err := hk.ParseWith(string(content), a.cfg.ParseOptions())
	var perr *hk.ParseError
	if errors.As(err, &perr) {
		a.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:    perr.Error(),
			Line:     perr.Line,
			Expected: perr.Expected,
			Text:     perr.Text,
		})
		return
	}
	if err != nil {
		a.fail(w, http.StatusUnprocessableEntity, "parse", err)
		return
	}
	a.cfg.Header(p)
	issues := validate.Validate(p, a.cfg.Technology, a.cfg.Limits)

	meta := storage.Describe(p, issues)
	meta.Description = req.FormValue("description")
	meta, err = a.store.SaveUpload(hdr.Filename, content, meta)
	if err != nil {
		a.fail(w, http.StatusInternalServerError, "save upload", err)
		return
	}

	a.audit(storage.AuditEvent{Event: "validate", ID: meta.ID, Errors: meta.Summary.Errors, Warnings: meta.Summary.Warnings})
	a.publish("uploaded", meta)
	a.writeJSON(w, http.StatusCreated, meta)
}

// audit records e; a failed audit write does not fail the request.
func (a *api) audit(e storage.AuditEvent) {
	err := a.store.Audit(e)
	if err != nil {
		a.log.Error("record audit event", "event", e.Event, "id", e.ID, "err", err)
	}
}

func (a *api) health(w http.ResponseWriter, req *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) auditLog(w http.ResponseWriter, req *http.Request) {
	events, err := a.store.AuditLog()
	if err != nil {
		a.fail(w, http.StatusInternalServerError, "read audit log", err)
		return
	}
	a.writeJSON(w, http.StatusOK, events)
}

func (a *api) listUploads(w http.ResponseWriter, req *http.Request) {
	list, err := a.store.List()
	if err != nil {
		a.fail(w, http.StatusInternalServerError, "list uploads", err)
		return
	}
	a.writeJSON(w, http.StatusOK, list)
}

func (a *api) getUpload(w http.ResponseWriter, req *http.Request) {
	meta, err := a.store.Load(mux.Vars(req)["id"])
	if errors.Is(err, storage.ErrNotFound) {
		a.fail(w, http.StatusNotFound, "upload not found", nil)
		return
	}
	if err != nil {
		a.fail(w, http.StatusInternalServerError, "load upload", err)
		return
	}
	a.writeJSON(w, http.StatusOK, meta)
}

// load parses and validates a stored upload. It writes the error response
// and returns nil on failure.
func (a *api) load(w http.ResponseWriter, id string) (*hk.Program, []hk.Issue, *storage.Meta) {
	data, meta, err := a.store.Original(id)
	if errors.Is(err, storage.ErrNotFound) {
		a.fail(w, http.StatusNotFound, "upload not found", nil)
		return nil, nil, nil
	}
	if err != nil {
		a.fail(w, http.StatusInternalServerError, "load upload", err)
		return nil, nil, nil
	}
	p, err := hk.ParseWith(string(data), a.cfg.ParseOptions())
	if err != nil {
		// pass-through config changed since upload
		a.fail(w, http.StatusUnprocessableEntity, "parse stored upload", err)
		return nil, nil, nil
	}
	a.cfg.Header(p)
	return p, validate.Validate(p, a.cfg.Technology, a.cfg.Limits), &meta
}

func (a *api) extract(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	op, err := strconv.Atoi(vars["op"])
	if err != nil {
		a.fail(w, http.StatusBadRequest, "invalid operation id", err)
		return
	}
	margin := a.cfg.SheetMargin
	if s := req.FormValue("margin"); s != "" {
		margin, err = strconv.ParseFloat(s, 64)
		if err != nil {
			a.fail(w, http.StatusBadRequest, "invalid margin", err)
			return
		}
	}

	p, issues, src := a.load(w, vars["id"])
	if p == nil {
		return
	}
	if hk.HasErrors(issues) {
		a.writeJSON(w, http.StatusConflict, errorResponse{Error: "program has validation errors", Issues: issues})
		return
	}

	res, err := extract.Extract(p, op, a.cfg.Technology, margin)
	var xerr *extract.Error
	if errors.As(err, &xerr) {
		status := http.StatusUnprocessableEntity
		switch xerr.Code {
		case extract.CodeOperationNotFound:
			status = http.StatusNotFound
		case extract.CodeInvalidMargin:
			status = http.StatusBadRequest
		}
		a.writeJSON(w, status, errorResponse{Error: xerr.Error()})
		return
	}
	if err != nil {
		a.fail(w, http.StatusInternalServerError, "extract", err)
		return
	}

	issues = append(res.Warnings, validate.Validate(res.Program, a.cfg.Technology, a.cfg.Limits)...)
	meta := storage.Describe(res.Program, issues)
	meta.Description = req.FormValue("description")
	if meta.Description == "" {
		meta.Description = src.Description
	}
	meta, err = a.store.SaveExtraction(src.ID, op, hk.Emit(res.Program, a.cfg.Emit), meta)
	if err != nil {
		a.fail(w, http.StatusInternalServerError, "save extraction", err)
		return
	}

	a.publish("extracted", meta)
	a.writeJSON(w, http.StatusCreated, extractResponse{Meta: meta, URL: "/data/" + storage.Path(meta)})
}

func (a *api) dispatch(w http.ResponseWriter, req *http.Request) {
	if a.disp == nil {
		a.fail(w, http.StatusServiceUnavailable, "no machine configured", nil)
		return
	}
	p, issues, _ := a.load(w, mux.Vars(req)["id"])
	if p == nil {
		return
	}

	res, err := a.disp.Dispatch(req.Context(), p, issues, a.cfg.Emit)
	switch {
	case errors.Is(err, machine.ErrInvalidProgram):
		a.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Issues: issues})
	case errors.Is(err, machine.ErrBusy):
		a.fail(w, http.StatusConflict, "machine busy", nil)
	case err != nil:
		a.fail(w, http.StatusBadGateway, "dispatch", err)
	default:
		a.writeJSON(w, http.StatusOK, res)
	}
}

func (a *api) release(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	approver := strings.TrimSpace(req.FormValue("approver"))
	if approver == "" {
		a.fail(w, http.StatusBadRequest, "approver required", nil)
		return
	}

	p, issues, _ := a.load(w, id)
	if p == nil {
		return
	}
	if hk.HasErrors(issues) {
		a.log.Warn("release rejected", "id", id, "approver", approver)
		a.writeJSON(w, http.StatusConflict, errorResponse{Error: "program is not ready for production release", Issues: issues})
		return
	}

	meta, err := a.store.Release(id, approver)
	if errors.Is(err, storage.ErrNotFound) {
		a.fail(w, http.StatusNotFound, "upload not found", nil)
		return
	}
	if err != nil {
		a.fail(w, http.StatusInternalServerError, "record release", err)
		return
	}

	a.publish("released", meta)
	a.writeJSON(w, http.StatusOK, meta)
}
