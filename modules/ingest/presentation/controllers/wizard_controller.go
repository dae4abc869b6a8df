package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/agrovault/trialbase/modules/ingest/domain/aggregates/session"
	"github.com/agrovault/trialbase/modules/ingest/services"
	"github.com/agrovault/trialbase/pkg/application"
	"github.com/agrovault/trialbase/pkg/configuration"
	"github.com/agrovault/trialbase/pkg/httpapi"
	"github.com/agrovault/trialbase/pkg/shared"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// previewRowLimit caps how many validated rows a step response carries.
// The file's row_count still reports the full size.
const previewRowLimit = 100

type WizardController struct {
	app      application.Application
	wizard   *services.WizardService
	reports  *services.ReportService
	basePath string
}

func NewWizardController(app application.Application) application.Controller {
	return &WizardController{
		app:      app,
		wizard:   app.Service(services.WizardService{}).(*services.WizardService),
		reports:  app.Service(services.ReportService{}).(*services.ReportService),
		basePath: "/upload",
	}
}

func (c *WizardController) Key() string {
	return c.basePath
}

func (c *WizardController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("/sessions", c.Begin).Methods(http.MethodPost)
	router.HandleFunc("/sessions/resume", c.Resume).Methods(http.MethodGet)
	router.HandleFunc("/sessions/{id}", c.Get).Methods(http.MethodGet)
	router.HandleFunc("/sessions/{id}/file", c.SubmitFile).Methods(http.MethodPost)
	router.HandleFunc("/sessions/{id}/defaults", c.ChooseDefaults).Methods(http.MethodPost)
	router.HandleFunc("/sessions/{id}/preview", c.Preview).Methods(http.MethodPost)
	router.HandleFunc("/sessions/{id}/commit", c.Commit).Methods(http.MethodPost)
	router.HandleFunc("/sessions/{id}/reports/issues", c.IssueReport).Methods(http.MethodGet)
	router.HandleFunc("/sessions/{id}/reports/observations", c.ObservationReport).Methods(http.MethodGet)
}

// Begin opens a wizard run for the requesting owner, or rewinds the one
// already active. The owner is identified by the sid cookie; a new one
// is issued when the request carries none.
func (c *WizardController) Begin(w http.ResponseWriter, r *http.Request) {
	var dto session.BeginDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "UPLOAD_INVALID_JSON", "invalid json", nil)
		return
	}
	if errs, ok := dto.Ok(r.Context()); !ok {
		writeWizardValidationError(w, errs)
		return
	}

	ownerKey := c.ownerKey(w, r)
	sess, err := c.wizard.Begin(r.Context(), ownerKey, dto.Kind())
	if err != nil {
		writeWizardError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, map[string]any{"session": sessionBody(sess)})
}

// Resume returns the owner's active run so a reloaded client can pick
// up where it left off.
func (c *WizardController) Resume(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(configuration.Use().SidCookieKey)
	if err != nil || cookie.Value == "" {
		httpapi.WriteError(w, http.StatusNotFound, "UPLOAD_NO_ACTIVE_SESSION", session.ErrNoActiveSession.Error(), nil)
		return
	}
	res, err := c.wizard.Resume(r.Context(), cookie.Value)
	if err != nil {
		writeWizardError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, stepBody(res))
}

func (c *WizardController) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	res, err := c.wizard.Get(r.Context(), id)
	if err != nil {
		writeWizardError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, stepBody(res))
}

// SubmitFile stores the uploaded CSV and runs header and row validation.
// The multipart field is named "file".
func (c *WizardController) SubmitFile(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	conf := configuration.Use()
	r.Body = http.MaxBytesReader(w, r.Body, conf.MaxUploadSize)
	if err := r.ParseMultipartForm(conf.MaxUploadSize); err != nil {
		httpapi.WriteError(w, http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE",
			fmt.Sprintf("upload exceeds the %d byte limit", conf.MaxUploadSize), nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "UPLOAD_MISSING_FILE", `multipart field "file" is required`, nil)
		return
	}
	defer func() { _ = file.Close() }()

	content, err := io.ReadAll(file)
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "UPLOAD_UNREADABLE", "failed to read uploaded file", nil)
		return
	}

	res, err := c.wizard.SubmitFile(r.Context(), id, header.Filename, content)
	if err != nil {
		writeWizardError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, stepBody(res))
}

// ChooseDefaults records the global defaults and re-validates the stored
// file with them applied.
func (c *WizardController) ChooseDefaults(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var dto session.DefaultsDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "UPLOAD_INVALID_JSON", "invalid json", nil)
		return
	}
	if errs, ok := dto.Ok(r.Context()); !ok {
		writeWizardValidationError(w, errs)
		return
	}
	defaults, err := dto.ToDefaults(configuration.Use().Upload.DateFormat)
	if err != nil {
		writeWizardValidationError(w, map[string]string{"date": err.Error()})
		return
	}

	res, err := c.wizard.ChooseDefaults(r.Context(), id, defaults)
	if err != nil {
		writeWizardError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, stepBody(res))
}

// Preview re-validates the merged rows and, when nothing blocks, moves
// the run to the confirmed stage and returns the commit plan.
func (c *WizardController) Preview(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	res, err := c.wizard.Preview(r.Context(), id)
	if err != nil {
		writeWizardError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, stepBody(res))
}

// Commit inserts the confirmed rows. On success the run is finished and
// the response carries what was inserted and created.
func (c *WizardController) Commit(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	sess, result, err := c.wizard.Commit(r.Context(), id)
	if err != nil {
		writeWizardError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"session": sessionBody(sess),
		"result":  result,
	})
}

// IssueReport streams the validation findings as a spreadsheet.
func (c *WizardController) IssueReport(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	content, filename, err := c.reports.IssueReport(r.Context(), id)
	if err != nil {
		writeWizardError(w, err)
		return
	}
	writeAttachment(w, content, filename)
}

// ObservationReport streams the inserted observations as a spreadsheet.
func (c *WizardController) ObservationReport(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	content, filename, err := c.reports.ObservationReport(r.Context(), id)
	if err != nil {
		writeWizardError(w, err)
		return
	}
	writeAttachment(w, content, filename)
}

// ownerKey reads the sid cookie, issuing a fresh one when absent so the
// wizard run survives page reloads.
func (c *WizardController) ownerKey(w http.ResponseWriter, r *http.Request) string {
	conf := configuration.Use()
	if cookie, err := r.Cookie(conf.SidCookieKey); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	key := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     conf.SidCookieKey,
		Value:    key,
		Path:     "/",
		HttpOnly: true,
		Secure:   conf.Scheme() == "https",
		SameSite: http.SameSiteLaxMode,
	})
	return key
}

func sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := shared.ParseUUID(r)
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "UPLOAD_INVALID_ID", "session id must be a uuid", nil)
		return uuid.Nil, false
	}
	return id, true
}

func sessionBody(sess *session.Session) map[string]any {
	body := map[string]any{
		"id":         sess.ID(),
		"dataset":    string(sess.Dataset()),
		"stage":      string(sess.Stage()),
		"defaults":   sess.Defaults(),
		"created_at": sess.CreatedAt(),
		"updated_at": sess.UpdatedAt(),
	}
	if f := sess.File(); f != nil {
		body["file"] = map[string]any{
			"filename":  f.Filename,
			"sha256":    f.SHA256,
			"size":      f.Size,
			"mime":      f.Mime,
			"row_count": f.RowCount,
			"headers":   f.Headers,
		}
	}
	if ids := sess.Citations(); len(ids) > 0 {
		body["citations"] = ids
	}
	if sess.LastError() != "" {
		body["last_error"] = sess.LastError()
	}
	return body
}

func stepBody(res *services.StepResult) map[string]any {
	body := map[string]any{"session": sessionBody(res.Session)}
	if res.Summary != nil {
		body["summary"] = res.Summary
	}
	if len(res.Gaps) > 0 {
		body["gaps"] = res.Gaps
	}
	if res.Plan != nil {
		body["plan"] = res.Plan
	}
	if len(res.Rows) > 0 {
		rows := res.Rows
		if len(rows) > previewRowLimit {
			rows = rows[:previewRowLimit]
		}
		body["rows"] = rows
	}
	return body
}

func writeAttachment(w http.ResponseWriter, content []byte, filename string) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

func writeWizardValidationError(w http.ResponseWriter, errs map[string]string) {
	fields := make(map[string]any, len(errs))
	for k, v := range errs {
		fields[k] = v
	}
	httpapi.WriteError(w, http.StatusUnprocessableEntity, "UPLOAD_VALIDATION_FAILED", "validation failed", fields)
}

func writeWizardError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		httpapi.WriteError(w, http.StatusNotFound, "UPLOAD_NOT_FOUND", session.ErrNotFound.Error(), nil)
	case errors.Is(err, session.ErrNoActiveSession):
		httpapi.WriteError(w, http.StatusNotFound, "UPLOAD_NO_ACTIVE_SESSION", session.ErrNoActiveSession.Error(), nil)
	case errors.Is(err, session.ErrNoFile):
		httpapi.WriteError(w, http.StatusConflict, "UPLOAD_NO_FILE", session.ErrNoFile.Error(), nil)
	case errors.Is(err, session.ErrInvalidTransition):
		httpapi.WriteError(w, http.StatusConflict, "UPLOAD_INVALID_STAGE", err.Error(), nil)
	case errors.Is(err, services.ErrNotCommittable):
		httpapi.WriteError(w, http.StatusConflict, "UPLOAD_NOT_COMMITTABLE", err.Error(), nil)
	case errors.Is(err, services.ErrUnknownDataset):
		httpapi.WriteError(w, http.StatusUnprocessableEntity, "UPLOAD_UNKNOWN_DATASET", err.Error(), nil)
	default:
		httpapi.WriteError(w, http.StatusInternalServerError, "UPLOAD_INTERNAL", "internal error", nil)
	}
}
