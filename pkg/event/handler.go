package event

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/klokku/eventboard/internal/rest"
	"github.com/klokku/eventboard/internal/revalidate"
	"github.com/klokku/eventboard/internal/utils"
	log "github.com/sirupsen/logrus"
)

type EventDTO struct {
	Id        string    `json:"id"`
	Title     string    `json:"title"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Notes     string    `json:"notes,omitempty"`
	Recurring bool      `json:"recurring"`
	CreatedAt time.Time `json:"createdAt"`
}

type ResultDTO struct {
	Success  bool        `json:"success"`
	Errors   FieldErrors `json:"errors,omitempty"`
	Message  string      `json:"message,omitempty"`
	Event    *EventDTO   `json:"event,omitempty"`
	Redirect string      `json:"redirect,omitempty"`
}

// ViewVersions exposes the current version of a view as an entity tag.
type ViewVersions interface {
	ETag(path string) string
}

type Handler struct {
	service  Service
	versions ViewVersions
	clock    utils.Clock
}

func NewHandler(service Service, versions ViewVersions, clock utils.Clock) *Handler {
	return &Handler{service: service, versions: versions, clock: clock}
}

// ListEvents godoc
// @Summary List events
// @Description All events ordered by date and time. Honours If-None-Match with the listing ETag.
// @Tags Event
// @Produce json
// @Success 200 {array} EventDTO
// @Success 304 "Not Modified"
// @Router /api/event [get]
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	log.Trace("Listing events")

	var etag string
	if h.versions != nil {
		etag = h.versions.ETag(revalidate.ListingPath)
		if matchesETag(r.Header.Get("If-None-Match"), etag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	events, err := h.service.ListEvents(r.Context())
	if err != nil {
		rest.WriteError(w, http.StatusInternalServerError, "Failed to load events", "")
		return
	}

	dtos := make([]EventDTO, 0, len(events))
	for _, e := range events {
		dtos = append(dtos, eventToDTO(e))
	}
	if etag != "" {
		w.Header().Set("ETag", etag)
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
	log.Tracef("Events returned: %d", len(dtos))
}

// GetEvent godoc
// @Summary Get an event
// @Tags Event
// @Produce json
// @Param eventId path string true "Event ID"
// @Success 200 {object} EventDTO
// @Failure 404 {object} rest.ErrorResponse
// @Router /api/event/{eventId} [get]
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventId := mux.Vars(r)["eventId"]
	event := h.service.GetEvent(r.Context(), eventId)
	if event == nil {
		rest.WriteError(w, http.StatusNotFound, "Event not found", "no event with id "+eventId)
		return
	}
	rest.WriteJSON(w, http.StatusOK, eventToDTO(*event))
}

// CreateEvent godoc
// @Summary Create an event
// @Description Accepts JSON or a url-encoded form post.
// @Tags Event
// @Accept json
// @Accept x-www-form-urlencoded
// @Produce json
// @Param event body FormData true "Event"
// @Success 201 {object} ResultDTO
// @Failure 400 {object} ResultDTO "Validation failed"
// @Failure 413 {object} rest.ErrorResponse
// @Failure 500 {object} ResultDTO
// @Router /api/event [post]
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating new event")
	form, err := decodeForm(w, r)
	if err != nil {
		writeDecodeError(w, err)
		return
	}
	result := h.service.CreateEvent(r.Context(), form)
	writeResult(w, result, http.StatusCreated)
}

// UpdateEvent godoc
// @Summary Update an event
// @Tags Event
// @Accept json
// @Accept x-www-form-urlencoded
// @Produce json
// @Param eventId path string true "Event ID"
// @Param event body FormData true "Event"
// @Success 200 {object} ResultDTO
// @Failure 400 {object} ResultDTO "Validation failed"
// @Failure 404 {object} ResultDTO
// @Failure 413 {object} rest.ErrorResponse
// @Failure 500 {object} ResultDTO
// @Router /api/event/{eventId} [put]
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	eventId := mux.Vars(r)["eventId"]
	log.Debugf("Updating event %s", eventId)
	form, err := decodeForm(w, r)
	if err != nil {
		writeDecodeError(w, err)
		return
	}
	result := h.service.UpdateEvent(r.Context(), eventId, form)
	writeResult(w, result, http.StatusOK)
}

// DeleteEvent godoc
// @Summary Delete an event
// @Tags Event
// @Produce json
// @Param eventId path string true "Event ID"
// @Success 200 {object} ResultDTO
// @Failure 404 {object} ResultDTO
// @Failure 500 {object} ResultDTO
// @Router /api/event/{eventId} [delete]
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	eventId := mux.Vars(r)["eventId"]
	log.Debugf("Deleting event %s", eventId)
	result := h.service.DeleteEvent(r.Context(), eventId)
	writeResult(w, result, http.StatusOK)
}

// ExportICS godoc
// @Summary Export events as iCalendar
// @Tags Event
// @Produce text/calendar
// @Success 200 {string} string
// @Router /api/event/export.ics [get]
func (h *Handler) ExportICS(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.ListEvents(r.Context())
	if err != nil {
		rest.WriteError(w, http.StatusInternalServerError, "Failed to load events", "")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="events.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(RenderICS(events, h.clock.Now()))); err != nil {
		log.Errorf("failed to write ics export: %v", err)
	}
}

// ExportCSV godoc
// @Summary Export events as CSV
// @Tags Event
// @Produce text/csv
// @Success 200 {string} string
// @Router /api/event/export.csv [get]
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.ListEvents(r.Context())
	if err != nil {
		rest.WriteError(w, http.StatusInternalServerError, "Failed to load events", "")
		return
	}
	body, err := RenderCSV(events)
	if err != nil {
		rest.WriteError(w, http.StatusInternalServerError, "Failed to render events", "")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="events.csv"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		log.Errorf("failed to write csv export: %v", err)
	}
}

// maxBodyBytes caps event request bodies of every content type.
const maxBodyBytes = 1 << 20

func decodeForm(w http.ResponseWriter, r *http.Request) (FormData, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return FormData{}, err
		}
		return FormDataFromValues(r.PostForm), nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return FormData{}, err
		}
		return FormDataFromValues(r.PostForm), nil
	default:
		var form FormData
		if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
			return FormData{}, err
		}
		return form, nil
	}
}

func writeDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		rest.WriteError(w, http.StatusRequestEntityTooLarge, "Request body too large", err.Error())
		return
	}
	rest.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
}

// matchesETag reports whether an If-None-Match header names etag. Tags are compared weakly, and
// "*" matches any current representation.
func matchesETag(header, etag string) bool {
	if header == "" || etag == "" {
		return false
	}
	for _, tag := range strings.Split(header, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "*" || strings.TrimPrefix(tag, "W/") == strings.TrimPrefix(etag, "W/") {
			return true
		}
	}
	return false
}

func writeResult(w http.ResponseWriter, result Result, successStatus int) {
	status := successStatus
	switch result.Outcome {
	case OutcomeInvalid:
		status = http.StatusBadRequest
	case OutcomeNotFound:
		status = http.StatusNotFound
	case OutcomeFailed:
		status = http.StatusInternalServerError
	}
	rest.WriteJSON(w, status, resultToDTO(result))
}

func eventToDTO(e Event) EventDTO {
	return EventDTO{
		Id:        e.Id,
		Title:     e.Title,
		Date:      e.Date,
		Time:      e.Time,
		Notes:     e.Notes,
		Recurring: e.Recurring,
		CreatedAt: e.CreatedAt,
	}
}

func resultToDTO(result Result) ResultDTO {
	dto := ResultDTO{
		Success:  result.Success,
		Errors:   result.Errors,
		Message:  result.Message,
		Redirect: result.Redirect,
	}
	if result.Event != nil {
		eventDTO := eventToDTO(*result.Event)
		dto.Event = &eventDTO
	}
	return dto
}
