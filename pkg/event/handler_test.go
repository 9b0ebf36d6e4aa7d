package event

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/klokku/eventboard/internal/event_bus"
	"github.com/klokku/eventboard/internal/revalidate"
	"github.com/klokku/eventboard/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHandlerTest(t *testing.T) *mux.Router {
	clock := &utils.MockClock{FixedNow: baseTime}
	eventBus := event_bus.NewEventBus()
	revalidator := revalidate.New(nil)
	revalidator.SubscribeTo(eventBus)
	service := NewService(NewMemoryRepository(clock), eventBus, nil)
	handler := NewHandler(service, revalidator, clock)

	r := mux.NewRouter()
	r.HandleFunc("/api/event/export.ics", handler.ExportICS).Methods("GET")
	r.HandleFunc("/api/event/export.csv", handler.ExportCSV).Methods("GET")
	r.HandleFunc("/api/event", handler.ListEvents).Methods("GET")
	r.HandleFunc("/api/event", handler.CreateEvent).Methods("POST")
	r.HandleFunc("/api/event/{eventId}", handler.GetEvent).Methods("GET")
	r.HandleFunc("/api/event/{eventId}", handler.UpdateEvent).Methods("PUT")
	r.HandleFunc("/api/event/{eventId}", handler.DeleteEvent).Methods("DELETE")
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeResult(t *testing.T, w *httptest.ResponseRecorder) ResultDTO {
	t.Helper()
	var result ResultDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	return result
}

func createViaAPI(t *testing.T, r http.Handler, form map[string]any) EventDTO {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/event", form)
	require.Equal(t, http.StatusCreated, w.Code)
	result := decodeResult(t, w)
	require.NotNil(t, result.Event)
	return *result.Event
}

func TestHandler_CreateEvent(t *testing.T) {
	t.Run("should create from JSON", func(t *testing.T) {
		r := setupHandlerTest(t)

		// when
		w := doJSON(t, r, http.MethodPost, "/api/event", map[string]any{
			"title": "Standup", "date": "2024-05-01", "time": "09:00", "notes": "daily",
		})

		// then
		assert.Equal(t, http.StatusCreated, w.Code)
		result := decodeResult(t, w)
		assert.True(t, result.Success)
		assert.Equal(t, "/", result.Redirect)
		require.NotNil(t, result.Event)
		assert.Equal(t, "Standup", result.Event.Title)
		assert.Equal(t, "daily", result.Event.Notes)
		assert.False(t, result.Event.Recurring)
	})

	t.Run("should create from a url-encoded form", func(t *testing.T) {
		r := setupHandlerTest(t)

		// given
		form := url.Values{"title": {"Standup"}, "date": {"2024-05-01"}, "time": {"09:00"}, "recurring": {"on"}}
		req := httptest.NewRequest(http.MethodPost, "/api/event", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()

		// when
		r.ServeHTTP(w, req)

		// then
		assert.Equal(t, http.StatusCreated, w.Code)
		result := decodeResult(t, w)
		require.NotNil(t, result.Event)
		assert.True(t, result.Event.Recurring)
	})

	t.Run("should return field errors", func(t *testing.T) {
		r := setupHandlerTest(t)

		// when
		w := doJSON(t, r, http.MethodPost, "/api/event", map[string]any{"date": "2024-05-01", "time": "09:00"})

		// then
		assert.Equal(t, http.StatusBadRequest, w.Code)
		result := decodeResult(t, w)
		assert.False(t, result.Success)
		assert.Equal(t, []string{"Title is required."}, result.Errors["title"])
		assert.Nil(t, result.Event)
	})

	t.Run("should reject a JSON body over the size limit", func(t *testing.T) {
		r := setupHandlerTest(t)

		// given
		payload := `{"title":"Standup","date":"2024-05-01","time":"09:00","notes":"` +
			strings.Repeat("n", maxBodyBytes) + `"}`
		req := httptest.NewRequest(http.MethodPost, "/api/event", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		// when
		r.ServeHTTP(w, req)

		// then
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		events := doJSON(t, r, http.MethodGet, "/api/event", nil)
		assert.JSONEq(t, "[]", events.Body.String())
	})

	t.Run("should reject a malformed body", func(t *testing.T) {
		r := setupHandlerTest(t)

		// given
		req := httptest.NewRequest(http.MethodPost, "/api/event", strings.NewReader("{not json"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		// when
		r.ServeHTTP(w, req)

		// then
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandler_GetEvent(t *testing.T) {
	t.Run("should return an existing event", func(t *testing.T) {
		r := setupHandlerTest(t)
		created := createViaAPI(t, r, map[string]any{"title": "Standup", "date": "2024-05-01", "time": "09:00"})

		// when
		w := doJSON(t, r, http.MethodGet, "/api/event/"+created.Id, nil)

		// then
		assert.Equal(t, http.StatusOK, w.Code)
		var fetched EventDTO
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fetched))
		assert.Equal(t, created.Id, fetched.Id)
		assert.Equal(t, "Standup", fetched.Title)
	})

	t.Run("should return 404 for an unknown id", func(t *testing.T) {
		r := setupHandlerTest(t)

		// when
		w := doJSON(t, r, http.MethodGet, "/api/event/missing", nil)

		// then
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandler_ListEvents(t *testing.T) {
	t.Run("should list ordered events with an ETag", func(t *testing.T) {
		r := setupHandlerTest(t)
		createViaAPI(t, r, map[string]any{"title": "Later", "date": "2024-05-02", "time": "09:00"})
		createViaAPI(t, r, map[string]any{"title": "Sooner", "date": "2024-05-01", "time": "09:00"})

		// when
		w := doJSON(t, r, http.MethodGet, "/api/event", nil)

		// then
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get("ETag"))
		var events []EventDTO
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
		require.Len(t, events, 2)
		assert.Equal(t, "Sooner", events[0].Title)
		assert.Equal(t, "Later", events[1].Title)
	})

	t.Run("should return an empty array when there are no events", func(t *testing.T) {
		r := setupHandlerTest(t)

		// when
		w := doJSON(t, r, http.MethodGet, "/api/event", nil)

		// then
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, "[]", w.Body.String())
	})

	t.Run("should answer 304 until the listing changes", func(t *testing.T) {
		r := setupHandlerTest(t)
		first := doJSON(t, r, http.MethodGet, "/api/event", nil)
		etag := first.Header().Get("ETag")

		// when
		req := httptest.NewRequest(http.MethodGet, "/api/event", nil)
		req.Header.Set("If-None-Match", etag)
		unchanged := httptest.NewRecorder()
		r.ServeHTTP(unchanged, req)

		createViaAPI(t, r, map[string]any{"title": "Standup", "date": "2024-05-01", "time": "09:00"})
		req = httptest.NewRequest(http.MethodGet, "/api/event", nil)
		req.Header.Set("If-None-Match", etag)
		changed := httptest.NewRecorder()
		r.ServeHTTP(changed, req)

		// then
		assert.Equal(t, http.StatusNotModified, unchanged.Code)
		assert.Equal(t, http.StatusOK, changed.Code)
		assert.NotEqual(t, etag, changed.Header().Get("ETag"))
	})
}

func TestHandler_ListEventsConditional(t *testing.T) {
	r := setupHandlerTest(t)
	etag := doJSON(t, r, http.MethodGet, "/api/event", nil).Header().Get("ETag")
	require.NotEmpty(t, etag)

	tests := []struct {
		name        string
		ifNoneMatch string
		want        int
	}{
		{name: "tag list containing the current tag", ifNoneMatch: `"other", ` + etag, want: http.StatusNotModified},
		{name: "wildcard", ifNoneMatch: "*", want: http.StatusNotModified},
		{name: "strong form of the weak tag", ifNoneMatch: strings.TrimPrefix(etag, "W/"), want: http.StatusNotModified},
		{name: "only other tags", ifNoneMatch: `"other", W/"stale-0"`, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/event", nil)
			req.Header.Set("If-None-Match", tt.ifNoneMatch)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestHandler_UpdateEvent(t *testing.T) {
	t.Run("should update an event", func(t *testing.T) {
		r := setupHandlerTest(t)
		created := createViaAPI(t, r, map[string]any{"title": "Standup", "date": "2024-05-01", "time": "09:00"})

		// when
		w := doJSON(t, r, http.MethodPut, "/api/event/"+created.Id, map[string]any{
			"title": "Daily Standup", "date": "2024-05-01", "time": "09:00",
		})

		// then
		assert.Equal(t, http.StatusOK, w.Code)
		result := decodeResult(t, w)
		assert.True(t, result.Success)
		assert.Equal(t, "Daily Standup", result.Event.Title)
	})

	t.Run("should return 404 for an unknown id", func(t *testing.T) {
		r := setupHandlerTest(t)

		// when
		w := doJSON(t, r, http.MethodPut, "/api/event/missing", map[string]any{
			"title": "Standup", "date": "2024-05-01", "time": "09:00",
		})

		// then
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Event not found or failed to update.", decodeResult(t, w).Message)
	})

	t.Run("should return field errors", func(t *testing.T) {
		r := setupHandlerTest(t)
		created := createViaAPI(t, r, map[string]any{"title": "Standup", "date": "2024-05-01", "time": "09:00"})

		// when
		w := doJSON(t, r, http.MethodPut, "/api/event/"+created.Id, map[string]any{
			"title": "Standup", "date": "2024-05-01", "time": "",
		})

		// then
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, []string{"Time is required."}, decodeResult(t, w).Errors["time"])
	})
}

func TestHandler_DeleteEvent(t *testing.T) {
	r := setupHandlerTest(t)
	created := createViaAPI(t, r, map[string]any{"title": "Standup", "date": "2024-05-01", "time": "09:00"})

	// when
	first := doJSON(t, r, http.MethodDelete, "/api/event/"+created.Id, nil)
	second := doJSON(t, r, http.MethodDelete, "/api/event/"+created.Id, nil)

	// then
	assert.Equal(t, http.StatusOK, first.Code)
	assert.True(t, decodeResult(t, first).Success)
	assert.Equal(t, http.StatusNotFound, second.Code)
	assert.Equal(t, "Event not found or failed to delete.", decodeResult(t, second).Message)
}

func TestHandler_Exports(t *testing.T) {
	r := setupHandlerTest(t)
	createViaAPI(t, r, map[string]any{"title": "Standup", "date": "2024-05-01", "time": "09:00"})

	t.Run("should export iCalendar", func(t *testing.T) {
		// when
		w := doJSON(t, r, http.MethodGet, "/api/event/export.ics", nil)

		// then
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/calendar")
		assert.Contains(t, w.Body.String(), "SUMMARY:Standup")
	})

	t.Run("should export CSV", func(t *testing.T) {
		// when
		w := doJSON(t, r, http.MethodGet, "/api/event/export.csv", nil)

		// then
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
		assert.Contains(t, w.Body.String(), "Standup,2024-05-01,09:00")
	})
}
