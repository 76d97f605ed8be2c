package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"booking-backend/internal/model"
	"booking-backend/internal/store"
)

func newTestHandler(t *testing.T) (*Handler, store.Store) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.Resource{},
		&model.Allocation{},
		&model.Reservation{},
		&model.PushSubscription{},
	))

	st := store.NewGormStore(db)
	responseCache := cache.New(time.Minute, time.Minute)
	h := NewHandler(st, &webpush.Options{VAPIDPublicKey: "test-public-key"}, nil, responseCache)
	return h, st
}

// setupRouter wires the handlers without the rate-limiting and caching
// middleware so tests exercise the handlers directly.
func setupRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api")
	{
		api.GET("/resources", h.ListResources)
		api.POST("/resources", h.CreateResource)
		api.GET("/resources/:resource_id/allocations", h.ListAllocations)
		api.POST("/resources/:resource_id/allocations", h.CreateAllocation)
		api.GET("/resources/:resource_id/availability", h.GetAvailability)
		api.GET("/resources/:resource_id/reservations", h.ListReservations)
		api.POST("/resources/:resource_id/reservations", h.CreateReservation)
		api.POST("/reservations/:reservation_id/confirm", h.ConfirmReservation)
		api.DELETE("/reservations/:reservation_id", h.CancelReservation)
		api.GET("/reports/monthly", h.MonthlyReport)
		api.PUT("/subscriptions", h.PutSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}
	return r
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateAndListResources(t *testing.T) {
	h, _ := newTestHandler(t)
	router := setupRouter(h)

	w := doJSON(t, router, "POST", "/api/resources", gin.H{"title": "Meeting Room"})
	require.Equal(t, http.StatusCreated, w.Code)

	var created model.Resource
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "Meeting Room", created.Title)
	assert.NotEmpty(t, created.ID)

	w = doJSON(t, router, "GET", "/api/resources", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var listed []ResourceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)
	assert.Equal(t, int64(0), listed[0].TotalAllocations)
}

func TestCreateResourceInvalidBody(t *testing.T) {
	h, _ := newTestHandler(t)
	router := setupRouter(h)

	w := doJSON(t, router, "POST", "/api/resources", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request"}`, w.Body.String())
}

func TestCreateAllocationUnknownResource(t *testing.T) {
	h, _ := newTestHandler(t)
	router := setupRouter(h)

	w := doJSON(t, router, "POST", "/api/resources/"+uuid.NewString()+"/allocations", gin.H{
		"start": "2025-06-02T09:00:00Z",
		"end":   "2025-06-02T10:00:00Z",
		"quota": 1,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReservationLifecycle(t *testing.T) {
	h, st := newTestHandler(t)
	router := setupRouter(h)

	resource := uuid.NewString()
	require.NoError(t, st.CreateResource(context.Background(), &model.Resource{
		ID:    resource,
		Title: "Daycare",
	}))

	w := doJSON(t, router, "POST", "/api/resources/"+resource+"/allocations", gin.H{
		"start": "2025-06-02T09:00:00Z",
		"end":   "2025-06-02T10:00:00Z",
		"quota": 2,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var allocations []model.Allocation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &allocations))
	require.Len(t, allocations, 2)

	w = doJSON(t, router, "POST", "/api/resources/"+resource+"/reservations", gin.H{
		"start": "2025-06-02T09:00:00Z",
		"end":   "2025-06-02T10:00:00Z",
		"data":  gin.H{"name": "Jane"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var reservations []model.Reservation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reservations))
	require.Len(t, reservations, 1)
	assert.Equal(t, model.StatusConfirmed, reservations[0].Status)
	assert.Equal(t, resource, reservations[0].Resource)

	w = doJSON(t, router, "GET", "/api/resources/"+resource+"/reservations", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var listed []model.Reservation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Len(t, listed, 1)

	w = doJSON(t, router, "DELETE", fmt.Sprintf("/api/reservations/%d", reservations[0].ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, router, "GET", "/api/resources/"+resource+"/reservations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Empty(t, listed)
}

func TestListAllocations(t *testing.T) {
	h, st := newTestHandler(t)
	router := setupRouter(h)

	resource := uuid.NewString()
	require.NoError(t, st.CreateResource(context.Background(), &model.Resource{
		ID:    resource,
		Title: "Workshop",
	}))

	w := doJSON(t, router, "POST", "/api/resources/"+resource+"/allocations", gin.H{
		"start": "2025-06-02T09:00:00Z",
		"end":   "2025-06-02T10:00:00Z",
		"quota": 2,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	path := "/api/resources/" + resource + "/allocations?start=2025-06-02T00:00:00Z&end=2025-06-03T00:00:00Z"
	w = doJSON(t, router, "GET", path, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var listed []struct {
		Resource     string `json:"resource"`
		Grouped      bool   `json:"grouped"`
		Availability struct {
			Text  string `json:"text"`
			Class string `json:"class"`
		} `json:"availability"`
		FreeSpans []struct {
			Start time.Time `json:"start"`
			End   time.Time `json:"end"`
		} `json:"free_spans"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed, 1, "only the primary mirror is listed")
	assert.Equal(t, resource, listed[0].Resource)
	assert.False(t, listed[0].Grouped)
	assert.Equal(t, "2 Spots Available", listed[0].Availability.Text)
	require.Len(t, listed[0].FreeSpans, 1)
}

func TestReserveBeyondQuota(t *testing.T) {
	h, st := newTestHandler(t)
	router := setupRouter(h)

	resource := uuid.NewString()
	require.NoError(t, st.CreateResource(context.Background(), &model.Resource{
		ID:    resource,
		Title: "Court",
	}))

	w := doJSON(t, router, "POST", "/api/resources/"+resource+"/allocations", gin.H{
		"start": "2025-06-02T09:00:00Z",
		"end":   "2025-06-02T10:00:00Z",
		"quota": 1,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	body := gin.H{
		"start": "2025-06-02T09:00:00Z",
		"end":   "2025-06-02T10:00:00Z",
	}
	w = doJSON(t, router, "POST", "/api/resources/"+resource+"/reservations", body)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, "POST", "/api/resources/"+resource+"/reservations", body)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetAvailability(t *testing.T) {
	h, st := newTestHandler(t)
	router := setupRouter(h)

	resource := uuid.NewString()
	require.NoError(t, st.CreateResource(context.Background(), &model.Resource{
		ID:    resource,
		Title: "Pool",
	}))

	w := doJSON(t, router, "POST", "/api/resources/"+resource+"/allocations", gin.H{
		"start": "2025-06-02T09:00:00Z",
		"end":   "2025-06-02T10:00:00Z",
		"quota": 4,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	path := "/api/resources/" + resource + "/availability?start=2025-06-02T09:00:00Z&end=2025-06-02T10:00:00Z"
	w = doJSON(t, router, "GET", path, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Availability float64 `json:"availability"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.InDelta(t, 100.0, resp.Availability, 0.01)
}

func TestGetAvailabilityUnknownResource(t *testing.T) {
	h, _ := newTestHandler(t)
	router := setupRouter(h)

	w := doJSON(t, router, "GET", "/api/resources/"+uuid.NewString()+"/availability", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConfirmReservationBadID(t *testing.T) {
	h, _ := newTestHandler(t)
	router := setupRouter(h)

	w := doJSON(t, router, "POST", "/api/reservations/notanumber/confirm", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMonthlyReportValidation(t *testing.T) {
	h, _ := newTestHandler(t)
	router := setupRouter(h)

	w := doJSON(t, router, "GET", "/api/reports/monthly?year=2025&month=6", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, "GET", "/api/reports/monthly?year=2025&month=13&resource="+uuid.NewString(), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMonthlyReport(t *testing.T) {
	h, st := newTestHandler(t)
	router := setupRouter(h)

	ctx := context.Background()
	resource := uuid.NewString()
	require.NoError(t, st.CreateResource(ctx, &model.Resource{
		ID:    resource,
		Title: "Studio",
	}))

	w := doJSON(t, router, "POST", "/api/resources/"+resource+"/allocations", gin.H{
		"start": "2025-06-02T09:00:00Z",
		"end":   "2025-06-02T10:00:00Z",
		"quota": 1,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, "POST", "/api/resources/"+resource+"/reservations", gin.H{
		"start": "2025-06-02T09:00:00Z",
		"end":   "2025-06-02T10:00:00Z",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, "GET", "/api/reports/monthly?year=2025&month=6&resource="+resource, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var monthly map[string]map[string]struct {
		Title string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &monthly))
	assert.Len(t, monthly, 30)
	require.Contains(t, monthly["2"], resource)
	assert.Equal(t, "Studio", monthly["2"][resource].Title)
}

func TestPutSubscriptionInvalidBody(t *testing.T) {
	h, _ := newTestHandler(t)
	router := setupRouter(h)

	w := doJSON(t, router, "PUT", "/api/subscriptions", gin.H{"endpoint": "https://push.example.com/x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetVAPIDPublicKey(t *testing.T) {
	h, _ := newTestHandler(t)
	router := setupRouter(h)

	w := doJSON(t, router, "GET", "/api/vapid_public_key", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"public_key":"test-public-key"}`, w.Body.String())
}
