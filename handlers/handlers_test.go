package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"snapshot-server/database"
	"snapshot-server/ratelimit"
	"snapshot-server/shortcode"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
)

func newTestRouter(t *testing.T, capacity int) (*gin.Engine, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	limiter := ratelimit.New(ratelimit.Options{
		Capacity:     capacity,
		RefillAmount: 1,
		RefillPeriod: 10 * time.Minute,
	})
	h := NewHandlers(database.NewLogsService(db), shortcode.New("DBG-"), limiter, nil)

	router := gin.New()
	router.GET("/health", h.HealthCheck)
	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/upload", h.UploadLog)
		apiV1.GET("/log/:code", h.GetLog)
		apiV1.GET("/log", h.GetLogByQuery)
	}
	return router, mock, db
}

const uploadBody = `{
	"requester": "Herobrine",
	"pluginName": "snapshot-plugin",
	"pluginVersion": "0.1.0",
	"serverPort": 25565,
	"serverVersion": "1.21",
	"serverSoftware": "Paper",
	"serverOnlineMode": true,
	"extra": {"configYaml": "SGVsbG8="}
}`

func postUpload(router *gin.Engine, body, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/v1/upload", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = remoteAddr
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestUploadLog(t *testing.T) {
	router, mock, db := newTestRouter(t, 3)
	defer db.Close()

	mock.ExpectExec("INSERT\\s+INTO server_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rr := postUpload(router, uploadBody, "203.0.113.5:54021")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d, want 200: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Status string `json:"status"`
		LogID  string `json:"logId"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Status != "success" {
		t.Errorf("status %q, want success", resp.Status)
	}
	if !strings.HasPrefix(resp.LogID, "DBG-") || len(resp.LogID) != len("DBG-")+shortcode.PrefixLength {
		t.Errorf("logId %q is not a debug code", resp.LogID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUploadLogInvalidPayload(t *testing.T) {
	router, _, db := newTestRouter(t, 3)
	defer db.Close()

	tests := []struct {
		name string
		body string
	}{
		{name: "missing requester", body: `{"pluginName": "p", "pluginVersion": "1", "serverPort": 1, "serverVersion": "1", "serverSoftware": "s", "serverOnlineMode": true}`},
		{name: "missing online mode", body: `{"requester": "r", "pluginName": "p", "pluginVersion": "1", "serverPort": 1, "serverVersion": "1", "serverSoftware": "s"}`},
		{name: "non-positive port", body: `{"requester": "r", "pluginName": "p", "pluginVersion": "1", "serverPort": 0, "serverVersion": "1", "serverSoftware": "s", "serverOnlineMode": true}`},
		{name: "not json", body: `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postUpload(router, tt.body, "203.0.113.5:54021")
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status %d, want 400", rr.Code)
			}
		})
	}
}

func TestUploadLogRateLimited(t *testing.T) {
	router, mock, db := newTestRouter(t, 1)
	defer db.Close()

	mock.ExpectExec("INSERT\\s+INTO server_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if rr := postUpload(router, uploadBody, "203.0.113.5:54021"); rr.Code != http.StatusOK {
		t.Fatalf("first upload status %d, want 200", rr.Code)
	}
	if rr := postUpload(router, uploadBody, "203.0.113.5:54021"); rr.Code != http.StatusTooManyRequests {
		t.Errorf("second upload status %d, want 429", rr.Code)
	}

	// A different declared port from the same address is admitted
	// independently.
	mock.ExpectExec("INSERT\\s+INTO server_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))
	otherPort := strings.Replace(uploadBody, "25565", "25566", 1)
	if rr := postUpload(router, otherPort, "203.0.113.5:54021"); rr.Code != http.StatusOK {
		t.Errorf("upload for other declared port status %d, want 200", rr.Code)
	}
}

func logRow(extra any) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"uuid", "requester", "plugin_name", "plugin_version", "server_port",
		"server_version", "server_software", "server_online_mode", "extra", "ts"}).
		AddRow("abc123de-4567-489a-bcde-0123456789ab", "Herobrine", "snapshot-plugin", "0.1.0",
			25565, "1.21", "Paper", true, extra, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
}

func TestGetLog(t *testing.T) {
	router, mock, db := newTestRouter(t, 3)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM server_logs").
		WithArgs("ABC123").
		WillReturnRows(logRow(`{"configYaml": "SGVsbG8=", "plugins": ["one", 2]}`))

	req := httptest.NewRequest("GET", "/api/v1/log/dbg-abc123", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status %d, want 200: %s", rr.Code, rr.Body.String())
	}

	var view LogView
	if err := json.Unmarshal(rr.Body.Bytes(), &view); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if view.UUID != "abc123de-4567-489a-bcde-0123456789ab" {
		t.Errorf("wrong uuid: %s", view.UUID)
	}
	if view.ExtraFields == nil || len(view.ExtraFields.Fields) != 2 {
		t.Fatalf("extra fields tree missing or wrong size: %+v", view.ExtraFields)
	}
	configField := view.ExtraFields.Fields[0]
	if configField.Key != "configYaml" || configField.DecodedValue != "Hello" {
		t.Errorf("configYaml field not decoded: %+v", configField)
	}
}

func TestGetLogByQuery(t *testing.T) {
	router, mock, db := newTestRouter(t, 3)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM server_logs").
		WithArgs("ABC123").
		WillReturnRows(logRow(nil))

	req := httptest.NewRequest("GET", "/api/v1/log?code=%20Abc123%20", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status %d, want 200: %s", rr.Code, rr.Body.String())
	}
}

func TestGetLogByQueryMissingCode(t *testing.T) {
	router, _, db := newTestRouter(t, 3)
	defer db.Close()

	req := httptest.NewRequest("GET", "/api/v1/log", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status %d, want 400", rr.Code)
	}
}

func TestGetLogMalformedCode(t *testing.T) {
	router, _, db := newTestRouter(t, 3)
	defer db.Close()

	codes := []string{"abc", "abcdefg", "abc12!", "DBG-"}
	for _, code := range codes {
		req := httptest.NewRequest("GET", "/api/v1/log/"+code, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("code %q: status %d, want 400", code, rr.Code)
		}
	}
}

func TestGetLogNotFound(t *testing.T) {
	router, mock, db := newTestRouter(t, 3)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM server_logs").
		WithArgs("FFFFFF").
		WillReturnRows(sqlmock.NewRows([]string{"uuid", "requester", "plugin_name", "plugin_version", "server_port",
			"server_version", "server_software", "server_online_mode", "extra", "ts"}))

	req := httptest.NewRequest("GET", "/api/v1/log/DBG-FFFFFF", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status %d, want 404", rr.Code)
	}
}

func TestGetLogAmbiguousCode(t *testing.T) {
	router, mock, db := newTestRouter(t, 3)
	defer db.Close()

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"uuid", "requester", "plugin_name", "plugin_version", "server_port",
		"server_version", "server_software", "server_online_mode", "extra", "ts"}).
		AddRow("abc123de-4567-489a-bcde-0123456789ab", "Herobrine", "snapshot-plugin", "0.1.0",
			25565, "1.21", "Paper", true, nil, ts).
		AddRow("abc12345-9999-4999-8999-999999999999", "Notch", "other-plugin", "2.0.0",
			25566, "1.20", "Spigot", false, nil, ts)

	mock.ExpectQuery("SELECT (.+) FROM server_logs").
		WithArgs("ABC123").
		WillReturnRows(rows)

	req := httptest.NewRequest("GET", "/api/v1/log/ABC123", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("status %d, want 409", rr.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	router, _, db := newTestRouter(t, 3)
	defer db.Close()

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "healthy") {
		t.Errorf("unexpected health body: %s", rr.Body.String())
	}
}
