package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookflow/internal/management"
	"bookflow/internal/workflow"
	"bookflow/pkg/middleware"
)

const apiSecret = "integration-secret"

type apiClient struct {
	t      *testing.T
	server *httptest.Server
	token  string
}

func newAPIClient(t *testing.T, infra *TestInfra) *apiClient {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(middleware.RequestID())
	v1 := router.Group("/api/v1")
	v1.Use(middleware.JWTAuth(middleware.AuthConfig{Secret: apiSecret}))
	management.NewHandler(newManagementService(t, infra), createTestLogger()).RegisterRoutes(v1)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "api-tester",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(apiSecret))
	require.NoError(t, err)

	return &apiClient{t: t, server: server, token: token}
}

func (c *apiClient) do(method, path string, body interface{}, out interface{}) int {
	c.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.server.URL+"/api/v1"+path, reader)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.server.Client().Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < http.StatusBadRequest {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestManagementAPI_WorkflowCRUD(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, postgresOnly())
	client := newAPIClient(t, infra)

	var created workflow.Workflow
	status := client.do(http.MethodPost, "/workflows", createRequest("API Workflow"), &created)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, created.ID)

	var fetched workflow.Workflow
	require.Equal(t, http.StatusOK, client.do(http.MethodGet, "/workflows/"+created.ID, nil, &fetched))
	assert.Equal(t, "API Workflow", fetched.Name)

	var list management.WorkflowList
	require.Equal(t, http.StatusOK, client.do(http.MethodGet, "/workflows?trigger=booking_created&q=api", nil, &list))
	assert.Equal(t, 1, list.Total)

	name := "API Workflow v2"
	var updated workflow.Workflow
	require.Equal(t, http.StatusOK, client.do(http.MethodPut, "/workflows/"+created.ID,
		management.UpdateWorkflowRequest{Name: &name}, &updated))
	assert.Equal(t, name, updated.Name)

	inactive := false
	var toggled workflow.Workflow
	require.Equal(t, http.StatusOK, client.do(http.MethodPatch, "/workflows/"+created.ID+"/active",
		management.SetActiveRequest{Active: &inactive}, &toggled))
	assert.False(t, toggled.Active)

	var versions []management.WorkflowVersion
	require.Equal(t, http.StatusOK, client.do(http.MethodGet, "/workflows/"+created.ID+"/versions", nil, &versions))
	assert.Len(t, versions, 3)
	assert.Equal(t, "api-tester", versions[0].ChangedBy)

	var logs []management.AuditLog
	require.Equal(t, http.StatusOK, client.do(http.MethodGet, "/workflows/"+created.ID+"/audit", nil, &logs))
	assert.Len(t, logs, 3)

	require.Equal(t, http.StatusNoContent, client.do(http.MethodDelete, "/workflows/"+created.ID, nil, nil))
	assert.Equal(t, http.StatusNotFound, client.do(http.MethodGet, "/workflows/"+created.ID, nil, nil))
}

func TestManagementAPI_Errors(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, postgresOnly())
	client := newAPIClient(t, infra)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{name: "malformed body", method: http.MethodPost, path: "/workflows", body: "not an object", want: http.StatusBadRequest},
		{name: "unknown trigger", method: http.MethodPost, path: "/workflows", body: map[string]interface{}{"name": "x", "trigger": "booking_exploded"}, want: http.StatusBadRequest},
		{name: "unknown workflow", method: http.MethodGet, path: "/workflows/00000000-0000-0000-0000-000000000000", want: http.StatusNotFound},
		{name: "bad hash algorithm", method: http.MethodPut, path: "/config/dispatch", body: map[string]interface{}{"hash_algorithm": "crc32"}, want: http.StatusBadRequest},
		{name: "decision log not configured", method: http.MethodGet, path: "/bookings/bk-1/decisions", want: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, client.do(tt.method, tt.path, tt.body, nil))
		})
	}

	t.Run("duplicate name", func(t *testing.T) {
		require.Equal(t, http.StatusCreated, client.do(http.MethodPost, "/workflows", createRequest("Dup"), nil))
		assert.Equal(t, http.StatusConflict, client.do(http.MethodPost, "/workflows", createRequest("dup"), nil))
	})

	t.Run("missing token", func(t *testing.T) {
		anonymous := &apiClient{t: t, server: client.server}
		assert.Equal(t, http.StatusUnauthorized, anonymous.do(http.MethodGet, "/workflows", nil, nil))
	})
}

func TestManagementAPI_Conditions(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, postgresOnly())
	client := newAPIClient(t, infra)

	var validation management.ValidationResult
	require.Equal(t, http.StatusOK, client.do(http.MethodPost, "/conditions/validate",
		map[string]interface{}{"conditions": []map[string]interface{}{{"operator": "XOR", "rules": []interface{}{}}}}, &validation))
	assert.False(t, validation.Valid)
	assert.Contains(t, validation.Errors, "conditions[0].operator")

	booking := createTestBookingEvent("bk-1", "ana@acme.io", workflow.TriggerBookingCreated).Booking
	var explanation map[string]interface{}
	require.Equal(t, http.StatusOK, client.do(http.MethodPost, "/conditions/evaluate",
		map[string]interface{}{"conditions": domainRule("acme.io"), "booking": booking}, &explanation))
	assert.Equal(t, true, explanation["result"])

	var catalog management.ConditionCatalog
	require.Equal(t, http.StatusOK, client.do(http.MethodGet, "/conditions/catalog", nil, &catalog))
	assert.NotEmpty(t, catalog.Fields)
	assert.NotEmpty(t, catalog.Operators)
}

func TestManagementAPI_DispatchConfig(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, postgresOnly())
	client := newAPIClient(t, infra)

	ttl := 120
	var updated management.DispatchConfig
	require.Equal(t, http.StatusOK, client.do(http.MethodPut, "/config/dispatch",
		management.UpdateDispatchConfigRequest{TTLSeconds: &ttl}, &updated))
	assert.Equal(t, 120, updated.TTLSeconds)

	var current management.DispatchConfig
	require.Equal(t, http.StatusOK, client.do(http.MethodGet, "/config/dispatch", nil, &current))
	assert.Equal(t, updated, current)

	var logs []management.AuditLog
	require.Equal(t, http.StatusOK, client.do(http.MethodGet,
		fmt.Sprintf("/audit/logs?entity_type=%s", management.EntityDispatchConfig), nil, &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, "api-tester", logs[0].ChangedBy)
}
