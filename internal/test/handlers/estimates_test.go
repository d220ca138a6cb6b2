package handlers_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-estimate-backend/internal/config"
	"ai-estimate-backend/internal/handlers"
	"ai-estimate-backend/internal/models"
	"ai-estimate-backend/internal/services"
	"ai-estimate-backend/internal/test/fakes"
	"ai-estimate-backend/internal/workflow"
)

type estimateEnv struct {
	store    *fakes.Store
	workflow *fakes.Workflow
	provider *fakes.Provider
	router   *gin.Engine
}

func newEstimateEnv(uid string) *estimateEnv {
	logger := quietLogger()
	env := &estimateEnv{
		store:    fakes.NewStore(),
		workflow: &fakes.Workflow{},
		provider: fakes.NewProvider(),
	}
	cfg := &config.Config{StripePriceID: "price_123", FrontendURL: "https://app.example.com", FreeLimit: 3}

	estimates := services.NewEstimateService(env.store, env.store, env.store, fakes.NewArchive(), env.workflow, cfg.FreeLimit, logger, nil)
	subscriptions := services.NewSubscriptionService(env.provider, env.store, cfg, logger)
	h := handlers.NewEstimateHandler(estimates, subscriptions, logger)

	env.router = newRouter()
	api := env.router.Group("/", asUser(uid))
	api.POST("/estimates", h.SubmitEstimate)
	api.GET("/estimates", h.ListEstimates)
	api.GET("/estimates/:execution_id", h.GetEstimate)
	api.GET("/drafts/latest", h.LatestDraft)
	return env
}

func submissionRequest(t *testing.T, projectName string, files map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	require.NoError(t, w.WriteField("project_name", projectName))
	require.NoError(t, w.WriteField("notes_to_ai", "oak cabinets"))
	for name, contentType := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="files"; filename="`+name+`"`)
		header.Set("Content-Type", contentType)
		part, err := w.CreatePart(header)
		require.NoError(t, err)
		part.Write([]byte("data"))
		require.NoError(t, w.WriteField("types", "plans"))
		require.NoError(t, w.WriteField("descriptions", "about "+name))
	}
	require.NoError(t, w.Close())

	req, _ := http.NewRequest("POST", "/estimates", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestSubmitEstimate_Success(t *testing.T) {
	env := newEstimateEnv("user-1")
	env.store.SetUsage(fakeUsage("user-1", 2))

	w := serve(env.router, submissionRequest(t, "Kitchen remodel", map[string]string{"plan.pdf": "application/pdf"}))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp models.SubmitEstimateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ExecutionID)
	assert.Equal(t, 3, resp.Count)
	assert.Equal(t, 3, env.store.Usage("user-1").Count)

	require.Equal(t, 1, env.workflow.Calls())
	sub := env.workflow.Submissions[0]
	assert.Equal(t, "Kitchen remodel", sub.ProjectName)
	assert.Equal(t, "oak cabinets", sub.Notes)
	assert.Equal(t, "15551234567", sub.UserPhone)
	assert.Equal(t, "Ada", sub.UserName)
	require.Len(t, sub.Files, 1)
	assert.Equal(t, "plan.pdf", sub.Files[0].Name)
	assert.Equal(t, "plans", sub.Files[0].Type)
	assert.Equal(t, "about plan.pdf", sub.Files[0].Description)
}

func TestSubmitEstimate_QuotaExceeded(t *testing.T) {
	env := newEstimateEnv("user-1")
	env.store.SetUsage(fakeUsage("user-1", 3))

	w := serve(env.router, submissionRequest(t, "Kitchen remodel", map[string]string{"plan.pdf": "application/pdf"}))

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	var resp models.QuotaExceededResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, 0, env.workflow.Calls())
	assert.Equal(t, 3, env.store.Usage("user-1").Count)
}

func TestSubmitEstimate_WorkflowFailure(t *testing.T) {
	env := newEstimateEnv("user-1")
	env.store.SetUsage(fakeUsage("user-1", 2))
	env.workflow.Err = &workflow.StatusError{StatusCode: 500, Body: "down"}

	w := serve(env.router, submissionRequest(t, "Kitchen remodel", map[string]string{"plan.pdf": "application/pdf"}))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, 2, env.store.Usage("user-1").Count)
}

func TestSubmitEstimate_InvalidInput(t *testing.T) {
	env := newEstimateEnv("user-1")

	w := serve(env.router, submissionRequest(t, "ab", map[string]string{"plan.pdf": "application/pdf"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(env.router, submissionRequest(t, "Kitchen remodel", map[string]string{
		"1.png": "image/png", "2.png": "image/png", "3.png": "image/png", "4.png": "image/png",
	}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(env.router, "POST", "/estimates", map[string]string{"project_name": "Kitchen"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, 0, env.workflow.Calls())
}

func TestEstimates_HistoryAndDetail(t *testing.T) {
	env := newEstimateEnv("user-1")

	w := doJSON(env.router, "GET", "/estimates", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"estimates":[]}`, w.Body.String())

	w = serve(env.router, submissionRequest(t, "Kitchen remodel", map[string]string{"plan.pdf": "application/pdf"}))
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.SubmitEstimateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	w = doJSON(env.router, "GET", "/estimates/"+resp.ExecutionID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail models.EstimateDetailResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Equal(t, resp.ExecutionID, detail.ExecutionID)
	assert.Len(t, detail.Operations, 2)

	w = doJSON(env.router, "GET", "/estimates/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(env.router, "GET", "/drafts/latest", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Kitchen remodel")
}
