package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"ai-estimate-backend/internal/handlers"
)

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(ctx context.Context) error {
	return p.err
}

func TestHealthHandler(t *testing.T) {
	router := newRouter()
	router.GET("/health", handlers.NewHealthHandler(fakePinger{}, quietLogger()).Health)

	w := doJSON(router, "GET", "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","db":"connected"}`, w.Body.String())
}

func TestHealthHandler_DatabaseDown(t *testing.T) {
	router := newRouter()
	router.GET("/health", handlers.NewHealthHandler(fakePinger{err: errors.New("connection refused")}, quietLogger()).Health)

	w := doJSON(router, "GET", "/health", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"status":"error","db":"unreachable"}`, w.Body.String())
}
