package services_test

import (
	"io"

	"github.com/sirupsen/logrus"

	"ai-estimate-backend/internal/models"
	"ai-estimate-backend/internal/workflow"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func pdf(name string) workflow.File {
	return workflow.File{Name: name, ContentType: "application/pdf", Type: "plans", Description: "plan", Data: []byte("%PDF")}
}

func op(step string, status models.OperationStatus, progress int) *models.Operation {
	return &models.Operation{Step: step, Status: status, Progress: progress}
}
