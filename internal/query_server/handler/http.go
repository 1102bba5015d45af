package handler

import (
	"encoding/json"
	"go.uber.org/zap"
	"net/http"
)

// ErrorMessage is the body of every non-2xx response
// @swagger:model ErrorMessage
type ErrorMessage struct {
	Message string `json:"message"`
}

func HttpError(w http.ResponseWriter, message string, statusCode int, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorMessage{Message: message}); err != nil {
		logger.Error("Failed to encode error message", zap.Error(err))
	}
}
