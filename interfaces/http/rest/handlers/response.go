// Package handlers holds the HTTP handlers. Each one decodes a request into
// a query or command, dispatches it on the bus and encodes the outcome.
package handlers

import (
	"encoding/json"
	"net"
	"net/http"

	"go.uber.org/zap"

	"labsos-backend/pkg/auth"
	apperrors "labsos-backend/pkg/errors"
)

func respondJSON(w http.ResponseWriter, logger *zap.Logger, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

// respondError reports err through the shared error handler. Auth failures
// are mapped onto the application error taxonomy first.
func respondError(w http.ResponseWriter, r *http.Request, eh *apperrors.ErrorHandler, err error) {
	if authErr, ok := auth.AsAuthError(err); ok && apperrors.GetAppError(err) == nil {
		err = authErr.ToAppError()
	}
	eh.Handle(w, r, err)
}

// clientIP returns the caller address. chi's RealIP middleware has already
// folded forwarding headers into RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
