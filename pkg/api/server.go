package api

import (
	"encoding/json"
	"net/http"

	"github.com/pydex/pydex/pkg/log"
	"github.com/pydex/pydex/pkg/model"
)

const defaultPageSize = 30

type Server struct {
	model    *model.Model
	pageSize int
	logger   *log.Logger
}

func NewServer(m *model.Model, pageSize int) *Server {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Server{
		model:    m,
		pageSize: pageSize,
		logger:   log.ForService("api"),
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Errorf("encoding JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, error, message string) {
	response := ErrorResponse{
		Error:   error,
		Message: message,
	}
	s.writeJSON(w, status, response)
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
