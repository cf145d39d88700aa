package adminapi

import (
	"encoding/json"
	"net/http"

	"github.com/apollo3zehn/nexus-remote-agent/internal/hostmetrics"
)

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeMethodNotAllowed(w, "GET")
		return
	}
	s.writeJSON(w, http.StatusOK, hostmetrics.Collect())
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeMethodNotAllowed(w, "GET")
		return
	}
	s.writeJSON(w, http.StatusOK, &HealthResponse{Status: "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeMethodNotAllowed(w, "GET")
		return
	}
	if s.metrics == nil {
		s.writeError(w, http.StatusServiceUnavailable, &ErrorResponse{
			ErrorType:    ErrorTypeInternal,
			ErrorCode:    "METRICS_NOT_CONFIGURED",
			ErrorMessage: "metrics exposer not configured",
		})
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(s.metrics.Expose()))
}

// handlePackageReferences serves GET (list) and POST (create) on the
// collection endpoint.
func (s *Server) handlePackageReferences(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, s.store.List())
	case http.MethodPost:
		s.handleCreatePackageReference(w, r)
	default:
		s.writeMethodNotAllowed(w, "GET, POST")
	}
}

func (s *Server) handleCreatePackageReference(w http.ResponseWriter, r *http.Request) {
	var req PackageReferenceRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, &ErrorResponse{
			ErrorType:    ErrorTypeInvalidArgument,
			ErrorCode:    "INVALID_REQUEST",
			ErrorMessage: "invalid JSON request body: " + err.Error(),
		})
		return
	}
	if req.Provider == "" {
		s.writeError(w, http.StatusBadRequest, &ErrorResponse{
			ErrorType:    ErrorTypeInvalidArgument,
			ErrorCode:    "MISSING_PROVIDER",
			ErrorMessage: "provider is required",
		})
		return
	}
	if _, ok := s.registry.Get(req.Provider); !ok {
		s.writeError(w, http.StatusBadRequest, &ErrorResponse{
			ErrorType:    ErrorTypeInvalidArgument,
			ErrorCode:    "UNKNOWN_PROVIDER",
			ErrorMessage: "no extension is registered under provider type " + req.Provider,
		})
		return
	}

	ref, err := s.store.Create(req.Provider, req.Configuration)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, &ErrorResponse{
			ErrorType:    ErrorTypeInternal,
			ErrorCode:    "STORE_WRITE_FAILED",
			ErrorMessage: err.Error(),
		})
		return
	}
	s.writeJSON(w, http.StatusCreated, ref)
}

// handlePackageReference serves GET/PUT/DELETE on a single package
// reference identified by the path's trailing id segment.
func (s *Server) handlePackageReference(w http.ResponseWriter, r *http.Request) {
	id := pathSuffix(r, "/api/v1/packagereferences/")
	if id == "" {
		s.handlePackageReferences(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		ref, ok := s.store.Get(id)
		if !ok {
			s.writeNotFound(w, id)
			return
		}
		s.writeJSON(w, http.StatusOK, ref)
	case http.MethodPut:
		var req PackageReferenceRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, &ErrorResponse{
				ErrorType:    ErrorTypeInvalidArgument,
				ErrorCode:    "INVALID_REQUEST",
				ErrorMessage: "invalid JSON request body: " + err.Error(),
			})
			return
		}
		ref, err := s.store.Update(id, req.Provider, req.Configuration)
		if err != nil {
			s.writeNotFound(w, id)
			return
		}
		s.writeJSON(w, http.StatusOK, ref)
	case http.MethodDelete:
		if err := s.store.Delete(id); err != nil {
			s.writeError(w, http.StatusInternalServerError, &ErrorResponse{
				ErrorType:    ErrorTypeInternal,
				ErrorCode:    "STORE_WRITE_FAILED",
				ErrorMessage: err.Error(),
			})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		s.writeMethodNotAllowed(w, "GET, PUT, DELETE")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, errResp *ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errResp)
}

func (s *Server) writeNotFound(w http.ResponseWriter, id string) {
	s.writeError(w, http.StatusNotFound, &ErrorResponse{
		ErrorType:    ErrorTypeNotFound,
		ErrorCode:    "PACKAGE_REFERENCE_NOT_FOUND",
		ErrorMessage: "no package reference with id " + id,
	})
}

func (s *Server) writeMethodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	s.writeError(w, http.StatusMethodNotAllowed, &ErrorResponse{
		ErrorType:    ErrorTypeInvalidArgument,
		ErrorCode:    "METHOD_NOT_ALLOWED",
		ErrorMessage: "method not allowed",
	})
}
