package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/couchcryptid/yard-weather-service/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const maxRequestBytes = 1 << 20

// sampleRequest mirrors the subscription form: the report is sent without the
// subscriber being stored.
type sampleRequest struct {
	Email     string  `json:"email" validate:"required,email"`
	Location  string  `json:"location" validate:"required,max=100"`
	YardSize  float64 `json:"yard_size" validate:"gte=0"`
	Elevation float64 `json:"elevation" validate:"gte=-1500,lte=30000"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	kind, ok := reportKind(w, r)
	if !ok {
		return
	}

	var req sampleRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", fmt.Sprintf("invalid request body: %v", err))
		return
	}
	req.Location = strings.TrimSpace(req.Location)
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", validationMessage(err))
		return
	}

	sub := domain.Subscriber{
		Email:         req.Email,
		Location:      req.Location,
		YardSize:      req.YardSize,
		ElevationFeet: req.Elevation,
		Active:        true,
	}
	if err := s.reports.Deliver(r.Context(), kind, sub); err != nil {
		s.logger.Warn("sample report failed", "subscriber", sub.Email, "kind", kind, "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	kind, ok := reportKind(w, r)
	if !ok {
		return
	}

	location := strings.TrimSpace(r.URL.Query().Get("location"))
	if location == "" {
		writeError(w, http.StatusBadRequest, "validation", "location is required")
		return
	}
	var elevation float64
	if v := r.URL.Query().Get("elevation"); v != "" {
		var err error
		if elevation, err = strconv.ParseFloat(v, 64); err != nil {
			writeError(w, http.StatusBadRequest, "validation", "elevation must be a number")
			return
		}
	}

	report, err := s.reports.Build(r.Context(), kind, domain.Subscriber{Location: location, ElevationFeet: elevation})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Report-Subject", report.Subject)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(report.Body))
}

func (s *Server) handleSendNow(w http.ResponseWriter, r *http.Request) {
	kind, ok := reportKind(w, r)
	if !ok {
		return
	}

	email := chi.URLParam(r, "email")
	sub, err := s.subs.Get(r.Context(), email)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.reports.Deliver(r.Context(), kind, sub); err != nil {
		s.logger.Warn("on-demand report failed", "subscriber", email, "kind", kind, "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func reportKind(w http.ResponseWriter, r *http.Request) (domain.ReportKind, bool) {
	kind, err := domain.ParseReportKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", err.Error())
		return "", false
	}
	return kind, true
}

// statusFor maps an error kind to the HTTP status returned to the caller.
func statusFor(kind string) int {
	switch kind {
	case "geocode":
		return http.StatusUnprocessableEntity
	case "forecast_unavailable", "incomplete_forecast", "authentication", "delivery":
		return http.StatusBadGateway
	case "not_found":
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError reports err verbatim, provider message included.
func writeDomainError(w http.ResponseWriter, err error) {
	kind := domain.ErrorKind(err)
	writeError(w, statusFor(kind), kind, err.Error())
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "email":
			msgs = append(msgs, field+" must be a valid email address")
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		}
	}
	return strings.Join(msgs, "; ")
}
