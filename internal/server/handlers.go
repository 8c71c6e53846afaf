package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/law-makers/landed/internal/quote"
	"github.com/law-makers/landed/internal/reqctx"
	urlutil "github.com/law-makers/landed/internal/utils/url"
	"github.com/law-makers/landed/pkg/models"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

// QuoteRequest is the inbound body of the quote API
type QuoteRequest struct {
	Items []quote.Line `json:"items" validate:"required,min=1,max=100,dive"`
}

// QuoteResponse wraps a priced quote
type QuoteResponse struct {
	OK    bool        `json:"ok"`
	Quote quote.Quote `json:"quote"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) extractPost(w http.ResponseWriter, r *http.Request) {
	var req models.ExtractRequest
	if err := s.decode(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.extractOne(w, r, req)
}

func (s *Server) extractGet(w http.ResponseWriter, r *http.Request) {
	req := models.ExtractRequest{URL: strings.TrimSpace(r.URL.Query().Get("url"))}
	if err := s.check(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.extractOne(w, r, req)
}

// extractOne always answers 200 once the URL is valid; confidence flags
// carry the outcome.
func (s *Server) extractOne(w http.ResponseWriter, r *http.Request, req models.ExtractRequest) {
	if err := urlutil.ValidateURL(req.URL); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec := s.extractor.Extract(r.Context(), req.URL)
	respondJSON(w, http.StatusOK, models.ExtractResponse{OK: true, ProductRecord: rec})
}

func (s *Server) extractBatch(w http.ResponseWriter, r *http.Request) {
	var req models.BatchRequest
	if err := s.decode(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	for i, u := range req.URLs {
		if err := urlutil.ValidateURL(u); err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("urls[%d]: %v", i, err))
			return
		}
	}

	records := s.extractor.Batch(r.Context(), req.URLs, s.opts.BatchConcurrency, nil)

	resp := models.BatchResponse{OK: true, Results: make([]models.ExtractResponse, len(records))}
	for i, rec := range records {
		resp.Results[i] = models.ExtractResponse{OK: true, ProductRecord: rec}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) quote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := s.decode(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	q, err := s.quoter.Quote(req.Items)
	if err != nil {
		if errors.Is(err, quote.ErrInvalidLine) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger := reqctx.Logger(r.Context())
		logger.Error().Err(err).Msg("Quote failed")
		respondError(w, http.StatusInternalServerError, "failed to compute quote")
		return
	}

	respondJSON(w, http.StatusOK, QuoteResponse{OK: true, Quote: q})
}

// decode reads a bounded JSON body into dst and validates it
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body")
	}
	return s.check(dst)
}

func (s *Server) check(v interface{}) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), strings.SplitN(fe.Namespace(), ".", 2)[0]+".")
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "url":
			msgs = append(msgs, field+" must be a valid URL")
		case "min", "max":
			msgs = append(msgs, fmt.Sprintf("%s must have %s %s", field, fe.Tag(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, models.ErrorResponse{OK: false, Error: message})
}
