package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/alexanderramin/smartplan/internal/domain"
	"github.com/alexanderramin/smartplan/internal/pipeline"
	"github.com/alexanderramin/smartplan/internal/plan"
)

// SmartGoalRequest is the body of POST /smart_goal.
type SmartGoalRequest struct {
	UserID      string      `json:"user_id"`
	PreGoalData preGoalData `json:"pre_goal_data"`
}

type preGoalData struct {
	What    string         `json:"what"`
	Why     string         `json:"why"`
	When    string         `json:"when"`
	Profile map[string]any `json:"profile,omitempty"`
}

// GeneratePlanRequest is the body of POST /generate_milestones_and_tasks.
type GeneratePlanRequest struct {
	UserID        string `json:"user_id"`
	ValidatedGoal string `json:"validated_goal"`
}

type feedbackRequest struct {
	Text string `json:"text"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func (s *Server) handleSmartGoal(w http.ResponseWriter, r *http.Request) {
	var req SmartGoalRequest
	if !decodeBody(w, r, &req) {
		return
	}
	pre := domain.PreGoal{
		What:    req.PreGoalData.What,
		Why:     req.PreGoalData.Why,
		When:    req.PreGoalData.When,
		Profile: req.PreGoalData.Profile,
	}

	goal, err := s.svc.SmartGoal(r.Context(), pre)
	if err != nil {
		var fieldErrs domain.FieldErrors
		if errors.As(err, &fieldErrs) {
			writeJSON(w, http.StatusBadRequest, fieldErrorBody{Errors: fieldErrs})
			return
		}
		s.upstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (s *Server) handleGeneratePlan(w http.ResponseWriter, r *http.Request) {
	var req GeneratePlanRequest
	if !decodeBody(w, r, &req) {
		return
	}
	gp, err := s.svc.GeneratePlan(r.Context(), req.ValidatedGoal)
	if err != nil {
		if errors.Is(err, pipeline.ErrEmptyGoal) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.upstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gp)
}

// upstreamError answers 502 with the pipeline's user-facing message. Any
// other error is reported as internal without its cause.
func (s *Server) upstreamError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, pipeline.ErrSmartGoalFailed), errors.Is(err, pipeline.ErrInvalidPlan):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.svc.ListPlans(r.Context())
	if err != nil {
		s.upstreamError(w, r, err)
		return
	}
	if plans == nil {
		plans = []pipeline.PlanSummary{}
	}
	writeJSON(w, http.StatusOK, plans)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	gp, ok := s.loadPlan(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, gp)
}

func (s *Server) handleExportPlan(w http.ResponseWriter, r *http.Request) {
	format := plan.FormatMarkdown
	if q := r.URL.Query().Get("format"); q != "" {
		f, err := plan.ParseFormat(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		format = f
	}
	gp, ok := s.loadPlan(w, r)
	if !ok {
		return
	}
	content, filename, err := plan.Export(gp.Markdown, format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	contentType := "text/plain; charset=utf-8"
	if format == plan.FormatMarkdown {
		contentType = "text/markdown; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(content))
}

func (s *Server) loadPlan(w http.ResponseWriter, r *http.Request) (*domain.GoalPlan, bool) {
	gp, err := s.svc.LoadPlan(r.Context(), r.PathValue("guid"))
	if err != nil {
		if errors.Is(err, pipeline.ErrPlanNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return nil, false
		}
		s.upstreamError(w, r, err)
		return nil, false
	}
	return gp, true
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id, err := s.svc.SubmitFeedback(r.Context(), req.Text)
	if err != nil {
		if errors.Is(err, pipeline.ErrEmptyFeedback) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.upstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}
