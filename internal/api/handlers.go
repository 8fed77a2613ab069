package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"product-insights-go/internal/aggregator"
	"product-insights-go/internal/chat"
	"product-insights-go/internal/dataset"
	"product-insights-go/internal/session"
	"product-insights-go/internal/types"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": session.Version})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"users": s.sess.Profiles()})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "userID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.sess.Lookup(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.sess.Snapshot())
}

type selectUserRequest struct {
	UserID int `json:"user_id" validate:"required,gte=1"`
}

func (s *Server) handleSelectUser(w http.ResponseWriter, r *http.Request) {
	var req selectUserRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	snap, err := s.sess.SelectUser(r.Context(), req.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

type setModeRequest struct {
	Mode string `json:"mode" validate:"required"`
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req setModeRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	mode, err := session.ParseMode(req.Mode)
	if err == nil {
		err = s.sess.SetMode(mode)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"mode": mode, "modes": s.sess.Modes()})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.sess.Reset()
	respondJSON(w, http.StatusOK, s.sess.Snapshot())
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	snap := s.sess.Snapshot()
	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":         snap.User.UserID,
		"mode":            snap.Mode,
		"loading":         snap.Loading,
		"recommendations": snap.Recommendations,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		log := s.log.WithRequest(r)
		// outlive the request, keep its values
		ctx := context.WithoutCancel(r.Context())
		s.sess.RefreshAsync(ctx,
			func(snap session.Snapshot) {
				log.WithField("count", len(snap.Recommendations)).Info("async refresh finished")
			},
			func(err error) {
				log.WithField("error", err.Error()).Warn("async refresh failed")
			},
		)
		respondJSON(w, http.StatusAccepted, map[string]any{"status": "refreshing", "loading": true})
		return
	}

	snap, err := s.sess.Refresh(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

type analyticsResponse struct {
	Summary aggregator.Summary `json:"summary"`
	KPIs    aggregator.KPIs    `json:"kpis"`
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	sum, err := s.sess.Summary()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, analyticsResponse{Summary: sum, KPIs: sum.KPIs()})
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"performance": s.sess.Performance()})
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	out, err := s.sess.Insights(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.sess.Report()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := dataset.WriteReport(&buf, rep); err != nil {
		s.fail(w, r, err)
		return
	}
	name := fmt.Sprintf("recommendations-user%d-%s.xlsx", rep.UserID, rep.GeneratedAt.UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.log.WithRequest(r).WithField("error", err.Error()).Warn("export write failed")
	}
}

type actionRequest struct {
	Action string `json:"action" validate:"required"`
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "productID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req actionRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.sess.RecordAction(id, req.Action)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.WithRequest(r).WithFields(logrus.Fields{"product_id": id, "action": res.Action}).Info("product action")
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]map[int]types.ActionCounts{"actions": s.sess.Actions()})
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"messages":        s.sess.Transcript(),
		"quick_questions": chat.QuickQuestions,
	})
}

type askRequest struct {
	Query string `json:"query" validate:"required"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	ex, err := s.sess.Ask(r.Context(), req.Query)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ex)
}

func pathInt(r *http.Request, key string) (int, error) {
	raw := chi.URLParam(r, key)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest{msg: fmt.Sprintf("%s must be an integer (got %q)", key, raw)}
	}
	return n, nil
}
