package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/page-analyzer/internal/analyzer"
	"github.com/JakeFAU/page-analyzer/internal/logging"
)

const (
	maxFormBytes = 64 << 10
	readyTimeout = 2 * time.Second
)

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.ready.Ping(ctx); err != nil {
			s.log(r).Warn("readiness check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"}, s.logger)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"}, s.logger)
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "index", pageData{Flashes: popFlashes(w, r)})
}

func (s *Server) createURL(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest)
		return
	}
	raw := r.PostForm.Get("url")

	res, err := s.svc.AddURL(r.Context(), raw)
	switch {
	case errors.Is(err, analyzer.ErrInvalidInput):
		s.render(w, r, http.StatusUnprocessableEntity, "index", pageData{
			Flashes: []Flash{{Category: FlashDanger, Message: "Invalid URL"}},
			Value:   raw,
			Invalid: true,
		})
		return
	case err != nil:
		s.log(r).Error("add url failed", zap.Error(err))
		s.renderError(w, r, http.StatusInternalServerError)
		return
	}

	if res.Outcome == analyzer.OutcomeCreated {
		setFlash(w, FlashSuccess, "Page added successfully")
	} else {
		setFlash(w, FlashInfo, "Page already exists")
	}
	http.Redirect(w, r, urlPath(res.URL.ID), http.StatusFound)
}

func (s *Server) listURLs(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	list, err := s.svc.ListURLs(r.Context(), page)
	if err != nil {
		s.log(r).Error("list urls failed", zap.Error(err))
		s.renderError(w, r, http.StatusInternalServerError)
		return
	}
	s.render(w, r, http.StatusOK, "urls", pageData{
		Title:   "Sites",
		Flashes: popFlashes(w, r),
		List:    list,
		Pager:   newPager(list.Page, list.TotalPages()),
	})
}

func (s *Server) showURL(w http.ResponseWriter, r *http.Request) {
	id, ok := s.urlID(w, r)
	if !ok {
		return
	}
	detail, err := s.svc.GetURL(r.Context(), id)
	switch {
	case errors.Is(err, analyzer.ErrURLNotFound):
		s.renderError(w, r, http.StatusNotFound)
		return
	case err != nil:
		s.log(r).Error("load url failed", zap.Int64("url_id", id), zap.Error(err))
		s.renderError(w, r, http.StatusInternalServerError)
		return
	}
	s.render(w, r, http.StatusOK, "url", pageData{
		Title:   detail.URL.Address,
		Flashes: popFlashes(w, r),
		Detail:  detail,
	})
}

func (s *Server) runCheck(w http.ResponseWriter, r *http.Request) {
	id, ok := s.urlID(w, r)
	if !ok {
		return
	}
	_, err := s.svc.RunCheck(r.Context(), id)
	switch {
	case errors.Is(err, analyzer.ErrURLNotFound):
		s.renderError(w, r, http.StatusNotFound)
		return
	case errors.Is(err, analyzer.ErrUnreachable):
		setFlash(w, FlashDanger, "An error occurred during the check: "+unreachableReason(err))
	case err != nil:
		s.log(r).Error("run check failed", zap.Int64("url_id", id), zap.Error(err))
		s.renderError(w, r, http.StatusInternalServerError)
		return
	default:
		setFlash(w, FlashSuccess, "Page checked successfully")
	}
	http.Redirect(w, r, urlPath(id), http.StatusFound)
}

// urlID parses the {id} route parameter, rendering 400 when it is not a positive integer.
func (s *Server) urlID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		s.renderError(w, r, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	if err := s.views.render(w, status, name, data); err != nil {
		s.log(r).Error("render failed", zap.String("template", name), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int) {
	msg, ok := errorMessages[status]
	if !ok {
		msg = http.StatusText(status)
	}
	s.render(w, r, status, "error", pageData{
		Title:        strconv.Itoa(status),
		ErrorCode:    status,
		ErrorMessage: msg,
	})
}

func (s *Server) log(r *http.Request) *zap.Logger {
	return logging.FromContext(r.Context(), s.logger)
}

func urlPath(id int64) string {
	return "/urls/" + strconv.FormatInt(id, 10)
}

func unreachableReason(err error) string {
	var ue *analyzer.UnreachableError
	if errors.As(err, &ue) {
		return ue.Reason
	}
	return "site unreachable"
}
