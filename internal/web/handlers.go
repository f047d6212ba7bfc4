package web

import (
	"bytes"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, newPageData(ParsePage(r.URL.Query().Get("page"))))
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, newPageData(ParsePage(mux.Vars(r)["page"])))
}

// handleFormPredict validates the submitted form and re-renders the home
// page with either the result or the rejected fields.
func (s *Server) handleFormPredict(w http.ResponseWriter, r *http.Request) {
	data := newPageData(PageHome)
	data.RequestID = RequestID(r.Context())

	if err := r.ParseForm(); err != nil {
		data.Failure = "The form could not be read."
		s.render(w, http.StatusBadRequest, data)
		return
	}
	data.Values = r.PostForm

	obs, errs := ParseForm(r.PostForm)
	if len(errs) > 0 {
		s.rejectFields(errs)
		data.Errors = errs
		log.Debug().Strs("fields", errs.Fields()).Msg("prediction form rejected")
		s.render(w, http.StatusUnprocessableEntity, data)
		return
	}

	pred, _, err := s.predict(r.Context(), obs)
	if err != nil {
		log.Error().Err(err).Str("request_id", data.RequestID).Msg("form prediction failed")
		data.Failure = "The prediction could not be computed. Please try again."
		s.render(w, http.StatusInternalServerError, data)
		return
	}

	data.Result = formatYield(pred.YieldKg)
	data.Outliers = outlierFeatures(pred.Outliers)
	s.render(w, http.StatusOK, data)
}

// render executes the page into a buffer first so a template error still
// produces a clean 500.
func (s *Server) render(w http.ResponseWriter, status int, data *pageData) {
	t, ok := s.pages[data.Page]
	if !ok {
		t = s.pages[PageHome]
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		log.Error().Err(err).Str("page", data.Page.String()).Msg("failed to render page")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}
