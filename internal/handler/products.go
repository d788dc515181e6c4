package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/view"
	"github.com/xenking/storefront/internal/session"
)

// listProducts returns the session's view snapshot, loading the catalog on
// first use.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request, s *session.Session) {
	if !s.View.HasCatalog() {
		if err := s.View.Refresh(r.Context()); err != nil && !errors.Is(err, view.ErrSuperseded) {
			writeError(w, r, err)
			return
		}
	}
	snap := s.View.Snapshot()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeSnapshot(e, snap) })
}

func (h *Handler) refreshProducts(w http.ResponseWriter, r *http.Request, s *session.Session) {
	if err := s.View.Refresh(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	snap := s.View.Snapshot()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeSnapshot(e, snap) })
}

// getProduct starts a detail fetch and waits for it. A request overtaken by a
// newer one from the same session answers 409.
func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request, s *session.Session) {
	req := s.View.BeginDetailFetch(r.Context(), r.PathValue("id"))
	p, err := req.Wait(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProduct(e, *p) })
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request, s *session.Session) {
	if !s.View.HasCatalog() {
		if err := s.View.Refresh(r.Context()); err != nil && !errors.Is(err, view.ErrSuperseded) {
			writeError(w, r, err)
			return
		}
	}
	categories := s.View.Categories()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeStrings(e, categories) })
}

// patchView applies the present fields of the body as one parameter change.
func (h *Handler) patchView(w http.ResponseWriter, r *http.Request, s *session.Session) {
	req, err := h.decodeViewPatch(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	p := s.View.Params()
	if req.Search != nil {
		p.SearchTerm = *req.Search
	}
	if req.Category != nil {
		p.Category = *req.Category
	}
	if req.Sort != nil {
		if p.Sort, err = view.ParseSortOrder(*req.Sort); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if err := s.View.SetParams(p); err != nil {
		writeError(w, r, err)
		return
	}

	snap := s.View.Snapshot()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeSnapshot(e, snap) })
}
