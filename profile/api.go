package profile

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alovak/cardprofile/internal/docstore"
	"github.com/alovak/cardprofile/internal/payment"
	"github.com/alovak/cardprofile/profile/models"
	"github.com/go-chi/chi/v5"
)

// API is the HTTP surface over the profile state machine.
type API struct {
	profile *Service
}

func NewAPI(profile *Service) *API {
	return &API{
		profile: profile,
	}
}

func (a *API) AppendRoutes(r chi.Router) {
	r.Route("/card", func(r chi.Router) {
		r.Get("/", a.getCard)
		r.Post("/load", a.reload)
		r.Post("/form", a.openForm)
		r.Delete("/form", a.cancelForm)
		r.Post("/", a.submitCard)
		r.Patch("/", a.patchCard)
		r.Delete("/", a.deleteCard)
		r.Post("/payments", a.makePayment)
	})
}

func (a *API) getCard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.profile.Snapshot())
}

func (a *API) reload(w http.ResponseWriter, r *http.Request) {
	if err := a.profile.Load(r.Context()); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.profile.Snapshot())
}

func (a *API) openForm(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var err error
	switch body.Mode {
	case "create":
		err = a.profile.Create()
	case "edit":
		err = a.profile.Edit()
	default:
		http.Error(w, `mode must be "create" or "edit"`, http.StatusBadRequest)
		return
	}
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.profile.Snapshot())
}

func (a *API) cancelForm(w http.ResponseWriter, r *http.Request) {
	if err := a.profile.Cancel(); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.profile.Snapshot())
}

func (a *API) submitCard(w http.ResponseWriter, r *http.Request) {
	draft := models.Draft{}
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := a.profile.Submit(r.Context(), draft); err != nil {
		a.writeError(w, err)
		return
	}

	snap := a.profile.Snapshot()
	status := http.StatusOK
	if len(snap.FieldErrors) > 0 {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, snap)
}

func (a *API) patchCard(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(fields) == 0 {
		http.Error(w, "no fields to update", http.StatusBadRequest)
		return
	}

	if err := a.profile.PatchRecord(r.Context(), fields); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.profile.Snapshot())
}

// deleteCard requires confirm=true; the query parameter stands in for the
// blocking confirmation prompt of an interactive frontend.
func (a *API) deleteCard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		http.Error(w, "card delete requires explicit confirmation (confirm=true)", http.StatusBadRequest)
		return
	}

	if err := a.profile.Delete(r.Context(), func() bool { return true }); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.profile.Snapshot())
}

func (a *API) makePayment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Amount string `json:"amount"`
		Method string `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := a.profile.Pay(r.Context(), body.Amount, body.Method)
	if err != nil {
		a.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Result   payment.Result `json:"result"`
		Snapshot Snapshot       `json:"snapshot"`
	}{result, a.profile.Snapshot()})
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, payment.ErrRejected):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, docstore.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
