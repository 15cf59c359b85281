package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"minicrm/internal/domain"
	"minicrm/internal/service"
)

type API struct {
	Ingestion *service.Ingestion
	Campaigns *service.Campaigns
}

func (a *API) Register(r *mux.Router) {
	r.HandleFunc("/v1/customers", a.handleIngestCustomers).Methods(http.MethodPost)
	r.HandleFunc("/v1/orders", a.handleIngestOrders).Methods(http.MethodPost)
	r.HandleFunc("/v1/campaigns", a.handleCreateCampaign).Methods(http.MethodPost)
	r.HandleFunc("/v1/campaigns/{id}", a.handleGetCampaign).Methods(http.MethodGet)
	r.HandleFunc("/v1/campaigns/{id}/logs", a.handleCampaignLogs).Methods(http.MethodGet)
}

func (a *API) handleIngestCustomers(w http.ResponseWriter, r *http.Request) {
	var records []domain.CustomerRecord
	if !decodeOneOrMany(w, r, &records) {
		return
	}
	res, err := a.Ingestion.QueueCustomers(r.Context(), records)
	if err != nil {
		writeIngestError(w, "customer", err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

func (a *API) handleIngestOrders(w http.ResponseWriter, r *http.Request) {
	var records []domain.OrderRecord
	if !decodeOneOrMany(w, r, &records) {
		return
	}
	res, err := a.Ingestion.QueueOrders(r.Context(), records)
	if err != nil {
		writeIngestError(w, "order", err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

func (a *API) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req service.CreateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cmp, err := a.Campaigns.Create(r.Context(), req)
	switch {
	case errors.Is(err, service.ErrEnqueueFailed):
		// Persisted but unqueued; return the id so delivery can be replayed.
		slog.Error("campaign created but not queued", "campaign_id", cmp.ID, "err", err)
		writeJSON(w, http.StatusServiceUnavailable, cmp)
		return
	case err != nil:
		// Validation already passed, so anything left is a store or
		// segmentation dependency failing.
		slog.Error("create campaign failed", "campaign_name", req.CampaignName, "err", err)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusCreated, cmp)
}

func (a *API) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, ErrMissingID, http.StatusBadRequest)
		return
	}
	cmp, found, err := a.Campaigns.Get(r.Context(), id)
	if err != nil {
		slog.Error("get campaign failed", "campaign_id", id, "err", err)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	if !found {
		http.Error(w, ErrNotFound, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

func (a *API) handleCampaignLogs(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, ErrMissingID, http.StatusBadRequest)
		return
	}
	logs, err := a.Campaigns.Logs(r.Context(), id)
	if err != nil {
		slog.Error("list campaign logs failed", "campaign_id", id, "err", err)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	if logs == nil {
		logs = []domain.CommunicationLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

// decodeOneOrMany reads the body as either a JSON array of records or a
// single record. Clients batch when they can, but single-object posts are
// accepted too.
func decodeOneOrMany[T any](w http.ResponseWriter, r *http.Request, out *[]T) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return false
	}
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) == 0 {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return false
	}

	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, out); err != nil {
			http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
			return false
		}
	} else {
		var one T
		if err := json.Unmarshal(trimmed, &one); err != nil {
			http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
			return false
		}
		*out = []T{one}
	}

	if len(*out) == 0 {
		http.Error(w, "empty batch", http.StatusBadRequest)
		return false
	}
	return true
}

func writeIngestError(w http.ResponseWriter, kind string, err error) {
	// Validation failures name the offending record; anything else means the
	// queue rejected the batch.
	if isValidationErr(err) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	slog.Error("ingest enqueue failed", "kind", kind, "err", err)
	http.Error(w, ErrQueueDown, http.StatusServiceUnavailable)
}

func isValidationErr(err error) bool {
	return errors.Is(err, service.ErrBadRecord)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
