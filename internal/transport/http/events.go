package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/thebeetoken/beenest-server-sub000/internal/domain"
)

// EventIngester receives settlement-contract events from the chain listener.
type EventIngester interface {
	Dispatch(ctx context.Context, ev domain.SettlementEvent) error
	LatestSequence(ctx context.Context) (int64, error)
}

// HandleSettlementEvents ingests one rail event per request. The payload
// field names are fixed by the settlement contract.
func HandleSettlementEvents(svc EventIngester) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			seq, err := svc.LatestSequence(r.Context())
			if err != nil {
				writeServiceError(w, err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(latestSequenceResponse{LatestSequence: seq})

		case http.MethodPost:
			var req settlementEventRequest
			dec := json.NewDecoder(r.Body)
			if err := dec.Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}

			err := svc.Dispatch(r.Context(), domain.SettlementEvent{
				Sequence:        req.Sequence,
				Type:            domain.EventType(req.Type),
				ContractAddress: req.ContractAddress,
				Payload:         req.Payload,
			})
			if err != nil {
				writeServiceError(w, err)
				return
			}
			w.WriteHeader(http.StatusAccepted)

		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

type settlementEventRequest struct {
	Sequence        int64              `json:"sequence"`
	Type            string             `json:"type"`
	ContractAddress string             `json:"contractAddress"`
	Payload         domain.RailPayload `json:"payload"`
}

type latestSequenceResponse struct {
	LatestSequence int64 `json:"latest_sequence"`
}
