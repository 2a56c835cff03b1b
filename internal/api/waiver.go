package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"mitoc/member/internal/envelope"
	"mitoc/member/internal/logging"
	"mitoc/member/internal/models/dtos"
	"mitoc/member/internal/services"
)

// WaiverProcessor is the service surface the waiver webhook needs.
type WaiverProcessor interface {
	ProcessWaiver(ctx context.Context, event *dtos.WaiverEvent) (*dtos.ReconcileResult, error)
}

const maxEnvelopeBytes = 1 << 20

// AddWaiverHandler handles POST /members/waiver, the DocuSign completion
// notification.
//
// There must be access control in front of this route. It parses XML from
// the request body, so the payload has to come from a trusted source:
// DocuSign signs event notifications with their X.509 certificate, which
// should be verified by nginx or similar before the request is proxied here.
func AddWaiverHandler(svc WaiverProcessor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxEnvelopeBytes))
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Could not read request body")
			return
		}

		env, err := envelope.Parse(body)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Malformed envelope")
			return
		}

		// Multi-recipient envelopes notify on each signature; wait for
		// the final one
		if !env.Completed() {
			respondNoContent(w)
			return
		}

		event, err := waiverEventFrom(env)
		if err != nil {
			logging.Warn("Unusable waiver envelope", "error", err.Error())
			respondWithError(w, http.StatusBadRequest, "Malformed envelope")
			return
		}

		result, err := svc.ProcessWaiver(r.Context(), event)
		if err != nil {
			if errors.Is(err, services.ErrUpstreamUnavailable) {
				respondWithError(w, http.StatusBadGateway, "Email verification is unavailable")
				return
			}
			respondWithError(w, http.StatusInternalServerError, "An unexpected error occurred")
			return
		}

		// Re-signing the same day is acknowledged without a new record
		if result.Outcome == dtos.OutcomeDuplicate {
			respondNoContent(w)
			return
		}
		respondWithSuccess(w, http.StatusCreated, result)
	}
}

func waiverEventFrom(env *envelope.CompletedEnvelope) (*dtos.WaiverEvent, error) {
	email, err := env.ReleasorEmail()
	if err != nil {
		return nil, err
	}
	signedAt, err := env.TimeSigned()
	if err != nil {
		return nil, err
	}
	affiliation, err := env.Affiliation()
	if err != nil {
		return nil, err
	}
	first, err := env.FirstName()
	if err != nil {
		return nil, err
	}
	last, err := env.LastName()
	if err != nil {
		return nil, err
	}

	return &dtos.WaiverEvent{
		Email:       email,
		FirstName:   first,
		LastName:    last,
		Affiliation: affiliation,
		SignedAt:    signedAt,
	}, nil
}
