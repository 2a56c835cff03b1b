package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"mitoc/member/internal/logging"
	"mitoc/member/internal/metrics"
	"mitoc/member/internal/models/dtos"
	"mitoc/member/internal/services"
	"mitoc/member/internal/signature"
)

// MembershipProcessor is the service surface the payment webhook needs.
type MembershipProcessor interface {
	ProcessPayment(ctx context.Context, event *dtos.PaymentEvent) (*dtos.ReconcileResult, error)
}

// CyberSource Secure Acceptance reply fields. The payer's email lives in
// merchant-defined data, NOT req_bill_to_email (payers can change that one
// at checkout).
const (
	fieldDecision        = "decision"
	fieldPaymentCategory = "req_merchant_defined_data1"
	fieldAffiliationCode = "req_merchant_defined_data2"
	fieldPayerEmail      = "req_merchant_defined_data3"
	fieldAmount          = "req_amount"
	fieldForename        = "req_bill_to_forename"
	fieldSurname         = "req_bill_to_surname"
	fieldSignedAt        = "signed_date_time"
)

const signedDateTimeLayout = "2006-01-02T15:04:05Z"

// AddMembershipHandler handles POST /members/membership, the CyberSource
// payment notification. A nil signer disables signature verification
// (local development only).
func AddMembershipHandler(svc MembershipProcessor, signer *signature.SecureAcceptanceSigner, metricsReg *metrics.MetricsRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			respondWithError(w, http.StatusBadRequest, "Could not parse form data")
			return
		}
		data := formValues(r.PostForm)

		// Some other payment (rentals, donations): acknowledge and ignore
		if data[fieldPaymentCategory] != "membership" {
			respondNoContent(w)
			return
		}

		if signer != nil {
			verified, err := signer.VerifyRequest(data)
			if err != nil || !verified {
				if metricsReg != nil {
					metricsReg.SignatureFailuresTotal.Inc()
				}
				logging.Warn("Rejected payment notification with bad signature",
					"remote_addr", r.RemoteAddr,
				)
				respondWithError(w, http.StatusUnauthorized, "Invalid signature")
				return
			}
		}

		// Declined or reviewed transactions never become memberships
		if data[fieldDecision] != "ACCEPT" {
			respondNoContent(w)
			return
		}

		paidAt, err := time.Parse(signedDateTimeLayout, data[fieldSignedAt])
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Bad signed_date_time")
			return
		}

		event := &dtos.PaymentEvent{
			Email:           data[fieldPayerEmail],
			FirstName:       data[fieldForename],
			LastName:        data[fieldSurname],
			Amount:          data[fieldAmount],
			AffiliationCode: data[fieldAffiliationCode],
			PaidAt:          paidAt,
		}

		result, err := svc.ProcessPayment(r.Context(), event)
		if err != nil {
			respondWithProcessingError(w, err)
			return
		}

		if result.Outcome == dtos.OutcomeDuplicate {
			respondWithSuccess(w, http.StatusAccepted, result)
			return
		}
		respondWithSuccess(w, http.StatusCreated, result)
	}
}

func respondWithProcessingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidAffiliation):
		respondWithError(w, http.StatusBadRequest, "Unknown affiliation code")
	case errors.Is(err, services.ErrIncorrectPayment):
		respondWithError(w, http.StatusBadRequest, "Paid amount does not match affiliation")
	case errors.Is(err, services.ErrUpstreamUnavailable):
		respondWithError(w, http.StatusBadGateway, "Email verification is unavailable")
	default:
		respondWithError(w, http.StatusInternalServerError, "An unexpected error occurred")
	}
}

func formValues(form url.Values) map[string]string {
	data := make(map[string]string, len(form))
	for key := range form {
		data[key] = form.Get(key)
	}
	return data
}
