package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mitoc/member/internal/models/dtos"
	"mitoc/member/internal/services"
)

const waiverTemplate = `<?xml version="1.0" encoding="utf-8"?>
<DocuSignEnvelopeInformation xmlns:xsd="http://www.w3.org/2001/XMLSchema"
                             xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"
                             xmlns="http://www.docusign.net/API/3.0">
  <EnvelopeStatus>
    <RecipientStatuses>
      <RecipientStatus>
        <Email>tim@mit.edu</Email>
        <Status>Completed</Status>
        <Signed>2018-11-10T18:41:06.937</Signed>
        <TabStatuses>
          <TabStatus>
            <TabLabel>Releasor's Name</TabLabel>
            <TabValue>Tim Beaver</TabValue>
          </TabStatus>
          <TabStatus>
            <TabLabel>Releasor's Email</TabLabel>
            <TabValue>tim@mit.edu</TabValue>
          </TabStatus>
          <TabStatus>
            <TabLabel>Affiliation</TabLabel>
            <TabValue>Non-affiliate</TabValue>
          </TabStatus>
        </TabStatuses>
      </RecipientStatus>
    </RecipientStatuses>
    <Status>%s</Status>
  </EnvelopeStatus>
  <TimeZoneOffset>-5</TimeZoneOffset>
</DocuSignEnvelopeInformation>`

type fakeWaiverService struct {
	result *dtos.ReconcileResult
	err    error
	events []*dtos.WaiverEvent
}

func (f *fakeWaiverService) ProcessWaiver(ctx context.Context, event *dtos.WaiverEvent) (*dtos.ReconcileResult, error) {
	f.events = append(f.events, event)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func postWaiver(svc *fakeWaiverService, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/members/waiver", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/xml")
	w := httptest.NewRecorder()
	AddWaiverHandler(svc)(w, req)
	return w
}

func TestWaiverCompleted(t *testing.T) {
	expires := time.Date(2019, time.November, 10, 23, 41, 6, 937000000, time.UTC)
	svc := &fakeWaiverService{
		result: &dtos.ReconcileResult{Outcome: dtos.OutcomeCreated, PersonID: 301, Expires: &expires},
	}

	w := postWaiver(svc, fmt.Sprintf(waiverTemplate, "Completed"))

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	if len(svc.events) != 1 {
		t.Fatalf("Expected one service call, got %d", len(svc.events))
	}
	event := svc.events[0]
	if event.Email != "tim@mit.edu" || event.FirstName != "Tim" || event.LastName != "Beaver" {
		t.Errorf("Unexpected event %+v", event)
	}
	if event.Affiliation != "Non-affiliate" {
		t.Errorf("Expected affiliation Non-affiliate, got %q", event.Affiliation)
	}
	wantSigned := time.Date(2018, time.November, 10, 23, 41, 6, 937000000, time.UTC)
	if !event.SignedAt.Equal(wantSigned) {
		t.Errorf("Expected SignedAt %v in UTC, got %v", wantSigned, event.SignedAt)
	}
}

func TestWaiverNotYetCompleted(t *testing.T) {
	svc := &fakeWaiverService{}

	w := postWaiver(svc, fmt.Sprintf(waiverTemplate, "Sent"))

	if w.Code != http.StatusNoContent {
		t.Errorf("Expected 204 for an incomplete envelope, got %d", w.Code)
	}
	if len(svc.events) != 0 {
		t.Error("Incomplete envelopes must not reach the service")
	}
}

func TestWaiverMalformedBody(t *testing.T) {
	svc := &fakeWaiverService{}

	w := postWaiver(svc, "decision=ACCEPT&req_amount=15.00")

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a non-XML body, got %d", w.Code)
	}
}

func TestWaiverMissingEmailTab(t *testing.T) {
	svc := &fakeWaiverService{}
	body := strings.Replace(fmt.Sprintf(waiverTemplate, "Completed"),
		"Releasor's Email", "Somebody's Email", 1)

	w := postWaiver(svc, body)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 when the email tab is missing, got %d", w.Code)
	}
	if len(svc.events) != 0 {
		t.Error("Unusable envelopes must not reach the service")
	}
}

func TestWaiverDuplicateReturns204(t *testing.T) {
	svc := &fakeWaiverService{
		result: &dtos.ReconcileResult{Outcome: dtos.OutcomeDuplicate, PersonID: 62},
	}

	w := postWaiver(svc, fmt.Sprintf(waiverTemplate, "Completed"))

	if w.Code != http.StatusNoContent {
		t.Errorf("Expected 204 for a same-day re-signing, got %d", w.Code)
	}
}

func TestWaiverUpstreamUnavailable(t *testing.T) {
	svc := &fakeWaiverService{err: services.ErrUpstreamUnavailable}

	w := postWaiver(svc, fmt.Sprintf(waiverTemplate, "Completed"))

	if w.Code != http.StatusBadGateway {
		t.Errorf("Expected 502, got %d", w.Code)
	}
}
