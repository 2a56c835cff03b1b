// Package envelope parses the XML payload DocuSign delivers when a waiver
// envelope completes. Event notifications are signed with DocuSign's X.509
// certificate and must be verified upstream (nginx or similar) before the
// payload reaches this code.
package envelope

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"mitoc/member/internal/constants"
)

// SchemaNamespace is the namespace every waiver envelope is delivered under.
const SchemaNamespace = "http://www.docusign.net/API/3.0"

const rootElement = "DocuSignEnvelopeInformation"

var (
	// ErrMalformed covers any envelope whose shape or contents we cannot
	// use: wrong root element, missing tabs, unparseable timestamps.
	ErrMalformed = errors.New("malformed envelope")

	// ErrNotCompleted is returned when signing data is requested from an
	// envelope that is still awaiting signatures.
	ErrNotCompleted = errors.New("envelope is not completed")
)

// Tab labels on the waiver template.
const (
	releasorEmailLabel = "Releasor's Email"
	releasorNameLabel  = "Releasor's Name"
	affiliationLabel   = "Affiliation"
)

const signedLayout = "2006-01-02T15:04:05.999999"

// CompletedEnvelope exposes the releasor fields of a waiver envelope.
// Callers must check Completed before reading TimeSigned: a multi-recipient
// envelope (e.g. one awaiting a guardian's signature) has no final
// completion timestamp yet.
type CompletedEnvelope struct {
	doc envelopeDoc
}

type envelopeDoc struct {
	XMLName        xml.Name
	TimeZoneOffset string `xml:"TimeZoneOffset"`
	EnvelopeStatus struct {
		Status            string `xml:"Status"`
		RecipientStatuses struct {
			RecipientStatus []recipientStatus `xml:"RecipientStatus"`
		} `xml:"RecipientStatuses"`
	} `xml:"EnvelopeStatus"`
}

type recipientStatus struct {
	Signed      string `xml:"Signed"`
	TabStatuses struct {
		TabStatus []tabStatus `xml:"TabStatus"`
	} `xml:"TabStatuses"`
}

type tabStatus struct {
	TabLabel string `xml:"TabLabel"`
	// A self-closing TabValue decodes to an empty string; either way the
	// tab is treated as absent rather than as an empty value.
	TabValue *string `xml:"TabValue"`
}

// Parse decodes the raw XML and fails fast on anything that is not a
// DocuSign envelope under the expected schema.
func Parse(contents []byte) (*CompletedEnvelope, error) {
	var doc envelopeDoc
	if err := xml.Unmarshal(contents, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if doc.XMLName.Local != rootElement || doc.XMLName.Space != SchemaNamespace {
		return nil, fmt.Errorf("%w: unexpected root element <%s>", ErrMalformed, doc.XMLName.Local)
	}
	return &CompletedEnvelope{doc: doc}, nil
}

// Completed reports whether the envelope as a whole reached "Completed".
func (e *CompletedEnvelope) Completed() bool {
	return strings.TrimSpace(e.doc.EnvelopeStatus.Status) == "Completed"
}

// TimeSigned returns the completion timestamp normalized to UTC. DocuSign
// reports local time plus a separate offset in hours, with or without
// fractional seconds.
func (e *CompletedEnvelope) TimeSigned() (time.Time, error) {
	if !e.Completed() {
		return time.Time{}, ErrNotCompleted
	}

	recipient, err := e.recipient()
	if err != nil {
		return time.Time{}, err
	}

	raw := strings.TrimSpace(recipient.Signed)
	ts, err := time.Parse(signedLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad signing timestamp %q", ErrMalformed, raw)
	}

	offset, err := e.hoursOffset()
	if err != nil {
		return time.Time{}, err
	}

	return ts.Add(-time.Duration(offset) * time.Hour).UTC(), nil
}

// ReleasorEmail returns the email the releasor entered on the waiver.
func (e *CompletedEnvelope) ReleasorEmail() (string, error) {
	return e.tabValue(releasorEmailLabel)
}

// ReleasorName returns the full name as entered on the waiver.
func (e *CompletedEnvelope) ReleasorName() (string, error) {
	return e.tabValue(releasorNameLabel)
}

// Affiliation returns the releasor's stated affiliation. The DocuSign
// template restricts the field to the known long-form names, so an unknown
// value means the document itself is unusable.
func (e *CompletedEnvelope) Affiliation() (string, error) {
	affiliation, err := e.tabValue(affiliationLabel)
	if err != nil {
		return "", err
	}
	if !constants.KnownAffiliation(affiliation) {
		return "", fmt.Errorf("%w: unknown affiliation %q", ErrMalformed, affiliation)
	}
	return affiliation, nil
}

// FirstName returns everything before the first run of whitespace in the
// releasor's name (the whole name for mononyms).
func (e *CompletedEnvelope) FirstName() (string, error) {
	name, err := e.ReleasorName()
	if err != nil {
		return "", err
	}
	first, _ := splitName(name)
	return first, nil
}

// LastName returns everything after the first run of whitespace, with
// internal whitespace runs collapsed. Empty for mononyms.
func (e *CompletedEnvelope) LastName() (string, error) {
	name, err := e.ReleasorName()
	if err != nil {
		return "", err
	}
	_, last := splitName(name)
	return last, nil
}

func splitName(fullName string) (first, last string) {
	parts := strings.Fields(fullName)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func (e *CompletedEnvelope) recipient() (*recipientStatus, error) {
	statuses := e.doc.EnvelopeStatus.RecipientStatuses.RecipientStatus
	if len(statuses) == 0 {
		return nil, fmt.Errorf("%w: no recipient status", ErrMalformed)
	}
	return &statuses[0], nil
}

func (e *CompletedEnvelope) hoursOffset() (int, error) {
	raw := strings.TrimSpace(e.doc.TimeZoneOffset)
	offset, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: bad timezone offset %q", ErrMalformed, raw)
	}
	return offset, nil
}

func (e *CompletedEnvelope) tabValue(label string) (string, error) {
	recipient, err := e.recipient()
	if err != nil {
		return "", err
	}
	for _, tab := range recipient.TabStatuses.TabStatus {
		if strings.TrimSpace(tab.TabLabel) != label {
			continue
		}
		if tab.TabValue == nil {
			continue // self-closing tab, no value entered
		}
		if value := strings.TrimSpace(*tab.TabValue); value != "" {
			return value, nil
		}
	}
	return "", fmt.Errorf("%w: missing %q tab", ErrMalformed, label)
}
