package hails

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/openmaraude/apitaxi/pkg/db/models"
	"github.com/openmaraude/apitaxi/pkg/enums"
	"github.com/openmaraude/apitaxi/pkg/geostore"
)

const (
	// DeliveryStaleness bounds how old a hail may be when its delivery
	// message is finally processed. Past it the customer has given up
	// waiting and the hail fails instead of surprising the operator.
	DeliveryStaleness = 10 * time.Second

	// DeliveryTimeout caps the single HTTP attempt to the operator.
	DeliveryTimeout = 10 * time.Second

	defaultOperatorHeader = "X-Api-Key"
)

// deliveryPayload is the hail representation posted to the operator's
// endpoint. The customer phone number is withheld until the customer
// accepts.
type deliveryPayload struct {
	Data []deliveryHail `json:"data"`
}

type deliveryHail struct {
	ID               string           `json:"id"`
	Status           enums.HailStatus `json:"status"`
	TaxiID           string           `json:"taxi_id"`
	CustomerID       string           `json:"customer_id"`
	CustomerLat      float64          `json:"customer_lat"`
	CustomerLon      float64          `json:"customer_lon"`
	CustomerAddress  string           `json:"customer_address"`
	CreationDatetime time.Time        `json:"creation_datetime"`
}

// deliveryResponse is the operator's acknowledgement. Operators answer
// with their own view of the hail; only the courtesy phone number is
// read back.
type deliveryResponse struct {
	Data []struct {
		TaxiPhoneNumber string `json:"taxi_phone_number"`
	} `json:"data"`
}

// Deliver performs the single delivery attempt of a hail to its
// operator's endpoint. A stale hail, an unreachable endpoint, a non-2xx
// answer or a non-JSON body all terminate the hail with failure; only
// storage errors bubble up so the queue redelivers.
func (s *Service) Deliver(ctx context.Context, hailID string) error {
	hail, err := s.repo.FindByID(ctx, hailID)
	if err != nil {
		return fmt.Errorf("find hail: %w", err)
	}
	if hail == nil || hail.Status != enums.HailStatusReceived {
		return nil
	}
	ctx = s.logg.WithHailID(ctx, hail.ID)
	now := s.now()

	operator, err := s.users.FindByID(ctx, hail.OperateurID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.failDelivery(ctx, hail, "operator account is gone", nil, nil)
		}
		return fmt.Errorf("find operator: %w", err)
	}

	if now.Sub(hail.CreationDatetime) > DeliveryStaleness {
		return s.failDelivery(ctx, hail, "hail is stale", nil, nil)
	}
	if operator.HailEndpoint == nil || *operator.HailEndpoint == "" {
		return s.failDelivery(ctx, hail, "operator has no hail endpoint", nil, nil)
	}

	if err := s.transition(ctx, hail, enums.HailStatusSentToOperator, ActorSystem, "system", ""); err != nil {
		return err
	}

	payload := deliveryPayload{Data: []deliveryHail{{
		ID:               hail.ID,
		Status:           hail.Status,
		TaxiID:           hail.TaxiID,
		CustomerID:       hail.CustomerID,
		CustomerLat:      hail.CustomerLat,
		CustomerLon:      hail.CustomerLon,
		CustomerAddress:  hail.CustomerAddress,
		CreationDatetime: hail.CreationDatetime,
	}}}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode delivery payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, *operator.HailEndpoint, bytes.NewReader(body))
	if err != nil {
		return s.failDelivery(ctx, hail, "invalid operator endpoint", payload, nil)
	}
	req.Header.Set("Content-Type", "application/json")
	header := defaultOperatorHeader
	if operator.OperatorHeaderName != nil && *operator.OperatorHeaderName != "" {
		header = *operator.OperatorHeaderName
	}
	if operator.OperatorAPIKey != nil && *operator.OperatorAPIKey != "" {
		req.Header.Set(header, *operator.OperatorAPIKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		s.logg.Error(ctx, "post hail to operator", err)
		return s.failDelivery(ctx, hail, "operator endpoint unreachable", payload, nil)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return s.failDelivery(ctx, hail, "read operator response", payload, auditResponse(resp.StatusCode, nil))
	}

	audit := auditResponse(resp.StatusCode, raw)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return s.failDelivery(ctx, hail, fmt.Sprintf("operator answered %d", resp.StatusCode), payload, audit)
	}
	if !json.Valid(raw) {
		return s.failDelivery(ctx, hail, "operator answered non-JSON", payload, audit)
	}

	var ack deliveryResponse
	if err := json.Unmarshal(raw, &ack); err == nil && len(ack.Data) > 0 && ack.Data[0].TaxiPhoneNumber != "" {
		phone := ack.Data[0].TaxiPhoneNumber
		hail.TaxiPhoneNumber = &phone
	}

	if err := s.transition(ctx, hail, enums.HailStatusReceivedByOperator, ActorSystem, "system", ""); err != nil {
		return err
	}

	if err := s.geo.LogHail(ctx, hail.ID, geostore.HailLogEntry{
		Method:             "POST " + *operator.HailEndpoint,
		RequestPayload:     payload,
		RequestUser:        "system",
		HailInitialStatus:  string(enums.HailStatusSentToOperator),
		HailFinalStatus:    string(hail.Status),
		ResponsePayload:    audit.payload,
		ResponseStatusCode: audit.statusCode,
		At:                 s.now(),
	}); err != nil {
		s.logg.Error(ctx, "append delivery audit entry", err)
	}
	s.logg.Info(ctx, "hail delivered to operator")
	return nil
}

type responseAudit struct {
	statusCode *int
	payload    any
}

func auditResponse(code int, raw []byte) *responseAudit {
	audit := &responseAudit{statusCode: &code}
	if len(raw) == 0 {
		return audit
	}
	if json.Valid(raw) {
		audit.payload = json.RawMessage(raw)
	} else {
		audit.payload = string(raw)
	}
	return audit
}

// failDelivery terminates the hail with failure and records the attempt
// in the audit trail.
func (s *Service) failDelivery(ctx context.Context, hail *models.Hail, reason string, request any, response *responseAudit) error {
	initial := hail.Status
	if err := s.transition(ctx, hail, enums.HailStatusFailure, ActorSystem, "system", reason); err != nil {
		return err
	}
	entry := geostore.HailLogEntry{
		Method:            "POST delivery",
		RequestPayload:    request,
		RequestUser:       "system",
		HailInitialStatus: string(initial),
		HailFinalStatus:   string(hail.Status),
		At:                s.now(),
	}
	if response != nil {
		entry.ResponsePayload = response.payload
		entry.ResponseStatusCode = response.statusCode
	}
	if err := s.geo.LogHail(ctx, hail.ID, entry); err != nil {
		s.logg.Error(ctx, "append delivery audit entry", err)
	}
	s.logg.Warn(s.logg.WithField(ctx, "reason", reason), "hail delivery failed")
	return nil
}
