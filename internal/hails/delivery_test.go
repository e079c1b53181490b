package hails

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openmaraude/apitaxi/pkg/enums"
)

func (f *hailFixture) pendingHail() string {
	hail := f.storedHail(enums.HailStatusReceived)
	hail.CreationDatetime = f.now.Add(-2 * time.Second)
	return hail.ID
}

func TestDeliverSuccess(t *testing.T) {
	f := newHailFixture()
	hailID := f.pendingHail()

	var gotHeader string
	var gotBody deliveryPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Op-Key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode delivery body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"taxi_phone_number":"+33711111111"}]}`))
	}))
	defer server.Close()

	endpoint := server.URL
	header := "X-Op-Key"
	key := "secret"
	f.operator.HailEndpoint = &endpoint
	f.operator.OperatorHeaderName = &header
	f.operator.OperatorAPIKey = &key
	svc := f.service(t)

	if err := svc.Deliver(context.Background(), hailID); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	hail := f.repo.hails[hailID]
	if hail.Status != enums.HailStatusReceivedByOperator {
		t.Fatalf("expected received_by_operator, got %s", hail.Status)
	}
	if gotHeader != "secret" {
		t.Fatalf("expected the operator api key header, got %q", gotHeader)
	}
	if len(gotBody.Data) != 1 || gotBody.Data[0].ID != hailID {
		t.Fatalf("expected the hail in the delivery body, got %+v", gotBody)
	}
	if hail.TaxiPhoneNumber == nil || *hail.TaxiPhoneNumber != "+33711111111" {
		t.Fatalf("expected the courtesy phone number, got %+v", hail.TaxiPhoneNumber)
	}
	// received -> sent_to_operator -> received_by_operator.
	if len(hail.TransitionLog) != 2 {
		t.Fatalf("expected two transitions, got %d", len(hail.TransitionLog))
	}
	// received_by_operator arms the 10s operator confirmation watchdog.
	found := false
	for _, task := range f.scheduler.tasks {
		if !task.runAt.Equal(f.now.Add(10 * time.Second)) {
			continue
		}
		check, ok := task.payload.(statusCheckTask)
		if ok && check.Target == enums.HailStatusFailure {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a failure watchdog at +10s, got %+v", f.scheduler.tasks)
	}
}

func TestDeliverStaleHailFails(t *testing.T) {
	f := newHailFixture()
	hail := f.storedHail(enums.HailStatusReceived)
	hail.CreationDatetime = f.now.Add(-11 * time.Second)
	svc := f.service(t)

	if err := svc.Deliver(context.Background(), hail.ID); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if hail.Status != enums.HailStatusFailure {
		t.Fatalf("expected failure, got %s", hail.Status)
	}
	if len(f.availability.calls) != 1 || f.availability.calls[0] != enums.VehicleStatusFree {
		t.Fatalf("expected the taxi freed, got %v", f.availability.calls)
	}
}

func TestDeliverNon2xxFails(t *testing.T) {
	f := newHailFixture()
	hailID := f.pendingHail()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	endpoint := server.URL
	f.operator.HailEndpoint = &endpoint
	svc := f.service(t)

	if err := svc.Deliver(context.Background(), hailID); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	hail := f.repo.hails[hailID]
	if hail.Status != enums.HailStatusFailure {
		t.Fatalf("expected failure, got %s", hail.Status)
	}
	last := f.geo.hailLog[len(f.geo.hailLog)-1]
	if last.ResponseStatusCode == nil || *last.ResponseStatusCode != http.StatusInternalServerError {
		t.Fatalf("expected the response code in the audit trail, got %+v", last)
	}
}

func TestDeliverNonJSONFails(t *testing.T) {
	f := newHailFixture()
	hailID := f.pendingHail()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>ok</html>"))
	}))
	defer server.Close()

	endpoint := server.URL
	f.operator.HailEndpoint = &endpoint
	svc := f.service(t)

	if err := svc.Deliver(context.Background(), hailID); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if f.repo.hails[hailID].Status != enums.HailStatusFailure {
		t.Fatalf("expected failure, got %s", f.repo.hails[hailID].Status)
	}
}

func TestDeliverWithoutEndpointFails(t *testing.T) {
	f := newHailFixture()
	hailID := f.pendingHail()
	svc := f.service(t)

	if err := svc.Deliver(context.Background(), hailID); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if f.repo.hails[hailID].Status != enums.HailStatusFailure {
		t.Fatalf("expected failure, got %s", f.repo.hails[hailID].Status)
	}
}

func TestDeliverSkipsMovedHail(t *testing.T) {
	f := newHailFixture()
	hail := f.storedHail(enums.HailStatusAcceptedByTaxi)
	svc := f.service(t)

	if err := svc.Deliver(context.Background(), hail.ID); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if hail.Status != enums.HailStatusAcceptedByTaxi {
		t.Fatalf("a redelivered message must not move the hail, got %s", hail.Status)
	}
}
