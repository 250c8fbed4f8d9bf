package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"nutrifit-payments/internal/domain"
	"nutrifit-payments/internal/domain/model"
)

func mpTestCreds() model.GatewayCredentials {
	return model.GatewayCredentials{
		AccessToken: "mp-access-token",
		PublicKey:   "mp-public-key",
	}
}

func TestMercadoPagoCreateCharge_Pix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments" {
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer mp-access-token" {
			t.Errorf("Authorization = %q", got)
		}
		if r.Header.Get("X-Idempotency-Key") == "" {
			t.Error("missing X-Idempotency-Key header")
		}
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		if body["payment_method_id"] != "pix" {
			t.Errorf("payment_method_id = %v", body["payment_method_id"])
		}
		if body["transaction_amount"] != 99.90 {
			t.Errorf("transaction_amount = %v", body["transaction_amount"])
		}
		if body["external_reference"] != "pay-internal-1" {
			t.Errorf("external_reference = %v", body["external_reference"])
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     123456789,
			"status": "pending",
			"point_of_interaction": map[string]interface{}{
				"transaction_data": map[string]string{
					"qr_code":        "00020126mpcopypaste",
					"qr_code_base64": "mpbase64==",
				},
			},
		})
	}))
	defer srv.Close()

	gw := NewMercadoPago(srv.URL, time.Second)
	res, err := gw.CreateCharge(context.Background(), mpTestCreds(), asaasChargeRequest(model.MethodPix))
	if err != nil {
		t.Fatalf("CreateCharge: %v", err)
	}
	if res.ExternalID != "123456789" {
		t.Errorf("external id = %q", res.ExternalID)
	}
	if res.Status != model.PaymentStatusPending {
		t.Errorf("status = %s", res.Status)
	}
	if res.Pix == nil || res.Pix.QRCode != "00020126mpcopypaste" {
		t.Errorf("pix data = %+v", res.Pix)
	}
}

func TestMercadoPagoCreateCharge_CardTokenizesFirst(t *testing.T) {
	var tokenized bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/card_tokens":
			tokenized = true
			if got := r.URL.Query().Get("public_key"); got != "mp-public-key" {
				t.Errorf("public_key = %q", got)
			}
			var body map[string]interface{}
			json.NewDecoder(r.Body).Decode(&body)
			if body["card_number"] != "5555555555554444" {
				t.Errorf("card_number = %v", body["card_number"])
			}
			json.NewEncoder(w).Encode(map[string]string{"id": "tok_abc"})
		case "/v1/payments":
			var body map[string]interface{}
			json.NewDecoder(r.Body).Decode(&body)
			if body["token"] != "tok_abc" {
				t.Errorf("token = %v", body["token"])
			}
			if _, raw := body["card_number"]; raw {
				t.Error("raw card number must not reach the payment call")
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"id":     987,
				"status": "approved",
				"card":   map[string]string{"last_four_digits": "4444"},
			})
		default:
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	req := asaasChargeRequest(model.MethodCreditCard)
	req.Card = &model.CardData{
		Number:       "5555555555554444",
		HolderName:   "MARIA SILVA",
		ExpMonth:     11,
		ExpYear:      2029,
		CVV:          "321",
		Installments: 3,
	}

	gw := NewMercadoPago(srv.URL, time.Second)
	res, err := gw.CreateCharge(context.Background(), mpTestCreds(), req)
	if err != nil {
		t.Fatalf("CreateCharge: %v", err)
	}
	if !tokenized {
		t.Error("card was not tokenized before the charge")
	}
	if res.Status != model.PaymentStatusApproved {
		t.Errorf("status = %s, want approved", res.Status)
	}
	if res.Card == nil || res.Card.Last4 != "4444" || res.Card.Installments != 3 {
		t.Errorf("card charge = %+v", res.Card)
	}
}

func TestMercadoPagoCreateCharge_TokenizationFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/card_tokens" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"message":"invalid card"}`))
			return
		}
		t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
	}))
	defer srv.Close()

	req := asaasChargeRequest(model.MethodCreditCard)
	req.Card = &model.CardData{Number: "4111111111111111", HolderName: "X", ExpMonth: 1, ExpYear: 2030, CVV: "000"}

	gw := NewMercadoPago(srv.URL, time.Second)
	_, err := gw.CreateCharge(context.Background(), mpTestCreds(), req)
	var gwErr *domain.GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
}

func TestMercadoPagoChargeStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments/123456789" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"id": 123456789, "status": "charged_back"})
	}))
	defer srv.Close()

	gw := NewMercadoPago(srv.URL, time.Second)
	st, err := gw.ChargeStatus(context.Background(), mpTestCreds(), "123456789")
	if err != nil {
		t.Fatalf("ChargeStatus: %v", err)
	}
	if st != model.PaymentStatusRefunded {
		t.Errorf("status = %s, want refunded", st)
	}
}

func TestMercadoPagoParseWebhook(t *testing.T) {
	gw := NewMercadoPago("http://unused.test", time.Second)

	t.Run("payment notification carries no status", func(t *testing.T) {
		evt, err := gw.ParseWebhook([]byte(`{"type":"payment","data":{"id":123456789}}`))
		if err != nil {
			t.Fatalf("ParseWebhook: %v", err)
		}
		if evt.ExternalID != "123456789" {
			t.Errorf("external id = %q", evt.ExternalID)
		}
		if evt.Status != "" {
			t.Errorf("status = %q, notification events must leave it empty", evt.Status)
		}
	})

	t.Run("string id accepted", func(t *testing.T) {
		evt, err := gw.ParseWebhook([]byte(`{"type":"payment","data":{"id":"123456789"}}`))
		if err != nil {
			t.Fatalf("ParseWebhook: %v", err)
		}
		if evt.ExternalID != "123456789" {
			t.Errorf("external id = %q", evt.ExternalID)
		}
	})

	t.Run("non-payment event", func(t *testing.T) {
		_, err := gw.ParseWebhook([]byte(`{"type":"plan","data":{"id":"1"}}`))
		var rerr *domain.ReconciliationError
		if !errors.As(err, &rerr) {
			t.Fatalf("expected ReconciliationError, got %v", err)
		}
	})
}
