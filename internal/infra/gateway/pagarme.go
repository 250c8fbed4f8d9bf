package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"nutrifit-payments/internal/domain"
	"nutrifit-payments/internal/domain/model"
)

const pagarmeProdURL = "https://api.pagar.me/core/v5"

// Pagarme adapter (orders API). Server-side charges authenticate with the
// secret key over Basic auth; card data goes inline on the order, so no
// separate tokenization call is needed.
type Pagarme struct {
	baseURL string
	client  *http.Client
}

func NewPagarme(baseURL string, timeout time.Duration) *Pagarme {
	if baseURL == "" {
		baseURL = pagarmeProdURL
	}
	return &Pagarme{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (g *Pagarme) Kind() model.GatewayKind { return model.GatewayPagarme }

var pagarmeStatus = map[string]model.PaymentStatus{
	"pending":         model.PaymentStatusPending,
	"processing":      model.PaymentStatusPending,
	"waiting_payment": model.PaymentStatusPending,
	"paid":            model.PaymentStatusApproved,
	"failed":          model.PaymentStatusRejected,
	"refused":         model.PaymentStatusRejected,
	"canceled":        model.PaymentStatusRejected,
	"expired":         model.PaymentStatusExpired,
	"refunded":        model.PaymentStatusRefunded,
}

func mapPagarmeStatus(s string) (model.PaymentStatus, bool) {
	st, ok := pagarmeStatus[s]
	return st, ok
}

func (g *Pagarme) headers(creds model.GatewayCredentials) map[string]string {
	basic := base64.StdEncoding.EncodeToString([]byte(creds.SecretKey + ":"))
	return map[string]string{"Authorization": "Basic " + basic}
}

type pagarmeOrder struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Charges []struct {
		ID              string `json:"id"`
		Status          string `json:"status"`
		LastTransaction struct {
			QRCode       string    `json:"qr_code"`
			QRCodeURL    string    `json:"qr_code_url"`
			ExpiresAt    time.Time `json:"expires_at"`
			URL          string    `json:"url"`
			Line         string    `json:"line"`
			LastFour     string    `json:"last_four_digits"`
			Brand        string    `json:"brand"`
			Installments int       `json:"installments"`
		} `json:"last_transaction"`
	} `json:"charges"`
}

func (g *Pagarme) CreateCharge(ctx context.Context, creds model.GatewayCredentials, req model.ChargeRequest) (*model.ChargeResult, error) {
	now := time.Now()
	payment := map[string]interface{}{}
	switch req.Method {
	case model.MethodPix:
		payment["payment_method"] = "pix"
		payment["pix"] = map[string]interface{}{
			"expires_in": int(pixExpiry.Seconds()),
		}
	case model.MethodBoleto:
		payment["payment_method"] = "boleto"
		payment["boleto"] = map[string]interface{}{
			"due_at": boletoDueDate(now).Format(time.RFC3339),
		}
	case model.MethodCreditCard:
		if req.Card == nil {
			return nil, domain.NewGatewayError("pagarme", "card data missing", nil)
		}
		installments := req.Card.Installments
		if installments <= 0 {
			installments = 1
		}
		payment["payment_method"] = "credit_card"
		payment["credit_card"] = map[string]interface{}{
			"installments": installments,
			"card": map[string]interface{}{
				"number":      req.Card.Number,
				"holder_name": req.Card.HolderName,
				"exp_month":   req.Card.ExpMonth,
				"exp_year":    req.Card.ExpYear,
				"cvv":         req.Card.CVV,
			},
		}
	}

	body := map[string]interface{}{
		"code": req.PaymentID,
		"customer": map[string]interface{}{
			"name":     req.Customer.Name,
			"email":    req.Customer.Email,
			"document": req.Customer.CPF,
			"type":     "individual",
		},
		"items": []map[string]interface{}{
			{
				"amount":      req.AmountCents,
				"description": req.PlanName,
				"quantity":    1,
			},
		},
		"payments": []map[string]interface{}{payment},
	}

	var order pagarmeOrder
	if err := doJSON(ctx, g.client, http.MethodPost, g.baseURL+"/orders", g.headers(creds), body, &order); err != nil {
		return nil, domain.NewGatewayError("pagarme", "order creation failed", err)
	}
	if len(order.Charges) == 0 {
		return nil, domain.NewGatewayError("pagarme", "order returned no charges", nil)
	}
	status, ok := mapPagarmeStatus(order.Status)
	if !ok {
		status = model.PaymentStatusPending
	}

	tx := order.Charges[0].LastTransaction
	res := &model.ChargeResult{ExternalID: order.ID, Status: status}
	switch req.Method {
	case model.MethodPix:
		expires := tx.ExpiresAt
		if expires.IsZero() {
			expires = now.Add(pixExpiry)
		}
		res.Pix = &model.PixCharge{
			QRCode:       tx.QRCode,
			QRCodeBase64: tx.QRCodeURL,
			ExpiresAt:    expires,
		}
	case model.MethodBoleto:
		res.Boleto = &model.BoletoCharge{
			URL:     tx.URL,
			Barcode: tx.Line,
			DueDate: boletoDueDate(now),
		}
	case model.MethodCreditCard:
		last4 := tx.LastFour
		if last4 == "" {
			last4 = req.Card.Last4()
		}
		brand := tx.Brand
		if brand == "" {
			brand = req.Card.Brand()
		}
		res.Card = &model.CardCharge{
			Last4:        last4,
			Brand:        brand,
			Installments: req.Card.Installments,
		}
	}
	return res, nil
}

func (g *Pagarme) ChargeStatus(ctx context.Context, creds model.GatewayCredentials, externalID string) (model.PaymentStatus, error) {
	var order pagarmeOrder
	if err := doJSON(ctx, g.client, http.MethodGet, g.baseURL+"/orders/"+externalID, g.headers(creds), nil, &order); err != nil {
		return "", domain.NewGatewayError("pagarme", "status lookup failed", err)
	}
	status, ok := mapPagarmeStatus(order.Status)
	if !ok {
		return "", domain.NewGatewayError("pagarme", "unrecognized status "+order.Status, nil)
	}
	return status, nil
}

type pagarmeWebhook struct {
	Type string `json:"type"` // e.g. order.paid, order.payment_failed
	Data struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"data"`
}

func (g *Pagarme) ParseWebhook(body []byte) (*model.WebhookEvent, error) {
	var wh pagarmeWebhook
	if err := json.Unmarshal(body, &wh); err != nil {
		return nil, &domain.ReconciliationError{Gateway: "pagarme", Reason: "malformed body"}
	}
	if wh.Data.ID == "" {
		return nil, &domain.ReconciliationError{Gateway: "pagarme", Reason: "missing order id"}
	}
	evt := &model.WebhookEvent{Gateway: model.GatewayPagarme, ExternalID: wh.Data.ID}
	if st, ok := mapPagarmeStatus(wh.Data.Status); ok {
		evt.Status = st
	}
	return evt, nil
}
