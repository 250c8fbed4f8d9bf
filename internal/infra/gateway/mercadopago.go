package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"nutrifit-payments/internal/domain"
	"nutrifit-payments/internal/domain/model"
)

const mercadoPagoProdURL = "https://api.mercadopago.com"

// MercadoPago adapter. Card charges require a tokenization round-trip against
// the public key before the charge call; the adapter performs it transparently
// so raw card data never travels further than here.
type MercadoPago struct {
	baseURL string
	client  *http.Client
}

func NewMercadoPago(baseURL string, timeout time.Duration) *MercadoPago {
	if baseURL == "" {
		baseURL = mercadoPagoProdURL
	}
	return &MercadoPago{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (g *MercadoPago) Kind() model.GatewayKind { return model.GatewayMercadoPago }

var mercadoPagoStatus = map[string]model.PaymentStatus{
	"pending":      model.PaymentStatusPending,
	"in_process":   model.PaymentStatusPending,
	"in_mediation": model.PaymentStatusPending,
	"authorized":   model.PaymentStatusPending,
	"approved":     model.PaymentStatusApproved,
	"rejected":     model.PaymentStatusRejected,
	"cancelled":    model.PaymentStatusRejected,
	"expired":      model.PaymentStatusExpired,
	"refunded":     model.PaymentStatusRefunded,
	"charged_back": model.PaymentStatusRefunded,
}

func mapMercadoPagoStatus(s string) (model.PaymentStatus, bool) {
	st, ok := mercadoPagoStatus[s]
	return st, ok
}

func (g *MercadoPago) headers(creds model.GatewayCredentials) map[string]string {
	return map[string]string{"Authorization": "Bearer " + creds.AccessToken}
}

type mpCardToken struct {
	ID string `json:"id"`
}

type mpPayment struct {
	ID                 int64  `json:"id"`
	Status             string `json:"status"`
	PointOfInteraction struct {
		TransactionData struct {
			QRCode       string `json:"qr_code"`
			QRCodeBase64 string `json:"qr_code_base64"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
	TransactionDetails struct {
		ExternalResourceURL string `json:"external_resource_url"`
	} `json:"transaction_details"`
	Barcode struct {
		Content string `json:"content"`
	} `json:"barcode"`
	Card struct {
		LastFourDigits string `json:"last_four_digits"`
	} `json:"card"`
}

// tokenizeCard exchanges raw card data for an opaque single-use token.
func (g *MercadoPago) tokenizeCard(ctx context.Context, creds model.GatewayCredentials, card *model.CardData) (string, error) {
	body := map[string]interface{}{
		"card_number":      card.Number,
		"expiration_month": card.ExpMonth,
		"expiration_year":  card.ExpYear,
		"security_code":    card.CVV,
		"cardholder":       map[string]string{"name": card.HolderName},
	}
	var tok mpCardToken
	u := g.baseURL + "/v1/card_tokens?public_key=" + creds.PublicKey
	if err := doJSON(ctx, g.client, http.MethodPost, u, nil, body, &tok); err != nil {
		return "", err
	}
	return tok.ID, nil
}

func (g *MercadoPago) CreateCharge(ctx context.Context, creds model.GatewayCredentials, req model.ChargeRequest) (*model.ChargeResult, error) {
	now := time.Now()
	body := map[string]interface{}{
		"transaction_amount": centsToFloat(req.AmountCents),
		"description":        req.PlanName,
		"external_reference": req.PaymentID,
		"payer": map[string]interface{}{
			"email":      req.Customer.Email,
			"first_name": req.Customer.Name,
			"identification": map[string]string{
				"type":   "CPF",
				"number": req.Customer.CPF,
			},
		},
	}
	switch req.Method {
	case model.MethodPix:
		body["payment_method_id"] = "pix"
		body["date_of_expiration"] = now.Add(pixExpiry).Format("2006-01-02T15:04:05.000-07:00")
	case model.MethodBoleto:
		body["payment_method_id"] = "bolbradesco"
		body["date_of_expiration"] = boletoDueDate(now).Format("2006-01-02T15:04:05.000-07:00")
	case model.MethodCreditCard:
		if req.Card == nil {
			return nil, domain.NewGatewayError("mercadopago", "card data missing", nil)
		}
		token, err := g.tokenizeCard(ctx, creds, req.Card)
		if err != nil {
			return nil, domain.NewGatewayError("mercadopago", "card tokenization failed", err)
		}
		body["token"] = token
		body["installments"] = req.Card.Installments
		if req.Card.Installments <= 0 {
			body["installments"] = 1
		}
	}

	headers := g.headers(creds)
	headers["X-Idempotency-Key"] = uuid.NewString()
	var pay mpPayment
	if err := doJSON(ctx, g.client, http.MethodPost, g.baseURL+"/v1/payments", headers, body, &pay); err != nil {
		return nil, domain.NewGatewayError("mercadopago", "charge creation failed", err)
	}
	status, ok := mapMercadoPagoStatus(pay.Status)
	if !ok {
		status = model.PaymentStatusPending
	}

	res := &model.ChargeResult{
		ExternalID: strconv.FormatInt(pay.ID, 10),
		Status:     status,
	}
	switch req.Method {
	case model.MethodPix:
		res.Pix = &model.PixCharge{
			QRCode:       pay.PointOfInteraction.TransactionData.QRCode,
			QRCodeBase64: pay.PointOfInteraction.TransactionData.QRCodeBase64,
			ExpiresAt:    now.Add(pixExpiry),
		}
	case model.MethodBoleto:
		res.Boleto = &model.BoletoCharge{
			URL:     pay.TransactionDetails.ExternalResourceURL,
			Barcode: pay.Barcode.Content,
			DueDate: boletoDueDate(now),
		}
	case model.MethodCreditCard:
		last4 := pay.Card.LastFourDigits
		if last4 == "" {
			last4 = req.Card.Last4()
		}
		res.Card = &model.CardCharge{
			Last4:        last4,
			Brand:        req.Card.Brand(),
			Installments: req.Card.Installments,
		}
	}
	return res, nil
}

func (g *MercadoPago) ChargeStatus(ctx context.Context, creds model.GatewayCredentials, externalID string) (model.PaymentStatus, error) {
	var pay mpPayment
	if err := doJSON(ctx, g.client, http.MethodGet, g.baseURL+"/v1/payments/"+externalID, g.headers(creds), nil, &pay); err != nil {
		return "", domain.NewGatewayError("mercadopago", "status lookup failed", err)
	}
	status, ok := mapMercadoPagoStatus(pay.Status)
	if !ok {
		return "", domain.NewGatewayError("mercadopago", "unrecognized status "+pay.Status, nil)
	}
	return status, nil
}

// mpWebhook is a notification-only event: it names the payment but carries no
// status, so the reconciler follows up with a live lookup.
type mpWebhook struct {
	Type string `json:"type"`
	Data struct {
		ID json.Number `json:"id"`
	} `json:"data"`
}

func (g *MercadoPago) ParseWebhook(body []byte) (*model.WebhookEvent, error) {
	var wh mpWebhook
	if err := json.Unmarshal(body, &wh); err != nil {
		return nil, &domain.ReconciliationError{Gateway: "mercadopago", Reason: "malformed body"}
	}
	if wh.Type != "payment" || wh.Data.ID.String() == "" {
		return nil, &domain.ReconciliationError{Gateway: "mercadopago", Reason: "unrecognized event type " + wh.Type}
	}
	return &model.WebhookEvent{
		Gateway:    model.GatewayMercadoPago,
		ExternalID: wh.Data.ID.String(),
	}, nil
}
