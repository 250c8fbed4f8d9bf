package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"nutrifit-payments/internal/domain"
	"nutrifit-payments/internal/domain/model"
)

const asaasProdURL = "https://api.asaas.com/v3"

// Asaas adapter. Charges are created against an Asaas customer, which is
// found-or-created by email before the charge call.
type Asaas struct {
	baseURL string
	client  *http.Client
}

func NewAsaas(baseURL string, timeout time.Duration) *Asaas {
	if baseURL == "" {
		baseURL = asaasProdURL
	}
	return &Asaas{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (g *Asaas) Kind() model.GatewayKind { return model.GatewayAsaas }

var asaasStatus = map[string]model.PaymentStatus{
	"PENDING":                model.PaymentStatusPending,
	"AWAITING_RISK_ANALYSIS": model.PaymentStatusPending,
	"CONFIRMED":              model.PaymentStatusApproved,
	"RECEIVED":               model.PaymentStatusApproved,
	"RECEIVED_IN_CASH":       model.PaymentStatusApproved,
	"OVERDUE":                model.PaymentStatusExpired,
	"REFUNDED":               model.PaymentStatusRefunded,
	"CHARGEBACK_REQUESTED":   model.PaymentStatusRefunded,
	"CANCELED":               model.PaymentStatusRejected,
	"DECLINED":               model.PaymentStatusRejected,
}

func mapAsaasStatus(s string) (model.PaymentStatus, bool) {
	st, ok := asaasStatus[s]
	return st, ok
}

type asaasCustomerList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

type asaasCustomer struct {
	ID string `json:"id"`
}

type asaasPayment struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	BankSlipURL string `json:"bankSlipUrl"`
	InvoiceURL  string `json:"invoiceUrl"`
}

type asaasPixQRCode struct {
	EncodedImage string `json:"encodedImage"`
	Payload      string `json:"payload"`
}

type asaasLine struct {
	IdentificationField string `json:"identificationField"`
}

func (g *Asaas) headers(creds model.GatewayCredentials) map[string]string {
	return map[string]string{"access_token": creds.APIKey}
}

// ensureCustomer finds an Asaas customer by email or creates one. The lookup
// first makes retried checkouts reuse the same provider-side record.
func (g *Asaas) ensureCustomer(ctx context.Context, creds model.GatewayCredentials, c model.Customer) (string, error) {
	var list asaasCustomerList
	u := g.baseURL + "/customers?email=" + url.QueryEscape(c.Email)
	if err := doJSON(ctx, g.client, http.MethodGet, u, g.headers(creds), nil, &list); err != nil {
		return "", err
	}
	if len(list.Data) > 0 {
		return list.Data[0].ID, nil
	}

	body := map[string]string{
		"name":        c.Name,
		"email":       c.Email,
		"cpfCnpj":     c.CPF,
		"mobilePhone": c.Phone,
	}
	var created asaasCustomer
	if err := doJSON(ctx, g.client, http.MethodPost, g.baseURL+"/customers", g.headers(creds), body, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

func (g *Asaas) CreateCharge(ctx context.Context, creds model.GatewayCredentials, req model.ChargeRequest) (*model.ChargeResult, error) {
	customerID, err := g.ensureCustomer(ctx, creds, req.Customer)
	if err != nil {
		return nil, domain.NewGatewayError("asaas", "customer lookup failed", err)
	}

	now := time.Now()
	body := map[string]interface{}{
		"customer":          customerID,
		"value":             centsToFloat(req.AmountCents),
		"description":       req.PlanName,
		"externalReference": req.PaymentID,
	}
	switch req.Method {
	case model.MethodPix:
		body["billingType"] = "PIX"
		body["dueDate"] = now.Format("2006-01-02")
	case model.MethodBoleto:
		body["billingType"] = "BOLETO"
		body["dueDate"] = boletoDueDate(now).Format("2006-01-02")
	case model.MethodCreditCard:
		if req.Card == nil {
			return nil, domain.NewGatewayError("asaas", "card data missing", nil)
		}
		body["billingType"] = "CREDIT_CARD"
		body["dueDate"] = now.Format("2006-01-02")
		body["creditCard"] = map[string]string{
			"holderName":  req.Card.HolderName,
			"number":      req.Card.Number,
			"expiryMonth": fmt.Sprintf("%02d", req.Card.ExpMonth),
			"expiryYear":  fmt.Sprintf("%d", req.Card.ExpYear),
			"ccv":         req.Card.CVV,
		}
		body["creditCardHolderInfo"] = map[string]string{
			"name":        req.Customer.Name,
			"email":       req.Customer.Email,
			"cpfCnpj":     req.Customer.CPF,
			"mobilePhone": req.Customer.Phone,
		}
		if req.Card.Installments > 1 {
			body["installmentCount"] = req.Card.Installments
		}
	}

	var pay asaasPayment
	if err := doJSON(ctx, g.client, http.MethodPost, g.baseURL+"/payments", g.headers(creds), body, &pay); err != nil {
		return nil, domain.NewGatewayError("asaas", "charge creation failed", err)
	}
	status, ok := mapAsaasStatus(pay.Status)
	if !ok {
		status = model.PaymentStatusPending
	}

	res := &model.ChargeResult{ExternalID: pay.ID, Status: status}
	switch req.Method {
	case model.MethodPix:
		var qr asaasPixQRCode
		if err := doJSON(ctx, g.client, http.MethodGet, g.baseURL+"/payments/"+pay.ID+"/pixQrCode", g.headers(creds), nil, &qr); err != nil {
			return nil, domain.NewGatewayError("asaas", "pix qr code fetch failed", err)
		}
		res.Pix = &model.PixCharge{
			QRCode:       qr.Payload,
			QRCodeBase64: qr.EncodedImage,
			ExpiresAt:    now.Add(pixExpiry),
		}
	case model.MethodBoleto:
		var line asaasLine
		if err := doJSON(ctx, g.client, http.MethodGet, g.baseURL+"/payments/"+pay.ID+"/identificationField", g.headers(creds), nil, &line); err != nil {
			return nil, domain.NewGatewayError("asaas", "boleto line fetch failed", err)
		}
		res.Boleto = &model.BoletoCharge{
			URL:     pay.BankSlipURL,
			Barcode: line.IdentificationField,
			DueDate: boletoDueDate(now),
		}
	case model.MethodCreditCard:
		res.Card = &model.CardCharge{
			Last4:        req.Card.Last4(),
			Brand:        req.Card.Brand(),
			Installments: req.Card.Installments,
		}
	}
	return res, nil
}

func (g *Asaas) ChargeStatus(ctx context.Context, creds model.GatewayCredentials, externalID string) (model.PaymentStatus, error) {
	var pay asaasPayment
	if err := doJSON(ctx, g.client, http.MethodGet, g.baseURL+"/payments/"+externalID, g.headers(creds), nil, &pay); err != nil {
		return "", domain.NewGatewayError("asaas", "status lookup failed", err)
	}
	status, ok := mapAsaasStatus(pay.Status)
	if !ok {
		return "", domain.NewGatewayError("asaas", "unrecognized status "+pay.Status, nil)
	}
	return status, nil
}

type asaasWebhook struct {
	Event   string `json:"event"`
	Payment struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"payment"`
}

func (g *Asaas) ParseWebhook(body []byte) (*model.WebhookEvent, error) {
	var wh asaasWebhook
	if err := json.Unmarshal(body, &wh); err != nil {
		return nil, &domain.ReconciliationError{Gateway: "asaas", Reason: "malformed body"}
	}
	if wh.Payment.ID == "" {
		return nil, &domain.ReconciliationError{Gateway: "asaas", Reason: "missing payment id"}
	}
	evt := &model.WebhookEvent{Gateway: model.GatewayAsaas, ExternalID: wh.Payment.ID}
	if st, ok := mapAsaasStatus(wh.Payment.Status); ok {
		evt.Status = st
	}
	return evt, nil
}
