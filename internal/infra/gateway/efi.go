package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"nutrifit-payments/internal/domain"
	"nutrifit-payments/internal/domain/model"
)

const efiProdURL = "https://api.efipay.com.br"

// Efi adapter. PIX goes through the cob endpoints and identifies charges by
// txid; boleto and card go through the one-step charge API and identify
// charges by a numeric id. External ids are therefore disambiguated by shape:
// all-digits means a charge id, anything else a txid.
type Efi struct {
	baseURL string
	client  *http.Client

	mu     sync.Mutex
	tokens map[string]efiToken // keyed by client id
}

type efiToken struct {
	value     string
	expiresAt time.Time
}

func NewEfi(baseURL string, timeout time.Duration) *Efi {
	if baseURL == "" {
		baseURL = efiProdURL
	}
	return &Efi{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		tokens:  make(map[string]efiToken),
	}
}

func (g *Efi) Kind() model.GatewayKind { return model.GatewayEfi }

var efiStatus = map[string]model.PaymentStatus{
	// PIX cob lifecycle
	"ATIVA":                           model.PaymentStatusPending,
	"CONCLUIDA":                       model.PaymentStatusApproved,
	"REMOVIDA_PELO_USUARIO_RECEBEDOR": model.PaymentStatusRejected,
	"REMOVIDA_PELO_PSP":               model.PaymentStatusRejected,
	"DEVOLVIDA":                       model.PaymentStatusRefunded,
	// charge (boleto / card) lifecycle
	"new":       model.PaymentStatusPending,
	"waiting":   model.PaymentStatusPending,
	"paid":      model.PaymentStatusApproved,
	"settled":   model.PaymentStatusApproved,
	"unpaid":    model.PaymentStatusRejected,
	"canceled":  model.PaymentStatusRejected,
	"expired":   model.PaymentStatusExpired,
	"refunded":  model.PaymentStatusRefunded,
	"contested": model.PaymentStatusRefunded,
}

func mapEfiStatus(s string) (model.PaymentStatus, bool) {
	st, ok := efiStatus[s]
	return st, ok
}

type efiOAuthResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// accessToken returns a cached OAuth token for the credential pair, renewing
// it via the client-credentials grant when missing or near expiry.
func (g *Efi) accessToken(ctx context.Context, creds model.GatewayCredentials) (string, error) {
	g.mu.Lock()
	cached, ok := g.tokens[creds.ClientID]
	g.mu.Unlock()
	if ok && time.Now().Before(cached.expiresAt) {
		return cached.value, nil
	}

	basic := base64.StdEncoding.EncodeToString([]byte(creds.ClientID + ":" + creds.ClientSecret))
	headers := map[string]string{"Authorization": "Basic " + basic}
	body := map[string]string{"grant_type": "client_credentials"}
	var resp efiOAuthResponse
	if err := doJSON(ctx, g.client, http.MethodPost, g.baseURL+"/oauth/token", headers, body, &resp); err != nil {
		return "", err
	}

	g.mu.Lock()
	g.tokens[creds.ClientID] = efiToken{
		value:     resp.AccessToken,
		expiresAt: time.Now().Add(time.Duration(resp.ExpiresIn-60) * time.Second),
	}
	g.mu.Unlock()
	return resp.AccessToken, nil
}

func (g *Efi) authHeaders(ctx context.Context, creds model.GatewayCredentials) (map[string]string, error) {
	token, err := g.accessToken(ctx, creds)
	if err != nil {
		return nil, err
	}
	return map[string]string{"Authorization": "Bearer " + token}, nil
}

type efiCob struct {
	TxID   string `json:"txid"`
	Status string `json:"status"`
	Loc    struct {
		ID int64 `json:"id"`
	} `json:"loc"`
}

type efiQRCode struct {
	QRCode       string `json:"qrcode"`
	ImagemQRCode string `json:"imagemQrcode"`
}

type efiCardToken struct {
	PaymentToken string `json:"payment_token"`
}

type efiCharge struct {
	Data struct {
		ChargeID int64  `json:"charge_id"`
		Status   string `json:"status"`
		Barcode  string `json:"barcode"`
		Link     string `json:"link"`
		Pdf      struct {
			Charge string `json:"charge"`
		} `json:"pdf"`
	} `json:"data"`
}

func (g *Efi) CreateCharge(ctx context.Context, creds model.GatewayCredentials, req model.ChargeRequest) (*model.ChargeResult, error) {
	headers, err := g.authHeaders(ctx, creds)
	if err != nil {
		return nil, domain.NewGatewayError("efi", "oauth token failed", err)
	}
	now := time.Now()

	if req.Method == model.MethodPix {
		body := map[string]interface{}{
			"calendario": map[string]interface{}{
				"expiracao": int(pixExpiry.Seconds()),
			},
			"devedor": map[string]string{
				"cpf":  req.Customer.CPF,
				"nome": req.Customer.Name,
			},
			"valor": map[string]string{
				"original": centsToAmount(req.AmountCents),
			},
			"chave":              creds.PixKey,
			"solicitacaoPagador": req.PlanName,
		}
		var cob efiCob
		if err := doJSON(ctx, g.client, http.MethodPost, g.baseURL+"/v2/cob", headers, body, &cob); err != nil {
			return nil, domain.NewGatewayError("efi", "pix charge creation failed", err)
		}
		var qr efiQRCode
		locID := strconv.FormatInt(cob.Loc.ID, 10)
		if err := doJSON(ctx, g.client, http.MethodGet, g.baseURL+"/v2/loc/"+locID+"/qrcode", headers, nil, &qr); err != nil {
			return nil, domain.NewGatewayError("efi", "pix qr code fetch failed", err)
		}
		status, ok := mapEfiStatus(cob.Status)
		if !ok {
			status = model.PaymentStatusPending
		}
		return &model.ChargeResult{
			ExternalID: cob.TxID,
			Status:     status,
			Pix: &model.PixCharge{
				QRCode:       qr.QRCode,
				QRCodeBase64: qr.ImagemQRCode,
				ExpiresAt:    now.Add(pixExpiry),
			},
		}, nil
	}

	item := map[string]interface{}{
		"name":   req.PlanName,
		"value":  req.AmountCents,
		"amount": 1,
	}
	body := map[string]interface{}{
		"items": []map[string]interface{}{item},
		"metadata": map[string]string{
			"custom_id": req.PaymentID,
		},
	}
	customer := map[string]interface{}{
		"name":  req.Customer.Name,
		"email": req.Customer.Email,
		"cpf":   req.Customer.CPF,
	}

	switch req.Method {
	case model.MethodBoleto:
		body["payment"] = map[string]interface{}{
			"banking_billet": map[string]interface{}{
				"expire_at": boletoDueDate(now).Format("2006-01-02"),
				"customer":  customer,
			},
		}
	case model.MethodCreditCard:
		if req.Card == nil {
			return nil, domain.NewGatewayError("efi", "card data missing", nil)
		}
		tokenBody := map[string]interface{}{
			"card_number":      req.Card.Number,
			"card_holder_name": req.Card.HolderName,
			"expiration_month": req.Card.ExpMonth,
			"expiration_year":  req.Card.ExpYear,
			"cvv":              req.Card.CVV,
		}
		var cardTok efiCardToken
		if err := doJSON(ctx, g.client, http.MethodPost, g.baseURL+"/v1/card/token", headers, tokenBody, &cardTok); err != nil {
			return nil, domain.NewGatewayError("efi", "card tokenization failed", err)
		}
		installments := req.Card.Installments
		if installments <= 0 {
			installments = 1
		}
		body["payment"] = map[string]interface{}{
			"credit_card": map[string]interface{}{
				"installments":  installments,
				"payment_token": cardTok.PaymentToken,
				"customer":      customer,
			},
		}
	}

	var charge efiCharge
	if err := doJSON(ctx, g.client, http.MethodPost, g.baseURL+"/v1/charge/one-step", headers, body, &charge); err != nil {
		return nil, domain.NewGatewayError("efi", "charge creation failed", err)
	}
	status, ok := mapEfiStatus(charge.Data.Status)
	if !ok {
		status = model.PaymentStatusPending
	}

	res := &model.ChargeResult{
		ExternalID: strconv.FormatInt(charge.Data.ChargeID, 10),
		Status:     status,
	}
	switch req.Method {
	case model.MethodBoleto:
		url := charge.Data.Pdf.Charge
		if url == "" {
			url = charge.Data.Link
		}
		res.Boleto = &model.BoletoCharge{
			URL:     url,
			Barcode: charge.Data.Barcode,
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

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (g *Efi) ChargeStatus(ctx context.Context, creds model.GatewayCredentials, externalID string) (model.PaymentStatus, error) {
	headers, err := g.authHeaders(ctx, creds)
	if err != nil {
		return "", domain.NewGatewayError("efi", "oauth token failed", err)
	}

	var raw string
	if isAllDigits(externalID) {
		var charge efiCharge
		if err := doJSON(ctx, g.client, http.MethodGet, g.baseURL+"/v1/charge/"+externalID, headers, nil, &charge); err != nil {
			return "", domain.NewGatewayError("efi", "status lookup failed", err)
		}
		raw = charge.Data.Status
	} else {
		var cob efiCob
		if err := doJSON(ctx, g.client, http.MethodGet, g.baseURL+"/v2/cob/"+externalID, headers, nil, &cob); err != nil {
			return "", domain.NewGatewayError("efi", "status lookup failed", err)
		}
		raw = cob.Status
	}

	status, ok := mapEfiStatus(raw)
	if !ok {
		return "", domain.NewGatewayError("efi", "unrecognized status "+raw, nil)
	}
	return status, nil
}

type efiWebhook struct {
	Pix []struct {
		TxID       string `json:"txid"`
		Devolucoes []struct {
			Status string `json:"status"`
		} `json:"devolucoes"`
	} `json:"pix"`
	Charge struct {
		ID     int64  `json:"charge_id"`
		Status string `json:"status"`
	} `json:"charge"`
}

func (g *Efi) ParseWebhook(body []byte) (*model.WebhookEvent, error) {
	var wh efiWebhook
	if err := json.Unmarshal(body, &wh); err != nil {
		return nil, &domain.ReconciliationError{Gateway: "efi", Reason: "malformed body"}
	}
	if len(wh.Pix) > 0 {
		entry := wh.Pix[0]
		// A pix entry means money moved: settlement, or a refund when the
		// entry carries devolucoes.
		status := model.PaymentStatusApproved
		if len(entry.Devolucoes) > 0 {
			status = model.PaymentStatusRefunded
		}
		return &model.WebhookEvent{
			Gateway:    model.GatewayEfi,
			ExternalID: entry.TxID,
			Status:     status,
		}, nil
	}
	if wh.Charge.ID != 0 {
		evt := &model.WebhookEvent{
			Gateway:    model.GatewayEfi,
			ExternalID: strconv.FormatInt(wh.Charge.ID, 10),
		}
		if st, ok := mapEfiStatus(wh.Charge.Status); ok {
			evt.Status = st
		}
		return evt, nil
	}
	return nil, &domain.ReconciliationError{Gateway: "efi", Reason: "unrecognized event shape"}
}
