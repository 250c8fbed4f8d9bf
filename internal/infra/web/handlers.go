package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"nutrifit-payments/internal/domain"
	"nutrifit-payments/internal/domain/model"
	"nutrifit-payments/internal/infra/logging"
	"nutrifit-payments/internal/usecase"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// tokenHandler exchanges the configured admin API key for a short-lived JWT.
func (s *Server) tokenHandler() http.HandlerFunc {
	type request struct {
		APIKey  string `json:"api_key"`
		OwnerID string `json:"owner_id"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if s.adminAPIKey == "" {
			s.log.Error().Msg("admin API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.APIKey != s.adminAPIKey || req.OwnerID == "" {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		token, err := s.auth.Mint(w, req.OwnerID)
		if err != nil {
			http.Error(w, "Failed to mint token", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}

type cardRequest struct {
	Number       string `json:"number"`
	HolderName   string `json:"holder_name"`
	ExpMonth     int    `json:"exp_month"`
	ExpYear      int    `json:"exp_year"`
	CVV          string `json:"cvv"`
	Installments int    `json:"installments"`
}

type checkoutRequest struct {
	OwnerID  string `json:"owner_id"`
	PlanID   string `json:"plan_id"`
	Method   string `json:"method"`
	Customer struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
		CPF   string `json:"cpf"`
	} `json:"customer"`
	Card *cardRequest `json:"card"`
}

type paymentResponse struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	Method       string     `json:"method"`
	AmountCents  int64      `json:"amount_cents"`
	PixQRCode    string     `json:"pix_qr_code,omitempty"`
	PixQRCodeB64 string     `json:"pix_qr_code_base64,omitempty"`
	PixExpiresAt *time.Time `json:"pix_expires_at,omitempty"`
	BoletoURL    string     `json:"boleto_url,omitempty"`
	BoletoBar    string     `json:"boleto_barcode,omitempty"`
	BoletoDue    *time.Time `json:"boleto_due_date,omitempty"`
	CardLast4    string     `json:"card_last4,omitempty"`
	CardBrand    string     `json:"card_brand,omitempty"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`
}

func toPaymentResponse(p *model.Payment) paymentResponse {
	resp := paymentResponse{
		ID:          p.ID,
		Status:      string(p.Status),
		Method:      string(p.Method),
		AmountCents: p.AmountCents,
		PaidAt:      p.PaidAt,
	}
	if p.Pix != nil {
		resp.PixQRCode = p.Pix.QRCode
		resp.PixQRCodeB64 = p.Pix.QRCodeBase64
		exp := p.Pix.ExpiresAt
		resp.PixExpiresAt = &exp
	}
	if p.Boleto != nil {
		resp.BoletoURL = p.Boleto.URL
		resp.BoletoBar = p.Boleto.Barcode
		due := p.Boleto.DueDate
		resp.BoletoDue = &due
	}
	if p.Card != nil {
		resp.CardLast4 = p.Card.Last4
		resp.CardBrand = p.Card.Brand
	}
	return resp
}

func (s *Server) checkoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req checkoutRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		in := usecase.CheckoutInput{
			OwnerID: req.OwnerID,
			PlanID:  req.PlanID,
			Method:  model.PaymentMethod(req.Method),
			Customer: model.Customer{
				Name:  req.Customer.Name,
				Email: req.Customer.Email,
				Phone: req.Customer.Phone,
				CPF:   req.Customer.CPF,
			},
		}
		if req.Card != nil {
			in.Card = &model.CardData{
				Number:       req.Card.Number,
				HolderName:   req.Card.HolderName,
				ExpMonth:     req.Card.ExpMonth,
				ExpYear:      req.Card.ExpYear,
				CVV:          req.Card.CVV,
				Installments: req.Card.Installments,
			}
		}

		p, err := s.checkoutUC.Create(r.Context(), in)
		if err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
					"field": verr.Field, "error": verr.Reason,
				})
				return
			}
			var gerr *domain.GatewayError
			if errors.As(err, &gerr) {
				s.log.Warn().Err(err).Msg("charge creation failed at provider")
				writeJSON(w, http.StatusBadGateway, map[string]string{"error": "payment provider unavailable"})
				return
			}
			s.log.Error().Err(err).Msg("checkout failed")
			http.Error(w, "Failed to create payment", http.StatusInternalServerError)
			return
		}
		ctx := logging.WithPaymentID(r.Context(), p.ID)
		logging.With(ctx, s.log).Info().
			Str("method", string(p.Method)).
			Str("customer", logging.Redact(in.Customer.Email, false)).
			Msg("payment created")
		writeJSON(w, http.StatusCreated, toPaymentResponse(p))
	}
}

// paymentStatusHandler is the checkout page's polling endpoint. It refreshes
// from the gateway when the stored status can still change.
func (s *Server) paymentStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		p, err := s.reconcileUC.Poll(r.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				http.Error(w, "Not found", http.StatusNotFound)
				return
			}
			s.log.Error().Err(err).Str("payment_id", id).Msg("status poll failed")
			http.Error(w, "Failed to get status", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toPaymentResponse(p))
	}
}

// webhookHandler receives native provider notifications. Bodies we cannot
// interpret are logged and acknowledged with 200 so the provider stops
// retrying; only internal failures surface a 500 (which providers do retry).
func (s *Server) webhookHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := model.ParseGatewayKind(chi.URLParam(r, "gateway"))
		if !ok {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}

		ctx := logging.WithTraceID(r.Context(), middleware.GetReqID(r.Context()))
		if err := s.reconcileUC.HandleWebhook(ctx, kind, body); err != nil {
			var rerr *domain.ReconciliationError
			if errors.As(err, &rerr) {
				logging.With(ctx, s.log).Warn().Str("gateway", string(kind)).Str("reason", rerr.Reason).
					Msg("unparseable webhook acknowledged")
				w.WriteHeader(http.StatusOK)
				return
			}
			logging.With(ctx, s.log).Error().Err(err).Str("gateway", string(kind)).Msg("webhook processing failed")
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) publicPlansHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := r.URL.Query().Get("owner_id")
		if ownerID == "" {
			http.Error(w, "owner_id is required", http.StatusBadRequest)
			return
		}
		plans, err := s.planUC.List(r.Context(), ownerID, true)
		if err != nil {
			http.Error(w, "Failed to list plans", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, plans)
	}
}

type planRequest struct {
	Name         string   `json:"name"`
	DurationDays int      `json:"duration_days"`
	PriceCents   int64    `json:"price_cents"`
	Features     []string `json:"features"`
	Active       *bool    `json:"active"`
	Featured     bool     `json:"featured"`
	SortOrder    int      `json:"sort_order"`
}

func (s *Server) planCreateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req planRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		plan, err := s.planUC.Create(r.Context(), ownerFromRequest(r), req.Name, req.DurationDays, req.PriceCents, req.Features)
		if err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) || errors.Is(err, domain.ErrInvalidArgument) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "Failed to create plan", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, plan)
	}
}

func (s *Server) planListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plans, err := s.planUC.List(r.Context(), ownerFromRequest(r), false)
		if err != nil {
			http.Error(w, "Failed to list plans", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, plans)
	}
}

func (s *Server) planUpdateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req planRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		ownerID := ownerFromRequest(r)
		plan, err := s.planUC.Get(r.Context(), ownerID, chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				http.Error(w, "Not found", http.StatusNotFound)
				return
			}
			http.Error(w, "Failed to load plan", http.StatusInternalServerError)
			return
		}
		plan.Name = req.Name
		plan.DurationDays = req.DurationDays
		plan.PriceCents = req.PriceCents
		plan.Features = req.Features
		plan.Featured = req.Featured
		plan.SortOrder = req.SortOrder
		if req.Active != nil {
			plan.Active = *req.Active
		}
		plan.UpdatedAt = time.Now()

		if err := s.planUC.Update(r.Context(), plan); err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "Failed to update plan", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, plan)
	}
}

func (s *Server) planDeleteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := s.planUC.Delete(r.Context(), ownerFromRequest(r), chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				http.Error(w, "Not found", http.StatusNotFound)
				return
			}
			http.Error(w, "Failed to delete plan", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// settingsResponse deliberately omits credential material; GET only reports
// which providers have credentials on file.
type settingsResponse struct {
	OwnerID            string   `json:"owner_id"`
	ActiveGateway      string   `json:"active_gateway"`
	ConfiguredGateways []string `json:"configured_gateways"`
	PixEnabled         bool     `json:"pix_enabled"`
	BoletoEnabled      bool     `json:"boleto_enabled"`
	CardEnabled        bool     `json:"card_enabled"`
	DisplayName        string   `json:"display_name"`
	LogoURL            string   `json:"logo_url"`
	SupportPhone       string   `json:"support_phone"`
}

func toSettingsResponse(s *model.PaymentSettings) settingsResponse {
	resp := settingsResponse{
		OwnerID:       s.OwnerID,
		ActiveGateway: string(s.ActiveGateway),
		PixEnabled:    s.PixEnabled,
		BoletoEnabled: s.BoletoEnabled,
		CardEnabled:   s.CardEnabled,
		DisplayName:   s.DisplayName,
		LogoURL:       s.LogoURL,
		SupportPhone:  s.SupportPhone,
	}
	for k, c := range s.Credentials {
		if !c.IsZero() {
			resp.ConfiguredGateways = append(resp.ConfiguredGateways, string(k))
		}
	}
	return resp
}

func (s *Server) settingsGetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings, err := s.settingsUC.Get(r.Context(), ownerFromRequest(r))
		if err != nil {
			http.Error(w, "Failed to load settings", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toSettingsResponse(settings))
	}
}

func (s *Server) settingsSaveHandler() http.HandlerFunc {
	type request struct {
		PixEnabled    bool   `json:"pix_enabled"`
		BoletoEnabled bool   `json:"boleto_enabled"`
		CardEnabled   bool   `json:"card_enabled"`
		DisplayName   string `json:"display_name"`
		LogoURL       string `json:"logo_url"`
		SupportPhone  string `json:"support_phone"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		ownerID := ownerFromRequest(r)
		settings, err := s.settingsUC.Get(r.Context(), ownerID)
		if err != nil {
			http.Error(w, "Failed to load settings", http.StatusInternalServerError)
			return
		}
		settings.PixEnabled = req.PixEnabled
		settings.BoletoEnabled = req.BoletoEnabled
		settings.CardEnabled = req.CardEnabled
		settings.DisplayName = req.DisplayName
		settings.LogoURL = req.LogoURL
		settings.SupportPhone = req.SupportPhone

		if err := s.settingsUC.Save(r.Context(), settings); err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "Failed to save settings", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toSettingsResponse(settings))
	}
}

func (s *Server) credentialsHandler() http.HandlerFunc {
	type request struct {
		APIKey       string `json:"api_key"`
		AccessToken  string `json:"access_token"`
		PublicKey    string `json:"public_key"`
		SecretKey    string `json:"secret_key"`
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
		PixKey       string `json:"pix_key"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := model.ParseGatewayKind(chi.URLParam(r, "gateway"))
		if !ok {
			http.Error(w, "Unknown gateway", http.StatusNotFound)
			return
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		creds := model.GatewayCredentials{
			APIKey:       req.APIKey,
			AccessToken:  req.AccessToken,
			PublicKey:    req.PublicKey,
			SecretKey:    req.SecretKey,
			ClientID:     req.ClientID,
			ClientSecret: req.ClientSecret,
			PixKey:       req.PixKey,
		}
		if err := s.settingsUC.SetCredentials(r.Context(), ownerFromRequest(r), kind, creds); err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "Failed to save credentials", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) activateGatewayHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := model.ParseGatewayKind(chi.URLParam(r, "gateway"))
		if !ok && chi.URLParam(r, "gateway") != string(model.GatewayNone) {
			http.Error(w, "Unknown gateway", http.StatusNotFound)
			return
		}
		if !ok {
			kind = model.GatewayNone
		}
		if err := s.settingsUC.ActivateGateway(r.Context(), ownerFromRequest(r), kind); err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "Failed to activate gateway", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// repairHandler re-runs provisioning for approved payments that never got an
// account. Operator-triggered; safe to call repeatedly.
func (s *Server) repairHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := s.provisionUC.Repair(r.Context())
		if err != nil {
			http.Error(w, "Repair failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"repaired": n})
	}
}
