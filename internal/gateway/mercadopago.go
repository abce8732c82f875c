package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/akylbek/bike-rental/billing-service/internal/models"
)

const (
	MsgInvalidCardData = "Dados invalidos"
	MsgCardValid       = "Cartão válido"
	MsgCardInvalid     = "Dados Inválidos"

	statusApproved = "approved"
)

type MercadoPagoClient struct {
	baseURL     string
	accessToken string
	payerEmail  string
	httpClient  *http.Client
}

func NewMercadoPagoClient(baseURL, accessToken, payerEmail string, httpClient *http.Client) *MercadoPagoClient {
	return &MercadoPagoClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		payerEmail:  payerEmail,
		httpClient:  httpClient,
	}
}

type cardholder struct {
	Name string `json:"name"`
}

type cardTokenRequest struct {
	CardNumber      string     `json:"card_number"`
	ExpirationMonth int        `json:"expiration_month"`
	ExpirationYear  int        `json:"expiration_year"`
	SecurityCode    string     `json:"security_code"`
	Cardholder      cardholder `json:"cardholder"`
}

type cardTokenResponse struct {
	ID string `json:"id"`
}

type payer struct {
	Email string `json:"email"`
}

type paymentRequest struct {
	TransactionAmount json.Number `json:"transaction_amount"`
	Token             string      `json:"token"`
	Description       string      `json:"description"`
	Installments      int         `json:"installments"`
	Payer             payer       `json:"payer"`
}

type paymentResponse struct {
	ID           int64  `json:"id"`
	Status       string `json:"status"`
	StatusDetail string `json:"status_detail"`
}

// Charge tokenizes the card and submits a single-installment payment.
// Declines come back as a decision; only transport failures are errors.
func (c *MercadoPagoClient) Charge(ctx context.Context, card models.CardOnFile, amount decimal.Decimal) (models.GatewayDecision, error) {
	token, ok, err := c.tokenize(ctx, card)
	if err != nil {
		return models.GatewayDecision{}, err
	}
	if !ok {
		return models.GatewayDecision{Reason: MsgInvalidCardData}, nil
	}

	body := paymentRequest{
		TransactionAmount: json.Number(amount.String()),
		Token:             token,
		Description:       "Cobranca",
		Installments:      1,
		Payer:             payer{Email: c.payerEmail},
	}

	var payment paymentResponse
	status, err := c.post(ctx, "/v1/payments", body, &payment)
	if err != nil {
		return models.GatewayDecision{}, fmt.Errorf("create payment: %w", err)
	}

	if payment.Status == statusApproved {
		return models.GatewayDecision{Approved: true}, nil
	}

	reason := payment.StatusDetail
	if reason == "" {
		reason = payment.Status
	}
	if reason == "" {
		reason = fmt.Sprintf("pagamento recusado (HTTP %d)", status)
	}
	return models.GatewayDecision{Reason: reason}, nil
}

// ValidateCard checks a card by requesting a token for it.
func (c *MercadoPagoClient) ValidateCard(ctx context.Context, card models.CardOnFile) (models.CardValidation, error) {
	_, ok, err := c.tokenize(ctx, card)
	if err != nil {
		return models.CardValidation{}, err
	}
	if !ok {
		return models.CardValidation{Message: MsgCardInvalid}, nil
	}
	return models.CardValidation{Valid: true, Message: MsgCardValid}, nil
}

func (c *MercadoPagoClient) tokenize(ctx context.Context, card models.CardOnFile) (string, bool, error) {
	body, ok := newCardTokenRequest(card)
	if !ok {
		return "", false, nil
	}

	var token cardTokenResponse
	status, err := c.post(ctx, "/v1/card_tokens", body, &token)
	if err != nil {
		return "", false, fmt.Errorf("create card token: %w", err)
	}
	if status != http.StatusCreated || token.ID == "" {
		return "", false, nil
	}
	return token.ID, true, nil
}

// newCardTokenRequest strips whitespace from the number and splits the
// YYYY-MM-DD expiry into month and year.
func newCardTokenRequest(card models.CardOnFile) (cardTokenRequest, bool) {
	parts := strings.Split(card.Expiry, "-")
	if len(parts) < 2 {
		return cardTokenRequest{}, false
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return cardTokenRequest{}, false
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return cardTokenRequest{}, false
	}

	return cardTokenRequest{
		CardNumber:      strings.Join(strings.Fields(card.Number), ""),
		ExpirationMonth: month,
		ExpirationYear:  year,
		SecurityCode:    card.CVV,
		Cardholder:      cardholder{Name: card.HolderName},
	}, true
}

func (c *MercadoPagoClient) post(ctx context.Context, path string, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("X-Idempotency-Key", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return resp.StatusCode, fmt.Errorf("gateway returned HTTP %d", resp.StatusCode)
	}

	// 4xx bodies carry error details, not the expected shape; callers
	// branch on the status code.
	if resp.StatusCode < http.StatusBadRequest {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode gateway response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
