package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/akylbek/bike-rental/billing-service/internal/models"
)

const (
	MsgCyclistNotFound      = "Ciclista não encontrado"
	MsgDirectoryUnreachable = "Erro ao conectar ao serviço de ciclistas"
)

// CyclistClient reads cards on file from the cyclist service.
type CyclistClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewCyclistClient(baseURL string, httpClient *http.Client) *CyclistClient {
	return &CyclistClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// LookupCard reports unknown cyclists and unreachable directories as a
// not-found lookup. Only an unreadable success body is returned as an error.
func (c *CyclistClient) LookupCard(ctx context.Context, cyclistID int64) (models.CardLookup, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%d", c.baseURL, cyclistID), nil)
	if err != nil {
		return models.CardLookup{}, err
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.CardLookup{Message: MsgDirectoryUnreachable}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.CardLookup{Message: MsgCyclistNotFound}, nil
	}

	var card models.CardOnFile
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return models.CardLookup{}, fmt.Errorf("decode card for cyclist %d: %w", cyclistID, err)
	}

	return models.CardLookup{Found: true, Card: &card}, nil
}
