package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-telegram/bot/models"
)

// pollReadTimeout bounds a single getUpdates long poll. It is deliberately
// independent of the send timeout: pairing polls until the operator relays
// the password, and each round trip just needs to come back quickly enough
// to stay responsive.
const pollReadTimeout = 10 * time.Second

type getUpdatesResponse struct {
	OK          bool            `json:"ok"`
	Result      []models.Update `json:"result"`
	Description string          `json:"description"`
}

// GetUpdates fetches pending updates starting at offset via the raw Bot API
// endpoint. The bot library keeps its own getUpdates loop private, and
// pairing needs direct control of the cursor, so the call is made by hand.
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]models.Update, error) {
	secs := int(pollReadTimeout.Seconds())
	url := fmt.Sprintf("%s/bot%s/getUpdates?timeout=%d", c.apiURL, c.token, secs)
	if offset != 0 {
		url += fmt.Sprintf("&offset=%d", offset)
	}

	reqCtx, cancel := context.WithTimeout(ctx, pollReadTimeout+5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("getUpdates http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out getUpdatesResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode getUpdates response: %w", err)
	}
	if !out.OK {
		return nil, fmt.Errorf("getUpdates failed: %s", out.Description)
	}
	return out.Result, nil
}
