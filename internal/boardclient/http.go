package boardclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/avvvet/opsboard-services/internal/boardsvc/models"
	log "github.com/sirupsen/logrus"
)

// API talks to the board service over HTTP: the cold read on load and the
// durable write after every local mutation.
type API struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewAPI(baseURL, token string) *API {
	return &API{BaseURL: baseURL, Token: token, Client: &http.Client{Timeout: 30 * time.Second}}
}

type apiResponse struct {
	Message string          `json:"message"`
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (a *API) do(ctx context.Context, method, path string, body interface{}) (json.RawMessage, error) {
	var rd bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&rd).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, &rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.Token)
	req.Header.Set("Content-Type", "application/json")

	res, err := a.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var rsp apiResponse
	if err := json.NewDecoder(res.Body).Decode(&rsp); err != nil {
		return nil, fmt.Errorf("%s %s: status %d", method, path, res.StatusCode)
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s %s: status %d: %s", method, path, res.StatusCode, rsp.Error)
	}
	return rsp.Data, nil
}

// FetchBoard is the cold read from the store, not from the realtime cache.
func (a *API) FetchBoard(ctx context.Context, boardID string) (*models.Board, error) {
	data, err := a.do(ctx, http.MethodGet, "/v1/board?id="+url.QueryEscape(boardID), nil)
	if err != nil {
		return nil, err
	}
	b := &models.Board{}
	if err := json.Unmarshal(data, b); err != nil {
		return nil, err
	}
	b.Hydrate()
	return b, nil
}

// SaveBoard implements Persister. It does not wait for the write.
func (a *API) SaveBoard(boardID string, doc *models.Board) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := a.do(ctx, http.MethodPost, "/v1/board", map[string]interface{}{
			"action": "update",
			"id":     boardID,
			"data":   json.RawMessage(data),
		}); err != nil {
			log.Warnf("save board %s v%d: %v", boardID, doc.Version, err)
		}
	}()
	return nil
}
