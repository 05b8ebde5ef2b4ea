// Package client - HTTP и websocket клиент сервиса вызовов.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/senyabanana/instant-call-service/internal/models"
)

const defaultTimeout = 15 * time.Second

// Client обращается к REST API от имени одного пользователя.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// New создает новый экземпляр Client.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: defaultTimeout},
	}
}

// CreateRequest создает заявку и рассылает её доступным исполнителям.
func (c *Client) CreateRequest(ctx context.Context, input models.RequestInput) (*models.CreatedRequest, error) {
	var created models.CreatedRequest
	if err := c.do(ctx, http.MethodPost, "/api/requests/new", nil, input, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// GetRequest возвращает заявку.
func (c *Client) GetRequest(ctx context.Context, requestId string) (*models.Request, error) {
	var req models.Request
	if err := c.do(ctx, http.MethodGet, "/api/requests/"+url.PathEscape(requestId), nil, nil, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// RequestStatus возвращает текущий статус заявки на сервере.
func (c *Client) RequestStatus(ctx context.Context, requestId string) (models.RequestStatus, error) {
	var status models.RequestStatus
	if err := c.do(ctx, http.MethodGet, "/api/requests/"+url.PathEscape(requestId)+"/status", nil, nil, &status); err != nil {
		return "", err
	}
	return status, nil
}

// SubmitEstimate подаёт или заменяет предложение исполнителя.
func (c *Client) SubmitEstimate(ctx context.Context, requestId string, input models.EstimateInput) (*models.Estimate, error) {
	var est models.Estimate
	if err := c.do(ctx, http.MethodPost, "/api/requests/"+url.PathEscape(requestId)+"/estimates", nil, input, &est); err != nil {
		return nil, err
	}
	return &est, nil
}

// ListEstimates возвращает действующие предложения по заявке.
func (c *Client) ListEstimates(ctx context.Context, requestId string) ([]models.Estimate, error) {
	var list []models.Estimate
	if err := c.do(ctx, http.MethodGet, "/api/requests/"+url.PathEscape(requestId)+"/estimates", nil, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// SelectWinner выбирает исполнителя.
func (c *Client) SelectWinner(ctx context.Context, requestId, workerId string) (*models.Selection, error) {
	query := url.Values{"workerId": {workerId}}
	var selection models.Selection
	if err := c.do(ctx, http.MethodPut, "/api/requests/"+url.PathEscape(requestId)+"/select", query, nil, &selection); err != nil {
		return nil, err
	}
	return &selection, nil
}

// CancelRequest отменяет заявку.
func (c *Client) CancelRequest(ctx context.Context, requestId string) (*models.Request, error) {
	var req models.Request
	if err := c.do(ctx, http.MethodPut, "/api/requests/"+url.PathEscape(requestId)+"/cancel", nil, nil, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// PullNotifications возвращает записи входящих с seq больше after.
func (c *Client) PullNotifications(ctx context.Context, after int64, limit int) ([]models.Notification, error) {
	query := url.Values{}
	if after > 0 {
		query.Set("after", strconv.FormatInt(after, 10))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var list []models.Notification
	if err := c.do(ctx, http.MethodGet, "/api/notifications", query, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// MarkRead отмечает запись входящих прочитанной.
func (c *Client) MarkRead(ctx context.Context, notificationId string) error {
	return c.do(ctx, http.MethodPut, "/api/notifications/"+url.PathEscape(notificationId)+"/read", nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// decodeError восстанавливает ожидаемую ошибку из ответа, чтобы работал errors.Is.
func decodeError(resp *http.Response) error {
	var body models.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Message == "" {
		return models.NewErrorResponse(resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	for _, known := range models.KnownErrors {
		if known.StatusCode != resp.StatusCode {
			continue
		}
		if body.Message == known.Message {
			return known
		}
		if detail, ok := strings.CutPrefix(body.Message, known.Message+": "); ok {
			return fmt.Errorf("%w: %s", known, detail)
		}
	}
	return models.NewErrorResponse(resp.StatusCode, body.Message)
}
