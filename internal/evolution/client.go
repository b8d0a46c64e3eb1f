package evolution

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zapdispatch/zapdispatch/internal/model"
)

// ErrNoSession marks a gateway rejection caused by the instance having no
// active WhatsApp session. The caller is expected to reconnect once and
// retry the same call exactly once.
var ErrNoSession = errors.New("no active session")

// APIError is any non-2xx gateway response that is not a session problem.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("evolution api %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// ConnectionState queries the instance connectivity state.
// "open" means connected.
func (c *Client) ConnectionState(ctx context.Context, instanceID string) (model.ConnectionState, error) {
	body, err := c.do(ctx, http.MethodGet, "/instance/connectionState/"+instanceID, nil)
	if err != nil {
		return "", err
	}

	var out struct {
		Instance struct {
			State string `json:"state"`
		} `json:"instance"`
		State string `json:"state"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to decode json: %w body=%q", err, string(body))
	}

	state := out.Instance.State
	if state == "" {
		state = out.State
	}
	if state == "" {
		state = string(model.StateDisconnected)
	}
	return model.ConnectionState(state), nil
}

// Connect issues a reconnect request and returns the pairing QR code when
// the provider supplies one.
func (c *Client) Connect(ctx context.Context, instanceID string) (model.SessionInfo, error) {
	body, err := c.do(ctx, http.MethodGet, "/instance/connect/"+instanceID, nil)
	if err != nil {
		return model.SessionInfo{}, err
	}

	var out struct {
		Base64      string `json:"base64"`
		PairingCode string `json:"pairingCode"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return model.SessionInfo{}, fmt.Errorf("failed to decode json: %w body=%q", err, string(body))
	}

	return model.SessionInfo{
		InstanceID:  instanceID,
		State:       model.StateConnecting,
		QRCode:      out.Base64,
		PairingCode: out.PairingCode,
	}, nil
}

// CreateInstance registers a new instance with the provider and fetches the
// initial pairing QR code.
func (c *Client) CreateInstance(ctx context.Context, instanceName, token string) (model.SessionInfo, error) {
	_, err := c.do(ctx, http.MethodPost, "/instance/create", map[string]any{
		"instanceName": instanceName,
		"token":        token,
		"qrcode":       true,
		"integration":  "WHATSAPP-BAILEYS",
	})
	if err != nil {
		return model.SessionInfo{}, err
	}

	return c.Connect(ctx, instanceName)
}

// Group is one WhatsApp group the instance participates in.
type Group struct {
	ID           string `json:"id"`
	Subject      string `json:"subject"`
	Participants int    `json:"size"`
}

func (c *Client) FetchGroups(ctx context.Context, instanceID string) ([]Group, error) {
	body, err := c.do(ctx, http.MethodGet, "/group/fetchAllGroups/"+instanceID+"?getParticipants=true", nil)
	if err != nil {
		return nil, err
	}

	var groups []Group
	if err := json.Unmarshal(body, &groups); err != nil {
		return nil, fmt.Errorf("failed to decode json: %w body=%q", err, string(body))
	}
	return groups, nil
}

func (c *Client) SendText(ctx context.Context, instanceID, number, text string) (string, error) {
	body, err := c.do(ctx, http.MethodPost, "/message/sendText/"+instanceID, map[string]any{
		"number": number,
		"text":   text,
	})
	if err != nil {
		return "", err
	}
	return remoteMsgID(body), nil
}

// MediaRequest describes one sendMedia call. Media is a URL the provider can
// fetch, or a base64 data payload.
type MediaRequest struct {
	Number    string
	MediaKind model.MediaKind
	Media     string
	MimeType  string
	Filename  string
	Caption   string
}

func (c *Client) SendMedia(ctx context.Context, instanceID string, req MediaRequest) (string, error) {
	payload := map[string]any{
		"number":    req.Number,
		"mediatype": string(req.MediaKind),
		"media":     req.Media,
		"fileName":  req.Filename,
		"caption":   req.Caption,
	}
	if req.MimeType != "" {
		payload["mimetype"] = req.MimeType
	}

	body, err := c.do(ctx, http.MethodPost, "/message/sendMedia/"+instanceID, payload)
	if err != nil {
		return "", err
	}
	return remoteMsgID(body), nil
}

// SendSticker transmits a sticker. The provider requires the payload inline,
// so the asset is fetched here and re-encoded as a base64 data URL.
func (c *Client) SendSticker(ctx context.Context, instanceID, number, assetURL string) (string, error) {
	dataURL, err := c.fetchAsDataURL(ctx, assetURL)
	if err != nil {
		return "", fmt.Errorf("fetch sticker asset: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/message/sendSticker/"+instanceID, map[string]any{
		"number":  number,
		"sticker": dataURL,
	})
	if err != nil {
		return "", err
	}
	return remoteMsgID(body), nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if strings.Contains(string(body), "No sessions") {
			return nil, fmt.Errorf("%w: %s", ErrNoSession, string(body))
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}

func remoteMsgID(body []byte) string {
	var out struct {
		Key struct {
			ID string `json:"id"`
		} `json:"key"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return ""
	}
	return out.Key.ID
}
