package room

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	roomService     = "RoomService"
	dispatchService = "AgentDispatchService"

	// serverTokenTTL bounds the per-call server API token.
	serverTokenTTL = 10 * time.Minute
)

// HTTPClientConfig configures an HTTPClient.
type HTTPClientConfig struct {
	// BaseURL is the substrate's HTTP API endpoint, e.g. http://127.0.0.1:7880.
	BaseURL   string
	APIKey    string
	APISecret string

	// HTTPClient defaults to a client with a 15s timeout.
	HTTPClient *http.Client
}

// HTTPClient implements Client against the substrate's Twirp-style JSON
// API. Every call carries a short-lived admin token.
type HTTPClient struct {
	baseURL   string
	apiKey    string
	apiSecret string
	http      *http.Client
}

// NewHTTPClient validates the config and builds a client.
func NewHTTPClient(cfg HTTPClientConfig) (*HTTPClient, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("room: base url is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.APISecret) == "" {
		return nil, fmt.Errorf("room: api key and secret are required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPClient{
		baseURL:   base,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		http:      hc,
	}, nil
}

func (c *HTTPClient) ListRooms(ctx context.Context, names []string) ([]Room, error) {
	in := struct {
		Names []string `json:"names,omitempty"`
	}{Names: names}
	var out struct {
		Rooms []Room `json:"rooms"`
	}
	if err := c.call(ctx, roomService, "ListRooms", in, &out); err != nil {
		return nil, err
	}
	return out.Rooms, nil
}

func (c *HTTPClient) UpdateRoomMetadata(ctx context.Context, roomName, metadata string) error {
	in := struct {
		Room     string `json:"room"`
		Metadata string `json:"metadata"`
	}{Room: roomName, Metadata: metadata}
	return c.call(ctx, roomService, "UpdateRoomMetadata", in, &Room{})
}

func (c *HTTPClient) ListParticipants(ctx context.Context, roomName string) ([]ParticipantInfo, error) {
	in := struct {
		Room string `json:"room"`
	}{Room: roomName}
	var out struct {
		Participants []ParticipantInfo `json:"participants"`
	}
	if err := c.call(ctx, roomService, "ListParticipants", in, &out); err != nil {
		return nil, err
	}
	return out.Participants, nil
}

func (c *HTTPClient) ListDispatches(ctx context.Context, roomName string) ([]AgentDispatch, error) {
	in := struct {
		Room string `json:"room"`
	}{Room: roomName}
	var out struct {
		Dispatches []AgentDispatch `json:"agent_dispatches"`
	}
	if err := c.call(ctx, dispatchService, "ListDispatch", in, &out); err != nil {
		return nil, err
	}
	return out.Dispatches, nil
}

func (c *HTTPClient) CreateDispatch(ctx context.Context, agentName, roomName, metadata string) (AgentDispatch, error) {
	in := struct {
		AgentName string `json:"agent_name"`
		Room      string `json:"room"`
		Metadata  string `json:"metadata,omitempty"`
	}{AgentName: agentName, Room: roomName, Metadata: metadata}
	var out AgentDispatch
	if err := c.call(ctx, dispatchService, "CreateDispatch", in, &out); err != nil {
		return AgentDispatch{}, err
	}
	return out, nil
}

func (c *HTTPClient) DeleteDispatch(ctx context.Context, dispatchID, roomName string) error {
	in := struct {
		DispatchID string `json:"dispatch_id"`
		Room       string `json:"room"`
	}{DispatchID: dispatchID, Room: roomName}
	return c.call(ctx, dispatchService, "DeleteDispatch", in, &AgentDispatch{})
}

func (c *HTTPClient) call(ctx context.Context, service, method string, in, out any) error {
	token, err := NewAccessToken(c.apiKey, c.apiSecret).
		WithGrant(VideoGrant{RoomAdmin: true, RoomList: true, Agent: true}).
		WithTTL(serverTokenTTL).
		ToJWT()
	if err != nil {
		return &SubstrateError{Method: method, Err: fmt.Errorf("mint server token: %w", err)}
	}

	body, err := json.Marshal(in)
	if err != nil {
		return &SubstrateError{Method: method, Err: fmt.Errorf("encode request: %w", err)}
	}

	url := fmt.Sprintf("%s/twirp/livekit.%s/%s", c.baseURL, service, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &SubstrateError{Method: method, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return &SubstrateError{Method: method, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &SubstrateError{Method: method, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return &SubstrateError{Method: method, Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return &SubstrateError{Method: method, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return nil
}
