package room

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// VideoGrant is the capability set embedded in an access token.
type VideoGrant struct {
	RoomCreate     bool   `json:"roomCreate,omitempty"`
	RoomList       bool   `json:"roomList,omitempty"`
	RoomAdmin      bool   `json:"roomAdmin,omitempty"`
	RoomJoin       bool   `json:"roomJoin,omitempty"`
	Room           string `json:"room,omitempty"`
	CanPublish     *bool  `json:"canPublish,omitempty"`
	CanSubscribe   *bool  `json:"canSubscribe,omitempty"`
	CanPublishData *bool  `json:"canPublishData,omitempty"`
	Agent          bool   `json:"agent,omitempty"`
}

// RoomAgentDispatch declares an agent to dispatch when the room is created
// from a token carrying it.
type RoomAgentDispatch struct {
	AgentName string `json:"agent_name"`
	Metadata  string `json:"metadata,omitempty"`
}

// RoomConfiguration travels inside an access token and configures the room
// on first creation. Its metadata is NOT retroactively applied to rooms
// that already exist; the reconciler handles those explicitly.
type RoomConfiguration struct {
	Agents   []RoomAgentDispatch `json:"agents,omitempty"`
	Metadata string              `json:"metadata,omitempty"`
}

// Claims is the HS256 claim set of a substrate access token.
type Claims struct {
	jwt.RegisteredClaims
	Name       string             `json:"name,omitempty"`
	Metadata   string             `json:"metadata,omitempty"`
	Video      *VideoGrant        `json:"video,omitempty"`
	RoomConfig *RoomConfiguration `json:"roomConfig,omitempty"`
}

// AccessToken builds a signed access grant for one participant (or for
// server-to-server API calls, with admin grants and no identity).
type AccessToken struct {
	apiKey    string
	apiSecret string

	identity   string
	name       string
	metadata   string
	grant      *VideoGrant
	roomConfig *RoomConfiguration
	ttl        time.Duration

	now func() time.Time
}

// DefaultTokenTTL is the validity window of a minted token.
const DefaultTokenTTL = 6 * time.Hour

// NewAccessToken starts a token for the given API key pair.
func NewAccessToken(apiKey, apiSecret string) *AccessToken {
	return &AccessToken{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		ttl:       DefaultTokenTTL,
		now:       time.Now,
	}
}

func (t *AccessToken) WithIdentity(identity string) *AccessToken {
	t.identity = identity
	return t
}

func (t *AccessToken) WithName(name string) *AccessToken {
	t.name = name
	return t
}

func (t *AccessToken) WithMetadata(metadata string) *AccessToken {
	t.metadata = metadata
	return t
}

func (t *AccessToken) WithGrant(grant VideoGrant) *AccessToken {
	t.grant = &grant
	return t
}

func (t *AccessToken) WithRoomConfig(cfg RoomConfiguration) *AccessToken {
	t.roomConfig = &cfg
	return t
}

func (t *AccessToken) WithTTL(ttl time.Duration) *AccessToken {
	if ttl > 0 {
		t.ttl = ttl
	}
	return t
}

func (t *AccessToken) withNow(now func() time.Time) *AccessToken {
	t.now = now
	return t
}

// ToJWT signs the token.
func (t *AccessToken) ToJWT() (string, error) {
	if strings.TrimSpace(t.apiKey) == "" || strings.TrimSpace(t.apiSecret) == "" {
		return "", fmt.Errorf("access token requires api key and secret")
	}

	now := t.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.apiKey,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		Name:       t.name,
		Metadata:   t.metadata,
		Video:      t.grant,
		RoomConfig: t.roomConfig,
	}
	if t.identity != "" {
		claims.Subject = t.identity
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(t.apiSecret))
}

// ptrBool is a convenience for the tri-state grant fields.
func ptrBool(v bool) *bool { return &v }

// JoinGrant returns the standard participant grant for one room: join plus
// full publish/subscribe/data capabilities.
func JoinGrant(roomName string) VideoGrant {
	return VideoGrant{
		RoomJoin:       true,
		Room:           roomName,
		CanPublish:     ptrBool(true),
		CanSubscribe:   ptrBool(true),
		CanPublishData: ptrBool(true),
	}
}
