package dashsdk

import (
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/dashcore/pkg/invalidation"
)

// SDKClient is a client for the dashboard API.
// It provides the credential operations directly and creates token-bound
// Sessions for everything else.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client

	// Invalidations is raised whenever a bearer request comes back 401. The
	// login call never raises it: a rejected password is not a rejected token.
	// Nil disables the signal.
	Invalidations *invalidation.Channel

	// IsCurrent reports whether token is still the credential in use. A 401
	// for any other token is answered to the caller but does not raise
	// Invalidations. Nil treats every token as current.
	IsCurrent func(token string) bool
}

// NewSDKClient creates a new API client with a 10 second timeout.
func NewSDKClient(baseURL string, invalidations *invalidation.Channel) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		Invalidations: invalidations,
	}
}

// NewSession binds the client to a token source. The source is read on every
// request, so a Session follows login, logout and expiry without being rebuilt.
func (c *SDKClient) NewSession(token func() string) *Session {
	return &Session{client: c, token: token}
}
