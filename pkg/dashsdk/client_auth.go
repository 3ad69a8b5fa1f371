package dashsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Login exchanges a username and password for a credential.
//
// A rejected login is reported as an error: either the *APIError for a non-2xx
// answer, or an *APIError carrying the body's error message when the API
// answers success=false.
func (c *SDKClient) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	body, err := json.Marshal(LoginRequest{Username: username, Password: password})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/api/auth/login", "", bytes.NewReader(body),
		map[string]string{"Content-Type": "application/json"})
	if err != nil {
		return nil, err
	}

	var loginResp LoginResponse
	if err := decodeJSON(resp, &loginResp); err != nil {
		return nil, err
	}

	if !loginResp.Success || loginResp.Token == "" {
		msg := loginResp.Error
		if msg == "" {
			return nil, ErrUnsuccessful
		}
		return nil, &APIError{StatusCode: http.StatusOK, Message: msg}
	}

	return &loginResp, nil
}

// FetchIdentityAndRoles returns the user, employee and roles behind token.
func (c *SDKClient) FetchIdentityAndRoles(ctx context.Context, token string) (*IdentityResponse, error) {
	if token == "" {
		return nil, ErrNoCredential
	}

	resp, err := c.doRequest(ctx, http.MethodGet, "/api/auth/me", token, nil, nil)
	if err != nil {
		return nil, err
	}

	var identity IdentityResponse
	if err := decodeJSON(resp, &identity); err != nil {
		return nil, err
	}
	if !identity.Success || identity.User == nil {
		return nil, ErrUnsuccessful
	}

	return &identity, nil
}

// FetchPermissionCodes returns the permission codes granted to token.
func (c *SDKClient) FetchPermissionCodes(ctx context.Context, token string) ([]string, error) {
	if token == "" {
		return nil, ErrNoCredential
	}

	resp, err := c.doRequest(ctx, http.MethodGet, "/api/auth/permissions", token, nil, nil)
	if err != nil {
		return nil, err
	}

	var perms PermissionsResponse
	if err := decodeJSON(resp, &perms); err != nil {
		return nil, err
	}
	if !perms.Success {
		return nil, ErrUnsuccessful
	}

	return perms.Permissions, nil
}

// Logout tells the API to drop token. Callers normally ignore the error.
func (c *SDKClient) Logout(ctx context.Context, token string) error {
	if token == "" {
		return ErrNoCredential
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/api/auth/logout", token, nil, nil)
	if err != nil {
		return err
	}

	return checkStatus(resp)
}
