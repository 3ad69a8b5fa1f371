package dashsdk

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// Session performs bearer requests with whatever token its source returns.
type Session struct {
	client *SDKClient
	token  func() string
}

func (s *Session) currentToken() (string, error) {
	if s.token == nil {
		return "", ErrNoCredential
	}
	tok := s.token()
	if tok == "" {
		return "", ErrNoCredential
	}
	return tok, nil
}

// ListNotifications returns up to limit notifications, newest first as the
// API orders them. includeRead=false restricts the page to unread ones.
func (s *Session) ListNotifications(ctx context.Context, includeRead bool, limit int) ([]NotificationRecord, error) {
	tok, err := s.currentToken()
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("include_read", strconv.FormatBool(includeRead))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	resp, err := s.client.doRequest(ctx, http.MethodGet, "/api/notifications?"+q.Encode(), tok, nil, nil)
	if err != nil {
		return nil, err
	}

	var list ListNotificationsResponse
	if err := decodeJSON(resp, &list); err != nil {
		return nil, err
	}

	return list.Results, nil
}

// MarkNotificationRead marks one notification as read.
func (s *Session) MarkNotificationRead(ctx context.Context, id string) error {
	tok, err := s.currentToken()
	if err != nil {
		return err
	}

	resp, err := s.client.doRequest(ctx, http.MethodPost,
		"/api/notifications/"+url.PathEscape(id)+"/read", tok, nil, nil)
	if err != nil {
		return err
	}

	return checkStatus(resp)
}

// MarkAllNotificationsRead marks every notification of the user as read.
func (s *Session) MarkAllNotificationsRead(ctx context.Context) error {
	tok, err := s.currentToken()
	if err != nil {
		return err
	}

	resp, err := s.client.doRequest(ctx, http.MethodPost, "/api/notifications/read-all", tok, nil, nil)
	if err != nil {
		return err
	}

	return checkStatus(resp)
}
