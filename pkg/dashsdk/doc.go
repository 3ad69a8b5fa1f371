/*
Package dashsdk provides a client SDK for the dashboard API.

# SDKClient vs Session

  - SDKClient: credential operations that take the token explicitly
  - Session: notification operations bound to a token source

Typical use:

	inv := invalidation.New()
	client := dashsdk.NewSDKClient("https://dash.example.com", inv)

	login, err := client.Login(ctx, "alice", "secret")
	perms, err := client.FetchPermissionCodes(ctx, login.Token)

	session := client.NewSession(func() string { return currentToken })
	items, err := session.ListNotifications(ctx, true, 50)

# Invalidation

Every request that carries a bearer token and is answered with 401 raises
the client's invalidation channel before the error is returned. Login never
raises it.

# Errors

Non-2xx answers are returned as *APIError. Use errors.Is(err, ErrUnauthorized)
to detect a rejected credential.
*/
package dashsdk
