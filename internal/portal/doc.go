// Package portal implements the captive-portal credential server.
//
// A Server runs one onboarding session over plain HTTP. It understands just
// enough HTTP/1.x to read one request and write one response per
// connection: no keep-alive, no chunked bodies, no TLS.
//
//   - GET (any path) returns the configured form page.
//   - POST (any path) with an application/x-www-form-urlencoded body
//     carrying non-empty "ssid" and "password" ends the session. The
//     success page is sent, the listener is closed, and Collect returns
//     the pair.
//   - Anything else returns 400 with the error page, where %CONTENT% is
//     replaced by the reason. The session keeps listening.
//
// # Usage Example
//
//	srv := portal.New(portal.DefaultConfig())
//	sub, err := srv.Collect(ctx)
//	if err != nil {
//	    return err
//	}
//	fmt.Println("joining", sub.SSID)
//
// Terminate may be called from another goroutine to abort a pending Collect.
package portal
