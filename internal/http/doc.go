// Package http provides the HTTP client used to stream a single file.
//
// This package handles:
//   - A tuned transport with connection-level timeouts only
//   - One GET per download, never retried
//   - Classification of transport failures and non-2xx statuses
//   - Reading the advertised size, -1 when unknown or malformed
//
// # Usage
//
//	client := http.NewClient(http.DefaultOptions())
//
//	resp, err := client.Get(ctx, url)
//	if err != nil {
//	    // errors.KindOf(err): NETWORK, HTTP_STATUS, CANCELED, INVALID_INPUT
//	}
//	defer resp.Body.Close()
//	// resp.ContentLength is -1 if the server did not advertise a size
package http
