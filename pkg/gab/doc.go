// Package gab is the HTTP layer of garc: the login session, the transport
// with its retry and backoff policy, URL builders for both API generations,
// and the Record model.
//
// A Client logs in lazily on its first authorized request:
//
//	client := gab.NewClient(cfg, creds, log)
//	page, _, err := client.GetPage(ctx, client.Endpoints().Search("news", "date", ""), gab.FetchOptions{})
//
// Clients are not safe for concurrent use. Run independent clients when
// collecting in parallel.
package gab
