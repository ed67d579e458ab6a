// Package bitmex is a REST client for the BitMEX derivatives exchange.
// Authenticated requests are signed with the api-key/api-expires/api-signature
// scheme, and every request is paced by a governor that adapts to the
// x-ratelimit-remaining header returned by the server.
//
// BitMEX API Documentation: https://www.bitmex.com/app/apiOverview
package bitmex
