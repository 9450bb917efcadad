// Package ratelimit implements the query rate controller.
//
// The provider does not publish its limits, so the controller keeps a sliding
// window (660 seconds by default) of the instants at which queries of each type
// were issued. Once a type reaches its per-window quota, the next query of that
// type waits until the oldest entry leaves the window plus a small margin.
//
// Query types are GraphQL query hashes, "iphone" for the mobile API host and
// "other" for everything else. Types listed as unthrottled are neither waited
// for nor recorded.
//
// A 429 response is reported with HandleTooManyRequests, which computes the wait
// as if the window were full and stores it as the earliest instant any further
// request of this controller may be sent.
//
// A Controller is safe for concurrent use, so several crawl contexts can share
// one window when that is configured.
package ratelimit
