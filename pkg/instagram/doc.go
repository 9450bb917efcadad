// Package instagram implements the request side of the crawler: sessions,
// login, the rate-controlled JSON request executor, hash-identified GraphQL
// queries and anonymous raw downloads.
//
// A Context owns one Session together with its rate controller and adaptive
// page length. Every request first takes a short cooperative pause (see
// DelayPolicy), then waits for the rate controller, and is retried on
// connection failures and 429 responses up to query.max_connection_attempts.
//
// Example usage:
//
//	ictx := instagram.NewContext(instagram.Options{Config: cfg, Logger: log})
//	defer ictx.Close()
//
//	profile, err := ictx.ProfileByUsername(ctx, "username")
//	if err != nil {
//	    return err
//	}
//	posts := ictx.ProfilePosts(profile)
//	for {
//	    post, ok, err := posts.Next(ctx)
//	    if err != nil || !ok {
//	        break
//	    }
//	    for _, m := range post.Media() {
//	        // download m.URL with ictx.DownloadRaw
//	    }
//	}
//
// Batch callers wrap each target in Context.Catch so that one failing target
// does not stop the others.
package instagram
