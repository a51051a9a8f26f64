// Package download fetches resolved media items onto disk.
//
// # Manager
//
// The Manager coordinates one run end to end:
//
//  1. Validate the input URL
//  2. Resolve it into items, trying each client profile in turn
//  3. Select a format (or a video and audio pair) per item
//  4. Transfer items concurrently, each split into fragments
//  5. Merge separate streams with the external merge tool
//  6. Assemble the outputs into a single file or a zip archive
//
// # Basic Usage
//
//	manager, err := download.NewManager(settings, func(event download.ProgressEvent) {
//	    fmt.Println(event.Message)
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer manager.Cleanup()
//
//	report, err := manager.Run(ctx, download.Request{URL: "https://example.com/watch/abc"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(report.Output.Path)
//
// # Concurrency
//
// Two limits apply:
//   - download.max_concurrent_items: items fetched in parallel
//   - download.max_concurrent_fragments: fragment requests per item
//
// # Progress Tracking
//
// Progress is reported via a callback that receives ProgressEvent. Plain
// messages carry a Level; per-item reports carry an Update whose Percent
// never decreases and stays below 100 until the item is verified.
//
// # Retry Logic
//
// Failed fragments are retried with exponential backoff, configured by
// download.fragment_attempts and download.retry_cooldown. After a failure
// only one fragment per item waits and retries at a time.
package download
