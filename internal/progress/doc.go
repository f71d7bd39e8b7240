// Package progress renders the progress of a single download.
//
// A Reporter is created once the response headers are in. Its [Mode] is
// chosen from the advertised size and never changes:
//
//   - [Bounded]: size known; bar, percentage, throughput and ETA
//   - [Unbounded]: size unknown; spinner, byte counter, throughput, elapsed
//
// The download loop calls Advance with each chunk length and Finish once the
// body is exhausted. Rendering happens synchronously inside those calls and
// is throttled to Options.RefreshRate redraws per second.
//
// # Usage
//
//	r := progress.New(resp.ContentLength, progress.Options{Label: "llama.gguf"})
//	for ... {
//	    r.Advance(int64(n))
//	}
//	r.Finish()
//
// # Output Format
//
//	[gulp] llama.gguf ███████░░░░░░░  45.2% | 1.1 GiB / 2.5 GiB | 12 MiB/s | ETA: 1m 58s
//	[gulp] ⣾ 1.1 GiB | 12 MiB/s | 1m 32s
package progress
