// Package downloader streams a single HTTP response body to a local file.
//
// The download runs in the caller's goroutine: each chunk read from the
// body is written to the destination and reported to the progress observer
// before the next read. Nothing is buffered beyond one chunk.
//
// # Usage
//
//	d := downloader.New(downloader.Options{
//	    Observe: func(total int64) downloader.Observer {
//	        return progress.New(total, progress.Options{})
//	    },
//	})
//
//	res, err := d.Fetch(ctx, target.Request{
//	    URL:       "https://example.com/models/llama.gguf",
//	    Directory: "./downloads",
//	})
//	// res.Path == "<abs>/downloads/llama.gguf"
//
// # Failure
//
// Errors are classified by the errors package: NETWORK, HTTP_STATUS,
// FILESYSTEM, INVALID_INPUT or CANCELED. Nothing is retried. A transfer
// that fails part-way leaves the partial file on disk.
package downloader
