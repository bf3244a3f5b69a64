package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/brasco123/kdg-kiosk-installer/internal/logger"
)

// ErrDownloadFailed wraps every failure mode of a download: transport
// errors, unexpected statuses and disk-write errors alike.
var ErrDownloadFailed = errors.New("download failed")

// ProgressFunc receives byte-level progress after each chunk.
// Percent is floor(downloaded*100/total) clamped to 100.
type ProgressFunc func(percent int, downloaded, total int64)

const (
	// chunkSize is the copy buffer size; progress fires once per chunk.
	chunkSize = 32 * 1024

	// maxPercent clamps the reported completion.
	maxPercent = 100

	// downloadedFileMode is the permission set on the downloaded artifact.
	downloadedFileMode = 0o644
)

// ToFile streams the resource at url into destination, reporting progress
// after each chunk when the server announced a content length. With an
// unknown or zero length no callback ever fires, but the download still
// completes. A single attempt is made; failures are not retried here.
func ToFile(ctx context.Context, url, destination string, onProgress ProgressFunc) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("%w: build request: %w", ErrDownloadFailed, err)
	}

	response, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: %s: %s", ErrDownloadFailed, url, response.Status)
	}

	out, err := os.OpenFile(filepath.Clean(destination), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, downloadedFileMode)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrDownloadFailed, destination, err)
	}

	total := response.ContentLength

	if err = copyWithProgress(out, response.Body, total, onProgress); err != nil {
		_ = out.Close()

		return fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}

	if err = out.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrDownloadFailed, destination, err)
	}

	logger.InfoKV(ctx, "Download complete", "url", url, "destination", destination, "bytes", total)

	return nil
}

// copyWithProgress copies src to dst in fixed-size chunks, invoking
// onProgress after each chunk when the total size is known and positive.
func copyWithProgress(dst io.Writer, src io.Reader, total int64, onProgress ProgressFunc) error {
	var (
		buffer     [chunkSize]byte
		downloaded int64
	)

	for {
		n, readErr := src.Read(buffer[:])
		if n > 0 {
			if _, writeErr := dst.Write(buffer[:n]); writeErr != nil {
				return fmt.Errorf("write chunk: %w", writeErr)
			}

			downloaded += int64(n)

			if onProgress != nil && total > 0 {
				percent := min(int(downloaded*100/total), maxPercent)
				onProgress(percent, downloaded, total)
			}
		}

		if readErr == io.EOF {
			return nil
		}

		if readErr != nil {
			return fmt.Errorf("read body: %w", readErr)
		}
	}
}
