package transfer

import (
	"context"
	"io"
)

// UploadRequest describes one upload.
type UploadRequest struct {
	// URL receives the content.
	URL string

	// SourceURL is fetched and streamed to URL when Body is nil.
	SourceURL string

	// Body is uploaded as is when set.
	Body io.Reader

	// ContentType defaults to application/octet-stream.
	ContentType string

	// FileName is sent as the attachment name when set.
	FileName string
}

// DownloadRequest describes one download.
type DownloadRequest struct {
	URL string

	// Path is where the content ends up. The parent directory is created.
	Path string
}

// Response is the outcome of a successful transfer.
type Response struct {
	// Location is where the content can be found afterwards.
	Location string

	Size int64
}

// Uploader uploads content for the operation identified by cmdID.
type Uploader interface {
	Upload(ctx context.Context, cmdID string, req UploadRequest) (Response, error)
}

// Downloader downloads content for the operation identified by cmdID.
type Downloader interface {
	Download(ctx context.Context, cmdID string, req DownloadRequest) (Response, error)
}

// Observer receives the outcome of every transfer.
type Observer interface {
	ObserveTransfer(direction string, ok bool, bytes int64)
}

// Transfer directions reported to the Observer.
const (
	DirectionUpload   = "upload"
	DirectionDownload = "download"
)
