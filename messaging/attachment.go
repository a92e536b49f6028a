package messaging

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	tg "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"persona-handler/steps"
)

// Largest attachment downloaded for viewing
const MaxAttachmentBytes = 10 << 20

// Attachment errors
var (
	errFileURL      = errors.New("failed to get file url")
	errDownload     = errors.New("failed to download attachment")
	errFileTooLarge = errors.New("attachment too large")
)

// Attachment is file reference of inbound message
type Attachment struct {
	FileID      string
	ContentType string
	Filename    string
	Size        int
}

func (a Attachment) step() steps.Attachment {
	return steps.Attachment{ContentType: a.ContentType, Filename: a.Filename}
}

// Photo sizes of one photo count as single attachment
func attachmentsOf(msg *tg.Message) []Attachment {
	var out []Attachment
	if n := len(msg.Photo); n > 0 {
		largest := msg.Photo[n-1]
		out = append(out, Attachment{
			FileID:      largest.FileID,
			ContentType: "image/jpeg",
			Size:        largest.FileSize,
		})
	}
	if d := msg.Document; d != nil {
		out = append(out, Attachment{
			FileID:      d.FileID,
			ContentType: d.MimeType,
			Filename:    d.FileName,
			Size:        d.FileSize,
		})
	}
	return out
}

// Resolve turns attachments into step attachments.
// Images are embedded as data URLs so bot token never leaves process.
// Other files keep metadata only.
func Resolve(
	ctx context.Context, api API, client *http.Client, atts []Attachment,
) ([]steps.Attachment, error) {
	out := make([]steps.Attachment, 0, len(atts))

	// More than one attachment is never viewed
	if len(atts) != 1 {
		for _, a := range atts {
			out = append(out, a.step())
		}
		return out, nil
	}

	a := atts[0]
	sa := a.step()
	if !sa.IsImage() {
		return append(out, sa), nil
	}

	dataURL, err := fetchDataURL(ctx, api, client, a)
	if err != nil {
		return nil, err
	}
	sa.URL = dataURL
	return append(out, sa), nil
}

func fetchDataURL(
	ctx context.Context, api API, client *http.Client, a Attachment,
) (string, error) {
	if a.Size > MaxAttachmentBytes {
		return "", fmt.Errorf("%w: %d bytes", errFileTooLarge, a.Size)
	}
	if client == nil {
		client = http.DefaultClient
	}

	url, err := api.GetFileDirectURL(a.FileID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errFileURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errDownload, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		// Error text may carry token bearing url
		return "", fmt.Errorf("%w: %s", errDownload, redact(err.Error(), url))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", errDownload, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxAttachmentBytes+1))
	if err != nil {
		return "", fmt.Errorf("%w: %v", errDownload, err)
	}
	if len(data) > MaxAttachmentBytes {
		return "", fmt.Errorf("%w: over %d bytes", errFileTooLarge, MaxAttachmentBytes)
	}

	contentType := a.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func redact(s string, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "<file url>")
}
