package attach

import (
	"encoding/base64"
	"fmt"
	"mime"
	"time"

	"github.com/BearBump/RequestBox/internal/models"
	"github.com/pkg/errors"
)

// Kind of the uploaded payload; drives the MIME/extension defaults.
type Kind string

const (
	KindAudio Kind = "audio"
	KindPhoto Kind = "photo"
)

// ErrEncodeFailed marks a payload that cannot be encoded. The caller drops
// the attachment and continues — this error never aborts a submission.
var ErrEncodeFailed = errors.New("attachment encode failed")

const (
	defaultAudioMIME = "audio/wav"
	defaultPhotoMIME = "image/jpeg"
)

// Encode converts one uploaded payload into its transport-neutral form.
// Missing MIME type and filename are defaulted, never rejected.
func Encode(kind Kind, p *models.FilePayload) (*models.EncodedAttachment, error) {
	if p == nil || len(p.Data) == 0 {
		return nil, errors.Wrapf(ErrEncodeFailed, "%s payload is empty", kind)
	}

	mimeType := p.MIMEType
	if mimeType == "" {
		mimeType = defaultMIME(kind)
	}

	filename := p.Filename
	if filename == "" {
		filename = synthesizeFilename(kind, mimeType, time.Now().UTC())
	}

	return &models.EncodedAttachment{
		MIMEType: mimeType,
		Filename: filename,
		Size:     len(p.Data),
		Content:  base64.StdEncoding.EncodeToString(p.Data),
	}, nil
}

func defaultMIME(kind Kind) string {
	if kind == KindPhoto {
		return defaultPhotoMIME
	}
	return defaultAudioMIME
}

func synthesizeFilename(kind Kind, mimeType string, now time.Time) string {
	ext := extensionFor(kind, mimeType)
	return fmt.Sprintf("%s-%d%s", kind, now.UnixMilli(), ext)
}

func extensionFor(kind Kind, mimeType string) string {
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	if kind == KindPhoto {
		return ".jpg"
	}
	return ".wav"
}
