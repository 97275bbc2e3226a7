package attach

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/BearBump/RequestBox/internal/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestEncode_RoundTrip(t *testing.T) {
	a, err := Encode(KindAudio, &models.FilePayload{
		Filename: "message.ogg",
		MIMEType: "audio/ogg",
		Data:     []byte{0x4f, 0x67, 0x67, 0x53},
	})
	require.NoError(t, err)
	require.Equal(t, "audio/ogg", a.MIMEType)
	require.Equal(t, "message.ogg", a.Filename)
	require.Equal(t, 4, a.Size)

	raw, err := base64.StdEncoding.DecodeString(a.Content)
	require.NoError(t, err)
	require.Equal(t, []byte{0x4f, 0x67, 0x67, 0x53}, raw)
}

func TestEncode_Defaults(t *testing.T) {
	a, err := Encode(KindAudio, &models.FilePayload{Data: []byte("x")})
	require.NoError(t, err)
	require.Equal(t, "audio/wav", a.MIMEType)
	require.True(t, strings.HasPrefix(a.Filename, "audio-"), a.Filename)

	p, err := Encode(KindPhoto, &models.FilePayload{Data: []byte("x")})
	require.NoError(t, err)
	require.Equal(t, "image/jpeg", p.MIMEType)
	require.True(t, strings.HasPrefix(p.Filename, "photo-"), p.Filename)
}

func TestEncode_EmptyPayloadFails(t *testing.T) {
	_, err := Encode(KindPhoto, nil)
	require.True(t, errors.Is(err, ErrEncodeFailed))

	_, err = Encode(KindPhoto, &models.FilePayload{})
	require.True(t, errors.Is(err, ErrEncodeFailed))
}
