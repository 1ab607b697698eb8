package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"

	"github.com/dmitrijs2005/pollwatch/internal/common"
	"github.com/dmitrijs2005/pollwatch/internal/logging"
)

func TestDetectAndExtension(t *testing.T) {
	tests := []struct {
		name     string
		msg      *waE2E.Message
		kind     Kind
		ext      string
		mimetype string
	}{
		{"audio", &waE2E.Message{AudioMessage: &waE2E.AudioMessage{Mimetype: proto.String("audio/ogg; codecs=opus")}}, Audio, "mp3", "audio/ogg; codecs=opus"},
		{"video", &waE2E.Message{VideoMessage: &waE2E.VideoMessage{}}, Video, "mp4", "video/mp4"},
		{"image", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{}}, Image, "jpg", "image/jpeg"},
		{"sticker", &waE2E.Message{StickerMessage: &waE2E.StickerMessage{}}, Sticker, "webp", "image/webp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Detect(tt.msg)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, a.Kind)
			assert.Equal(t, tt.ext, Extension(a.Kind))
			assert.Equal(t, tt.mimetype, a.ContentType)
			assert.NotNil(t, a.Message)
		})
	}
}

func TestDetect_Unsupported(t *testing.T) {
	_, err := Detect(&waE2E.Message{Conversation: proto.String("hello")})
	assert.ErrorIs(t, err, common.ErrUnsupportedMedia)

	_, err = Detect(nil)
	assert.ErrorIs(t, err, common.ErrUnsupportedMedia)
}

func TestExtension_DefaultsToJPG(t *testing.T) {
	assert.Equal(t, "jpg", Extension(Kind("document")))
	assert.Equal(t, "3EB0ABC.mp4", Key("3EB0ABC", Video))
}

type fakeDownloader struct {
	data []byte
	err  error
	got  whatsmeow.DownloadableMessage
}

func (f *fakeDownloader) Download(_ context.Context, m whatsmeow.DownloadableMessage) ([]byte, error) {
	f.got = m
	return f.data, f.err
}

type memSink struct {
	items map[string][]byte
	types map[string]string
	err   error
}

func (s *memSink) Put(_ context.Context, key string, data []byte, contentType string) error {
	if s.err != nil {
		return s.err
	}
	if s.items == nil {
		s.items, s.types = map[string][]byte{}, map[string]string{}
	}
	s.items[key] = data
	s.types[key] = contentType
	return nil
}

func TestSaver_Save(t *testing.T) {
	img := &waE2E.ImageMessage{Mimetype: proto.String("image/png")}
	dl := &fakeDownloader{data: []byte("png-bytes")}
	sink := &memSink{}
	s := NewSaver(dl, sink, logging.Nop(), nil)

	key, err := s.Save(context.Background(), types.MessageInfo{ID: "3EB0IMG"}, &waE2E.Message{ImageMessage: img})
	require.NoError(t, err)

	assert.Equal(t, "3EB0IMG.jpg", key)
	assert.Same(t, img, dl.got)
	assert.Equal(t, []byte("png-bytes"), sink.items[key])
	assert.Equal(t, "image/png", sink.types[key])
}

func TestSaver_Failures(t *testing.T) {
	msg := &waE2E.Message{StickerMessage: &waE2E.StickerMessage{}}

	s := NewSaver(&fakeDownloader{err: errors.New("media conn expired")}, &memSink{}, logging.Nop(), nil)
	_, err := s.Save(context.Background(), types.MessageInfo{ID: "x"}, msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "download x.webp")

	s = NewSaver(&fakeDownloader{data: []byte("d")}, &memSink{err: errors.New("read-only fs")}, logging.Nop(), nil)
	_, err = s.Save(context.Background(), types.MessageInfo{ID: "x"}, msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store x.webp")

	_, err = s.Save(context.Background(), types.MessageInfo{ID: "x"}, &waE2E.Message{})
	assert.ErrorIs(t, err, common.ErrUnsupportedMedia)
}

func TestFileSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data", "media")

	sink, err := NewFileSink(dir)
	require.NoError(t, err)

	require.NoError(t, sink.Put(context.Background(), "3EB0AUD.mp3", []byte("ogg"), "audio/ogg"))

	got, err := os.ReadFile(filepath.Join(dir, "3EB0AUD.mp3"))
	require.NoError(t, err)
	assert.Equal(t, []byte("ogg"), got)

	err = sink.Put(context.Background(), "../escape.jpg", []byte("x"), "")
	assert.Error(t, err)
}
