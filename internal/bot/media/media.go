// Package media downloads audio, video, image and sticker attachments from
// allowed groups and stores them as <messageID>.<ext> in a Sink.
package media

import (
	"context"
	"fmt"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"

	"github.com/dmitrijs2005/pollwatch/internal/bot/metrics"
	"github.com/dmitrijs2005/pollwatch/internal/common"
	"github.com/dmitrijs2005/pollwatch/internal/logging"
)

type Kind string

const (
	Audio   Kind = "audio"
	Video   Kind = "video"
	Image   Kind = "image"
	Sticker Kind = "sticker"
)

// Extension returns the file extension media of kind is stored under.
func Extension(k Kind) string {
	switch k {
	case Audio:
		return "mp3"
	case Video:
		return "mp4"
	case Sticker:
		return "webp"
	default:
		return "jpg"
	}
}

var defaultContentType = map[Kind]string{
	Audio:   "audio/mpeg",
	Video:   "video/mp4",
	Image:   "image/jpeg",
	Sticker: "image/webp",
}

// Attachment is a downloadable media part of a message.
type Attachment struct {
	Kind        Kind
	ContentType string
	Message     whatsmeow.DownloadableMessage
}

// Detect returns the supported attachment of msg, checked in the order
// audio, video, image, sticker, or common.ErrUnsupportedMedia.
func Detect(msg *waE2E.Message) (*Attachment, error) {
	switch {
	case msg.GetAudioMessage() != nil:
		m := msg.GetAudioMessage()
		return attachment(Audio, m.GetMimetype(), m), nil
	case msg.GetVideoMessage() != nil:
		m := msg.GetVideoMessage()
		return attachment(Video, m.GetMimetype(), m), nil
	case msg.GetImageMessage() != nil:
		m := msg.GetImageMessage()
		return attachment(Image, m.GetMimetype(), m), nil
	case msg.GetStickerMessage() != nil:
		m := msg.GetStickerMessage()
		return attachment(Sticker, m.GetMimetype(), m), nil
	}
	return nil, common.ErrUnsupportedMedia
}

func attachment(k Kind, mimetype string, m whatsmeow.DownloadableMessage) *Attachment {
	if mimetype == "" {
		mimetype = defaultContentType[k]
	}
	return &Attachment{Kind: k, ContentType: mimetype, Message: m}
}

// Key is the storage key of the attachment of message id.
func Key(id types.MessageID, k Kind) string {
	return fmt.Sprintf("%s.%s", id, Extension(k))
}

// Downloader fetches and decrypts media. *whatsmeow.Client satisfies it.
type Downloader interface {
	Download(ctx context.Context, msg whatsmeow.DownloadableMessage) ([]byte, error)
}

// Sink persists downloaded media.
type Sink interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

type Saver struct {
	downloader Downloader
	sink       Sink
	logger     logging.Logger
	metrics    *metrics.Metrics
}

func NewSaver(d Downloader, s Sink, l logging.Logger, m *metrics.Metrics) *Saver {
	return &Saver{downloader: d, sink: s, logger: l.With("module", "media"), metrics: m}
}

// Save downloads the attachment of msg and stores it. It returns the storage
// key, or common.ErrUnsupportedMedia when msg has no supported attachment.
func (s *Saver) Save(ctx context.Context, info types.MessageInfo, msg *waE2E.Message) (string, error) {
	a, err := Detect(msg)
	if err != nil {
		return "", err
	}

	key := Key(info.ID, a.Kind)

	data, err := s.downloader.Download(ctx, a.Message)
	if err != nil {
		s.metrics.MediaResult(string(a.Kind), "download_failed")
		return "", fmt.Errorf("download %s: %w", key, err)
	}

	if err := s.sink.Put(ctx, key, data, a.ContentType); err != nil {
		s.metrics.MediaResult(string(a.Kind), "store_failed")
		return "", fmt.Errorf("store %s: %w", key, err)
	}

	s.metrics.MediaResult(string(a.Kind), "saved")
	s.logger.Info(ctx, "media saved", "key", key, "kind", a.Kind, "bytes", len(data))
	return key, nil
}
