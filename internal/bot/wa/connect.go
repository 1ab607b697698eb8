package wa

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mdp/qrterminal/v3"
	"github.com/sethvargo/go-retry"
	"go.mau.fi/whatsmeow"
	"golang.org/x/term"

	"github.com/dmitrijs2005/pollwatch/internal/logging"
)

// ErrPairingTimeout is returned when no QR code was scanned in time.
var ErrPairingTimeout = errors.New("qr pairing timed out")

// Conn is the part of *whatsmeow.Client the bootstrap drives.
type Conn interface {
	Connect() error
	IsConnected() bool
	GetQRChannel(ctx context.Context) (<-chan whatsmeow.QRChannelItem, error)
}

// isTerminal is a seam for tests.
var isTerminal = func(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Pair connects an unpaired client and renders login QR codes to out until
// the phone scans one. Codes are drawn as half-block QR art on terminals and
// printed raw otherwise.
func Pair(ctx context.Context, c Conn, out io.Writer, l logging.Logger) error {
	qrChan, err := c.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("qr channel: %w", err)
	}

	if err := c.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	for evt := range qrChan {
		switch evt.Event {
		case "code":
			l.Info(ctx, "scan the QR code with WhatsApp to link the bot", "expires_in", evt.Timeout)
			if isTerminal(out) {
				qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, out)
			} else {
				fmt.Fprintln(out, evt.Code)
			}
		case "success":
			l.Info(ctx, "device paired")
			return nil
		case "timeout":
			return ErrPairingTimeout
		default:
			if evt.Error != nil {
				return fmt.Errorf("pairing %s: %w", evt.Event, evt.Error)
			}
			l.Warn(ctx, "pairing event", "event", evt.Event)
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return errors.New("qr channel closed before pairing finished")
}

// Backoff describes reconnect pacing.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

func (b Backoff) build() retry.Backoff {
	base := b.Base
	if base <= 0 {
		base = time.Second
	}
	next := retry.NewExponential(base)
	if b.Max > 0 {
		next = retry.WithCappedDuration(b.Max, next)
	}
	return next
}

// Connect dials until the client is connected or ctx ends.
func Connect(ctx context.Context, c Conn, b Backoff, l logging.Logger) error {
	attempt := 0
	return retry.Do(ctx, b.build(), func(ctx context.Context) error {
		if c.IsConnected() {
			return nil
		}
		attempt++
		if err := c.Connect(); err != nil {
			l.Warn(ctx, "whatsapp connect failed, retrying", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}
