// Package wa bootstraps the WhatsApp client: device store, pairing,
// connection retries and log bridging.
package wa

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/pollwatch/internal/filex"
	"github.com/dmitrijs2005/pollwatch/internal/logging"
)

// SessionDSN builds the modernc sqlite DSN for the session file at path.
func SessionDSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
}

// newContainer is a seam for tests.
var newContainer = func(ctx context.Context, dialect, dsn string, log waLog.Logger) (deviceContainer, error) {
	c, err := sqlstore.New(ctx, dialect, dsn, log)
	if err != nil {
		return nil, err
	}
	return c, nil
}

type deviceContainer interface {
	GetFirstDevice(ctx context.Context) (*store.Device, error)
	Close() error
}

// Session owns the device store and the client built on it.
type Session struct {
	Client    *whatsmeow.Client
	container deviceContainer
}

// OpenSession opens (or creates) the sqlite session store at path and builds
// a client for its first device. A fresh store yields an unpaired device.
func OpenSession(ctx context.Context, path string, l logging.Logger) (*Session, error) {
	if dir := filepath.Dir(path); dir != "." && !strings.HasPrefix(path, ":memory:") {
		if _, err := filex.EnsureDir(dir); err != nil {
			return nil, fmt.Errorf("session dir: %w", err)
		}
	}

	container, err := newContainer(ctx, "sqlite", SessionDSN(path), NewLogger(l, "wa_store"))
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		_ = container.Close()
		return nil, fmt.Errorf("load device: %w", err)
	}

	client := whatsmeow.NewClient(device, NewLogger(l, "wa_client"))
	client.EnableAutoReconnect = false

	return &Session{Client: client, container: container}, nil
}

// Self returns the JID of the paired account, or the empty JID.
func (s *Session) Self() func() types.JID {
	return func() types.JID {
		if s.Client == nil || s.Client.Store == nil || s.Client.Store.ID == nil {
			return types.EmptyJID
		}
		return s.Client.Store.ID.ToNonAD()
	}
}

func (s *Session) Close() error {
	if s.Client != nil {
		s.Client.Disconnect()
	}
	if s.container == nil {
		return nil
	}
	return s.container.Close()
}
