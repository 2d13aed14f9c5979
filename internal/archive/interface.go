// Package archive persists completed sessions. Entries are immutable once
// saved except for their name and description.
package archive

import (
	"context"

	"github.com/yourname/clockwork/internal"
)

type SessionRepository interface {
	SaveSession(ctx context.Context, session *internal.Session) error
	ListSessions(ctx context.Context) ([]internal.Session, error)
	GetSession(ctx context.Context, id string) (*internal.Session, error)
	RenameSession(ctx context.Context, id, name, description string) error
	DeleteSession(ctx context.Context, id string) error
	ClearSessions(ctx context.Context) error
}
