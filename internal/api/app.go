package api

import (
	"github.com/yourname/clockwork/internal"
	"github.com/yourname/clockwork/internal/archive"
	"github.com/yourname/clockwork/internal/gateway"
	"github.com/yourname/clockwork/internal/images"
	"github.com/yourname/clockwork/internal/ledger"
	"github.com/yourname/clockwork/internal/service"
	"github.com/yourname/clockwork/internal/syncer"
)

// App is everything the control surface needs from the rest of the
// tracker. The UI boundary: whatever frontend drives this API gets the
// ledger, archive, auth and sync contracts through here.
type App interface {
	Logger() internal.Logger
	Ledger() *ledger.Ledger
	Archive() archive.SessionRepository
	Engine() *syncer.Engine
	Gateway() *gateway.Gateway
	Settings() *service.SettingsManager
	Images() *images.Store
	BackendOnline() bool
}
