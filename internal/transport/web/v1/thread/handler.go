package thread

import (
	"log"

	"github.com/advent259141/Astrbook/internal/forum"
)

// Handler serves the /v1/threads surface. All state goes through the
// coordinator.
type Handler struct {
	Log   *log.Logger
	Forum *forum.Service
}
