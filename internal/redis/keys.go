package redisx

import (
	"fmt"

	"github.com/tably/tably-go/internal/domain"
)

const ns = "tably:v1"

func KeyTableCatalog() string {
	return ns + ":tables:active"
}

func KeySlotAvailability(slot domain.Slot) string {
	return fmt.Sprintf("%s:slot:%s:%s:availability", ns, slot.Date, slot.Time)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func ChannelSeatUpdates() string {
	return ns + ":seats:updates"
}
