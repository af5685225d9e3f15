package bus

import (
	"fmt"

	"github.com/google/uuid"
)

// Inbound returns the fixed fan-in channel a service consumes from.
// Every caller of service X publishes requests to X_OUT.
func Inbound(name string) string {
	return name + "_OUT"
}

// ReplyChannel mints a private, globally unique reply channel for one
// client instance of the named service. Responders publish the correlated
// reply to exactly this channel.
func ReplyChannel(name string) string {
	return fmt.Sprintf("%s_RET_%s", name, uuid.NewString())
}
