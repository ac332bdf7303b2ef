package gateway

import (
	"encoding/json"

	"github.com/nats-io/nats.go"

	"campuschat/chat"
	"campuschat/logger"
	"campuschat/tools/errs"
)

// Bridge publishes delivered frames to NATS so sibling gateway nodes (or
// any interested consumer, e.g. a notification worker) can observe
// deliveries. Fire-and-forget: a delivery never fails because the bridge
// is down.
type Bridge struct {
	nc     *nats.Conn
	prefix string
}

// NewBridge connects to NATS. Subjects are "<prefix>.user.<userId>".
func NewBridge(url, prefix, name string) (*Bridge, error) {
	if prefix == "" {
		prefix = "campuschat.deliver"
	}
	nc, err := nats.Connect(url, nats.Name(name))
	if err != nil {
		return nil, errs.ErrConnection.WrapMsg("nats connect", "url", url, "err", err.Error())
	}
	return &Bridge{nc: nc, prefix: prefix}, nil
}

// PublishDelivery mirrors one delivered frame onto the user's subject.
func (b *Bridge) PublishDelivery(userID string, frame chat.Frame) {
	if b == nil {
		return
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	if err := b.nc.Publish(b.prefix+".user."+userID, data); err != nil {
		logger.Warnf("[bridge] publish failed user=%s err=%v", userID, err)
	}
}

func (b *Bridge) Close() {
	if b != nil && b.nc != nil {
		b.nc.Close()
	}
}
