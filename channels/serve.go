package channels

import (
	"context"
	"log/slog"
)

// Serve feeds every inbound message of ch to handler and sends the replies
// back through ch. Messages are handled one at a time, in arrival order. It
// returns when ctx is done or the channel stops listening.
func Serve(ctx context.Context, ch Channel, handler InboundHandler, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	msgs := ch.Listen(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				logger.Info("channels: listen closed", "platform", ch.Status().Platform)
				return
			}
			log := logger.With("channel", msg.ChannelName, "sender", msg.SenderID)

			responses, err := handler(ctx, msg)
			if err != nil {
				log.Error("channels: inbound handler failed", "error", err)
				continue
			}

			for _, resp := range responses {
				resp.ChannelName = msg.ChannelName
				resp.Direction = Outbound
				if err := ch.Send(ctx, resp); err != nil {
					log.Error("channels: send response failed",
						"recipient", resp.RecipientID, "error", err)
				}
			}
		}
	}
}
