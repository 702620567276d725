package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/dimitarkovachev/partyplanner/internal/party"
)

const streamKeepAlive = 25 * time.Second

// streamSnapshots relays watch snapshots as server-sent events. Only the
// newest undelivered snapshot is kept, so a slow client skips intermediate
// states instead of queueing them. A permission error ends the stream.
func streamSnapshots[T, U any](h *Handler, c *gin.Context, event string, start func(context.Context, func([]T), func(error)) (func(), error), conv func(*T) U) {
	ctx := c.Request.Context()
	latest := make(chan []U, 1)
	failed := make(chan error, 1)

	cancel, err := start(ctx, func(items []T) {
		payload := mapAll(items, conv)
		// Reason: the watcher calls back from a single goroutine, so drain-then-send cannot block
		select {
		case <-latest:
		default:
		}
		latest <- payload
	}, func(err error) {
		select {
		case failed <- err:
		default:
		}
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	ticker := time.NewTicker(streamKeepAlive)
	defer ticker.Stop()

	c.Stream(func(io.Writer) bool {
		select {
		case items := <-latest:
			c.SSEvent(event, items)
			return true
		case err := <-failed:
			kind := party.KindOf(err)
			log.WithError(err).WithFields(log.Fields{"path": c.FullPath(), "kind": kind}).Warn("stream error")
			c.SSEvent("error", Error{Message: party.Message(err), Kind: string(kind)})
			return kind != party.KindPermission
		case <-ticker.C:
			c.SSEvent("ping", "")
			return true
		case <-ctx.Done():
			return false
		}
	})
}

func (h *Handler) StreamGuests(c *gin.Context, partyId string) {
	who, ok := h.caller(c)
	if !ok {
		return
	}
	streamSnapshots(h, c, "guests", func(ctx context.Context, onChange func([]party.Guest), onError func(error)) (func(), error) {
		return h.svc.WatchGuests(ctx, who, partyId, onChange, onError)
	}, toGuest)
}

func (h *Handler) StreamExpenses(c *gin.Context, partyId string) {
	who, ok := h.caller(c)
	if !ok {
		return
	}
	streamSnapshots(h, c, "expenses", func(ctx context.Context, onChange func([]party.Expense), onError func(error)) (func(), error) {
		return h.svc.WatchExpenses(ctx, who, partyId, onChange, onError)
	}, toExpense)
}

func (h *Handler) StreamPendingInvites(c *gin.Context) {
	who, ok := h.caller(c)
	if !ok {
		return
	}
	streamSnapshots(h, c, "invites", func(ctx context.Context, onChange func([]party.Invite), onError func(error)) (func(), error) {
		return h.svc.WatchPendingInvites(ctx, who, onChange, onError)
	}, toInvite)
}
