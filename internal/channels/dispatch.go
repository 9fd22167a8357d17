package channels

import (
	"context"
	"sync"

	"github.com/normanking/sage/internal/agent"
	"github.com/normanking/sage/internal/logging"
)

// failureReply is sent when a turn fails outright.
const failureReply = "Sorry, I couldn't process that right now. Please try again in a moment."

// TurnHandler runs one utterance through the orchestrator. Satisfied by
// *agent.Manager.
type TurnHandler interface {
	HandleTurn(ctx context.Context, req *agent.TurnRequest) (agent.TurnResult, error)
}

// Dispatcher pulls inbound messages off the router and runs them through the
// turn handler. Messages on the same platform channel are processed in
// order; different channels proceed concurrently.
type Dispatcher struct {
	router  *Router
	handler TurnHandler
	logger  *logging.Logger

	mu      sync.Mutex
	workers map[string]chan *InboundMessage
	wg      sync.WaitGroup
}

// NewDispatcher wires the router's inbound stream to a turn handler.
func NewDispatcher(router *Router, handler TurnHandler, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Dispatcher{
		router:  router,
		handler: handler,
		logger:  logger.Component("dispatch"),
		workers: make(map[string]chan *InboundMessage),
	}
}

// Run consumes the router's inbound stream until the context is cancelled,
// then waits for in-flight turns to finish.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.shutdown()
			return
		case msg, ok := <-d.router.Incoming():
			if !ok {
				d.shutdown()
				return
			}
			d.route(ctx, msg)
		}
	}
}

// route hands the message to its channel's worker, spawning one on first use.
// One worker per platform channel keeps turns for a conversation serialized.
func (d *Dispatcher) route(ctx context.Context, msg *InboundMessage) {
	key := msg.Platform + "/" + msg.ChannelRef

	d.mu.Lock()
	queue, ok := d.workers[key]
	if !ok {
		queue = make(chan *InboundMessage, 16)
		d.workers[key] = queue
		d.wg.Add(1)
		go d.work(ctx, queue)
	}
	d.mu.Unlock()

	select {
	case queue <- msg:
	default:
		d.logger.Warn("conversation queue full, dropping message",
			"platform", msg.Platform,
			"channel", msg.ChannelRef,
		)
	}
}

func (d *Dispatcher) work(ctx context.Context, queue <-chan *InboundMessage) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-queue:
			if !ok {
				return
			}
			d.handle(ctx, msg)
		}
	}
}

// handle runs one turn and delivers the reply on the originating channel.
func (d *Dispatcher) handle(ctx context.Context, msg *InboundMessage) {
	result, err := d.handler.HandleTurn(ctx, &agent.TurnRequest{
		UserID:       msg.UserID,
		Utterance:    msg.Content,
		Conversation: agent.NewConversation(msg.Platform, msg.ChannelRef),
	})
	if err != nil {
		d.logger.Error("turn failed",
			"platform", msg.Platform,
			"channel", msg.ChannelRef,
			"error", err,
		)
		d.reply(msg, failureReply)
		return
	}

	switch res := result.(type) {
	case *agent.Response:
		d.reply(msg, res.Content)
	case *agent.CodeChangeAck:
		d.reply(msg, res.Message)
	default:
		d.logger.Error("unexpected turn result", "platform", msg.Platform)
	}
}

func (d *Dispatcher) reply(msg *InboundMessage, content string) {
	err := d.router.Send(msg.Platform, msg.ChannelRef, &OutboundMessage{
		Content: content,
		ReplyTo: msg.ID,
	})
	if err != nil {
		d.logger.Error("reply delivery failed",
			"platform", msg.Platform,
			"channel", msg.ChannelRef,
			"error", err,
		)
	}
}

func (d *Dispatcher) shutdown() {
	d.mu.Lock()
	for _, queue := range d.workers {
		close(queue)
	}
	d.workers = make(map[string]chan *InboundMessage)
	d.mu.Unlock()
	d.wg.Wait()
}
