package bus

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/shurvir/hailo-robot/actuator"
	"github.com/shurvir/hailo-robot/dispatch"
)

// Dispatcher runs instructions. It is implemented by dispatch.Dispatcher.
type Dispatcher interface {
	Handle(ctx context.Context, text string) dispatch.Reply
	HandleVoice(ctx context.Context, audio []byte) dispatch.Reply
}

// Router turns inbound events into dispatcher calls and sends the replies back
type Router struct {
	dispatcher Dispatcher
	messenger  dispatch.Messenger
	vocabulary []actuator.Action
	// upper bound for one instruction, zero for none
	Timeout time.Duration
}

// NewRouter creates a router. vocabulary is listed by the help command.
func NewRouter(d Dispatcher, m dispatch.Messenger, vocabulary []actuator.Action) *Router {
	return &Router{dispatcher: d, messenger: m, vocabulary: vocabulary, Timeout: 2 * time.Minute}
}

// HandleEvent implements Handler
func (r *Router) HandleEvent(ctx context.Context, ev Event) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var reply dispatch.Reply
	switch ev.Kind {
	case KindVoice:
		reply = r.dispatcher.HandleVoice(ctx, ev.Audio)
	case KindCommand:
		command := strings.TrimPrefix(strings.TrimSpace(ev.Text), "/")
		if command == "help" || command == "start" {
			reply = dispatch.Reply{Text: r.Help()}
		} else {
			reply = r.dispatcher.Handle(ctx, command)
		}
	default:
		reply = r.dispatcher.Handle(ctx, ev.Text)
	}

	if err := dispatch.Deliver(ctx, r.messenger, ev.ChatID, reply); err != nil {
		log.Errorf("Reply to chat %d failed: %v", ev.ChatID, err)
	}
}

// Help lists what the robot understands
func (r *Router) Help() string {
	actions := lo.Map(r.vocabulary, func(a actuator.Action, _ int) string { return "/" + string(a) })
	return fmt.Sprintf("Arm actions: %s\n"+
		"Also: pick up <object>, drop off <left|right>, find <object>, track <object> [#id], stop, "+
		"describe, snapshot, video. Anything else is chat.",
		strings.Join(actions, " "))
}
