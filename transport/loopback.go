package transport

// CommandSink consumes the engine's outgoing commands. Implementations
// must not block; the control tick cannot wait on a slow consumer.
type CommandSink interface {
	SendWrench(Wrench)
	SendMotion(MotionCommand)
}

// Loopback is an in-process bus carrying feedback toward the engine and
// commands away from it. Channels hold at most their buffer; when a
// consumer lags, the oldest message is dropped in favor of the newest,
// since only the latest value matters to a latest-value store.
type Loopback struct {
	feedback chan Feedback
	wrenches chan Wrench
	motions  chan MotionCommand
}

// NewLoopback returns a bus with the given per-channel buffer.
func NewLoopback(buffer int) *Loopback {
	if buffer <= 0 {
		buffer = 1
	}
	return &Loopback{
		feedback: make(chan Feedback, buffer),
		wrenches: make(chan Wrench, buffer),
		motions:  make(chan MotionCommand, buffer),
	}
}

// PublishFeedback delivers a feedback bundle toward the engine.
func (l *Loopback) PublishFeedback(fb Feedback) {
	sendLatest(l.feedback, fb)
}

// Feedback is the stream of device feedback for the engine to consume.
func (l *Loopback) Feedback() <-chan Feedback { return l.feedback }

// SendWrench implements CommandSink.
func (l *Loopback) SendWrench(w Wrench) {
	sendLatest(l.wrenches, w)
}

// SendMotion implements CommandSink.
func (l *Loopback) SendMotion(m MotionCommand) {
	sendLatest(l.motions, m)
}

// Wrenches is the stream of haptic commands leaving the engine.
func (l *Loopback) Wrenches() <-chan Wrench { return l.wrenches }

// Motions is the stream of robot motion commands leaving the engine.
func (l *Loopback) Motions() <-chan MotionCommand { return l.motions }

func sendLatest[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
		// Drop the oldest value, then retry once.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}
