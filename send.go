package so5

import "time"

// Send delivers payload to mbox immediately, synchronously, in the caller's
// thread. payload is wrapped in a fresh *Message; use SendSignal for
// zero-payload signal types.
func Send(mbox Mbox, payload any) error {
	msg := NewMessage(payload)
	return mbox.DoDeliverMessage(msg.TypeTag(), msg, 0)
}

// SendSignal delivers a signal (a type embedding Signal) to mbox.
func SendSignal[S signalMarker](mbox Mbox) error {
	var sample S
	msg := NewMessage(sample)
	return mbox.DoDeliverMessage(msg.TypeTag(), msg, 0)
}

// SendDelayed schedules payload for delivery to mbox once, after pause.
// Returns a handle the caller can Cancel before it fires. A negative pause
// is rejected.
func SendDelayed(env *Environment, mbox Mbox, payload any, pause time.Duration) (TimerHandle, error) {
	if pause < 0 {
		return nil, newErr("send_delayed", KindInvariantViolation, ErrNegativeTimerArg)
	}
	msg := NewMessage(payload)
	return env.timers.ScheduleSingle(pause, func() {
		_ = mbox.DoDeliverMessage(msg.TypeTag(), msg, 0)
	}), nil
}

// SendPeriodic schedules payload for repeated delivery to mbox: once after
// pause, then every period thereafter, until the returned handle is
// cancelled. Mutable payloads are rejected: a single *Message instance
// would otherwise be handed to multiple deliveries while potentially still
// being processed by an earlier one.
func SendPeriodic(env *Environment, mbox Mbox, payload any, pause, period time.Duration) (TimerHandle, error) {
	if pause < 0 || period < 0 {
		return nil, newErr("send_periodic", KindInvariantViolation, ErrNegativeTimerArg)
	}
	if _, ok := payload.(Mutable); ok {
		return nil, newErr("send_periodic", KindMutabilityViolation, ErrMutablePeriodicTimer)
	}
	tag := TypeTagOf(payload)
	return env.timers.SchedulePeriodic(pause, period, func() {
		msg := NewMessage(payload)
		_ = mbox.DoDeliverMessage(tag, msg, 0)
	}), nil
}
