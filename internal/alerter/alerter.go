package alerter

import (
	"runtime/debug"

	"github.com/nuvemsync/nuvemsync/pkg/logger"
)

// Alerter fans an operator alert out to every configured channel.
type Alerter struct {
	logger *logger.Logger

	TelegramAlerter *TelegramAlerter
	EmailAlerter    *EmailAlerter
}

func NewAlerter(logger *logger.Logger, telegram *TelegramAlerter, email *EmailAlerter) *Alerter {
	return &Alerter{logger: logger, TelegramAlerter: telegram, EmailAlerter: email}
}

// safeCall runs a function with panic recovery (synchronous, no goroutine spawning)
func (a *Alerter) safeCall(fn func(), context string) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Function panicked",
				"context", context,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

// Alert delivers an operator alert. A channel failure never escapes: alerts
// are best effort and must not take down a sync run.
func (a *Alerter) Alert(subject, message string) {
	a.logger.Warn("Operator alert: ", subject, " - ", message)

	if a.TelegramAlerter != nil {
		a.safeCall(func() { a.TelegramAlerter.Send(subject, message) }, "telegramAlert")
	}
	if a.EmailAlerter != nil {
		a.safeCall(func() { a.EmailAlerter.Send(subject, message) }, "emailAlert")
	}
}
