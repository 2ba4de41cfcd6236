package authsession

import "context"

const (
	triggerManual    = "manual"
	triggerProactive = "proactive"
	triggerReactive  = "reactive"
)

type triggerContextKey struct{}

// WithTrigger labels refreshes started under ctx. The label appears in logs and audit
// events as "trigger". Unlabelled refreshes are reported as "manual".
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, triggerContextKey{}, trigger)
}

func triggerFromContext(ctx context.Context) string {
	if ctx == nil {
		return triggerManual
	}

	trigger, _ := ctx.Value(triggerContextKey{}).(string)
	if trigger == "" {
		return triggerManual
	}

	return trigger
}
