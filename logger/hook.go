package logger

import (
	"fmt"

	"github.com/rs/zerolog"
)

// ContextHook enriches records with the correlation values stored with
// ContextWith in the event's context (zerolog Event.Ctx or Context.Ctx).
type ContextHook struct{}

func (ContextHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}
	for _, field := range contextFields {
		if v := ctx.Value(contextKey(field)); v != nil {
			e.Str(field, fmt.Sprintf("%v", v))
		}
	}
}
