package llm

import (
	"context"
	"time"

	"github.com/joseph-ayodele/reckon/constants"
	"github.com/joseph-ayodele/reckon/internal/common"
)

// Prompt is the instruction text for one model call. It lives only for that call.
type Prompt struct {
	Flow constants.Flow
	Text string
}

// Gateway sends a prompt to a text model and returns its raw reply.
// Implementations make exactly one outbound attempt and fail with
// common.ErrGatewayUnavailable or common.ErrGatewayError.
type Gateway interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// GatewayFunc adapts a function to Gateway.
type GatewayFunc func(ctx context.Context, p Prompt) (string, error)

func (f GatewayFunc) Generate(ctx context.Context, p Prompt) (string, error) {
	return f(ctx, p)
}

// GatewayObserver receives one observation per gateway call.
type GatewayObserver interface {
	ObserveGatewayCall(provider, outcome string, elapsed time.Duration)
}

type instrumented struct {
	next     Gateway
	provider string
	obs      GatewayObserver
}

// Instrument reports every call made through g to obs. A nil obs returns g unchanged.
func Instrument(g Gateway, provider string, obs GatewayObserver) Gateway {
	if obs == nil {
		return g
	}
	return &instrumented{next: g, provider: provider, obs: obs}
}

func (i *instrumented) Generate(ctx context.Context, p Prompt) (string, error) {
	start := time.Now()
	out, err := i.next.Generate(ctx, p)
	outcome := "ok"
	if err != nil {
		outcome = common.ErrorKind(err)
	}
	i.obs.ObserveGatewayCall(i.provider, outcome, time.Since(start))
	return out, err
}
