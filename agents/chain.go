package agents

import (
	"context"
	"errors"

	"github.com/polychat-ai/polychat/components"
	"github.com/polychat-ai/polychat/schema"
)

// Chain pipes the output of each agent into the next one. It backs the
// hybrid model strategy where a reasoning model drafts and a chat model
// polishes the final answer.
type Chain[I schema.Schema, O schema.Schema] struct {
	agents []ChainableAgent
}

// NewChain returns a new Chain instance
func NewChain[I schema.Schema, O schema.Schema](agents ...ChainableAgent) *Chain[I, O] {
	return &Chain[I, O]{
		agents: agents,
	}
}

// Run runs the chained agents with the given user input synchronously.
func (c *Chain[I, O]) Run(ctx context.Context, input *I, output *O) ([]components.ApiResponse, error) {
	apiRespList := make([]components.ApiResponse, 0, len(c.agents))
	var (
		in  any = input
		out any
	)
	for _, agent := range c.agents {
		apiResp := new(components.ApiResponse)
		ret, err := agent.RunForChain(ctx, in, apiResp)
		if err != nil {
			return apiRespList, err
		}
		in = ret
		out = ret
		apiRespList = append(apiRespList, *apiResp)
	}
	outO, ok := out.(*O)
	if !ok {
		return apiRespList, errors.New("invalid output schema")
	}
	*output = *outO
	return apiRespList, nil
}

// RunForChain lets a Chain itself take part in an outer chain.
func (c *Chain[I, O]) RunForChain(ctx context.Context, input any, apiResp *components.ApiResponse) (any, error) {
	in, ok := input.(*I)
	if !ok {
		return nil, errors.New("invalid input schema")
	}
	out := new(O)
	apiRespList, err := c.Run(ctx, in, out)
	if err != nil {
		return nil, err
	}
	for _, v := range apiRespList {
		if v.Usage == nil {
			continue
		}
		if apiResp.Usage == nil {
			apiResp.Usage = new(components.ApiUsage)
		}
		apiResp.Usage.Merge(v.Usage)
	}
	return out, nil
}

// Name implements IAgent
func (c *Chain[I, O]) Name() string {
	return "Chain"
}
