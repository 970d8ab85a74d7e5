// Package plugin serves and consumes policy validators as out-of-process
// go-plugin binaries over net/rpc.
package plugin

import (
	"context"
	"net/rpc"

	"github.com/felixgeelhaar/taskforge/pkg/domain/policy"
	goplugin "github.com/hashicorp/go-plugin"
)

// ValidatorName is the key a validator binary registers itself under.
const ValidatorName = "validator"

// ValidatorPlugin is the goplugin.Plugin wrapper for a policy.Validator.
type ValidatorPlugin struct {
	Impl policy.Validator
}

func (p *ValidatorPlugin) Server(*goplugin.MuxBroker) (interface{}, error) {
	return &ValidatorRPCServer{Impl: p.Impl}, nil
}

func (p *ValidatorPlugin) Client(b *goplugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &ValidatorRPCClient{Client: c}, nil
}

type ValidateArgs struct {
	Content string
	Purpose string
}

// ValidatorRPCClient runs on the host side and satisfies policy.Validator.
type ValidatorRPCClient struct{ Client *rpc.Client }

// Validate issues the call asynchronously so the caller's deadline is honoured
// even if the plugin process hangs.
func (c *ValidatorRPCClient) Validate(ctx context.Context, content, purpose string) (policy.Verdict, error) {
	var resp policy.Verdict
	call := c.Client.Go("Plugin.Validate", &ValidateArgs{Content: content, Purpose: purpose}, &resp, make(chan *rpc.Call, 1))
	select {
	case <-ctx.Done():
		return policy.Verdict{}, ctx.Err()
	case done := <-call.Done:
		if done.Error != nil {
			return policy.Verdict{}, done.Error
		}
		return resp, nil
	}
}

// ValidatorRPCServer runs inside the plugin binary.
type ValidatorRPCServer struct{ Impl policy.Validator }

func (s *ValidatorRPCServer) Validate(args *ValidateArgs, resp *policy.Verdict) error {
	verdict, err := s.Impl.Validate(context.Background(), args.Content, args.Purpose)
	if err != nil {
		return err
	}
	*resp = verdict
	return nil
}
