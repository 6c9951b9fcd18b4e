package aether

import "github.com/synnaxlabs/synnax-sub025/pkg/schema"

// Methods maps method names to their implementations.
type Methods map[string]Method

// Method is a remotely callable function. Args and Result may be nil, in which
// case any value is accepted.
type Method struct {
	Args   schema.Schema
	Result schema.Schema
	Call   func(ctx *Context, args any) (any, error)
}

func (m Method) invoke(ctx *Context, raw []byte) (any, error) {
	args, err := schema.Decode(raw)
	if err != nil {
		return nil, err
	}
	if m.Args != nil {
		if args, err = m.Args.Validate(args); err != nil {
			return nil, err
		}
	}
	result, err := m.Call(ctx, args)
	if err != nil {
		return nil, err
	}
	if m.Result != nil {
		return m.Result.Validate(result)
	}
	return result, nil
}
