package render

import (
	"errors"
	"net/rpc"

	"github.com/hashicorp/go-plugin"
)

// PluginName is the dispense name of the renderer plugin.
const PluginName = "renderer"

// Handshake guards against launching an executable that is not a slipway
// render bundle.
var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "SLIPWAY_RENDER_PLUGIN",
	MagicCookieValue: "a3f9c2",
}

// Plugin wires a Renderer into go-plugin's net/rpc protocol.
type Plugin struct {
	// Impl is the renderer implementation, set on the serving side.
	Impl Renderer
}

func (p *Plugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &rpcServer{impl: p.Impl}, nil
}

func (p *Plugin) Client(_ *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &rpcClient{client: c}, nil
}

// Serve exposes a Renderer from a server bundle's main(). It blocks until
// the harness kills the plugin process.
func Serve(impl Renderer) {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]plugin.Plugin{
			PluginName: &Plugin{Impl: impl},
		},
	})
}

// renderArgs is the wire form of a render call.
type renderArgs struct {
	Req    *Request
	Assets map[string]string
	Env    string
	Cause  string
}

// rpcServer adapts a Renderer to net/rpc on the plugin side.
type rpcServer struct {
	impl Renderer
}

func (s *rpcServer) Render(args renderArgs, reply *Result) error {
	res, err := s.impl.Render(args.Req, args.Assets, args.Env)
	if err != nil {
		return err
	}
	if res != nil {
		*reply = *res
	}
	return nil
}

func (s *rpcServer) RenderError(args renderArgs, reply *Result) error {
	res, err := s.impl.RenderError(args.Req, args.Assets, args.Env, args.Cause)
	if err != nil {
		return err
	}
	if res != nil {
		*reply = *res
	}
	return nil
}

// rpcClient is the harness-side Renderer backed by the plugin connection.
type rpcClient struct {
	client *rpc.Client
}

func (c *rpcClient) Render(req *Request, assets map[string]string, env string) (*Result, error) {
	var reply Result
	err := c.client.Call("Plugin.Render", renderArgs{Req: req, Assets: assets, Env: env}, &reply)
	if err != nil {
		return nil, err
	}
	return &reply, nil
}

func (c *rpcClient) RenderError(req *Request, assets map[string]string, env string, cause string) (*Result, error) {
	var reply Result
	err := c.client.Call("Plugin.RenderError", renderArgs{Req: req, Assets: assets, Env: env, Cause: cause}, &reply)
	if err != nil {
		return nil, err
	}
	return &reply, nil
}

// ErrUnavailable is returned by loaders when no renderer is loaded yet.
var ErrUnavailable = errors.New("renderer unavailable")
