package render

import (
	"os/exec"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
)

// Handle owns a loaded render bundle: the Renderer plus the plugin client
// whose process must be killed when the handle is replaced or the harness
// shuts down.
type Handle struct {
	// Renderer is the dispensed render function.
	Renderer Renderer

	client *plugin.Client
}

// Close kills the plugin process. Safe to call more than once.
func (h *Handle) Close() {
	if h.client != nil {
		h.client.Kill()
	}
}

// Load launches the server bundle at path and dispenses its Renderer.
func Load(path string, logger hclog.Logger) (*Handle, error) {
	if logger == nil {
		logger = hclog.New(&hclog.LoggerOptions{
			Name:  "slipway-render",
			Level: hclog.Warn,
		})
	}

	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]plugin.Plugin{
			PluginName: &Plugin{},
		},
		Cmd:    exec.Command(path),
		Logger: logger,
		AllowedProtocols: []plugin.Protocol{
			plugin.ProtocolNetRPC,
		},
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, err
	}

	raw, err := rpcClient.Dispense(PluginName)
	if err != nil {
		client.Kill()
		return nil, err
	}

	renderer, ok := raw.(Renderer)
	if !ok {
		client.Kill()
		return nil, ErrUnavailable
	}

	return &Handle{Renderer: renderer, client: client}, nil
}
