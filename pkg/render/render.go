// Package render defines the contract between the slipway harness and the
// server render bundle produced by a build.
//
// The server bundle is a standalone executable. Its main() hands a Renderer
// implementation to Serve, which exposes it over go-plugin's net/rpc
// protocol. The harness loads the bundle with Load and calls Render for
// every non-static request, passing the current build manifest so rendered
// pages reference the right fingerprinted assets.
//
// A minimal server bundle:
//
//	func main() {
//		render.Serve(myRenderer{})
//	}
package render

// Request carries the parts of an HTTP request a renderer needs.
type Request struct {
	// Method is the HTTP method.
	Method string

	// Path is the URL path.
	Path string

	// Query is the raw query string, without the leading "?".
	Query string

	// Host is the requested host.
	Host string

	// Headers holds selected request headers.
	Headers map[string]string
}

// Result is a rendered response.
type Result struct {
	// Status is the HTTP status code. Zero means 200.
	Status int

	// ContentType is the response content type.
	// Empty means "text/html; charset=utf-8".
	ContentType string

	// Body is the response body.
	Body []byte
}

// Renderer renders pages for the harness. Assets maps logical entry names
// to their fingerprinted paths; env is the build environment tag.
type Renderer interface {
	// Render produces the response for a request.
	Render(req *Request, assets map[string]string, env string) (*Result, error)

	// RenderError produces an error page for a request whose Render
	// failed. It receives the same assets and env so error pages stay
	// visually consistent with the current build. cause is the render
	// failure's message.
	RenderError(req *Request, assets map[string]string, env string, cause string) (*Result, error)
}
