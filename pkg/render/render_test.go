package render

import (
	"errors"
	"strings"
	"testing"
)

// fakeRenderer renders a fixed page referencing the main asset.
type fakeRenderer struct {
	failRender bool
	failError  bool
}

func (f fakeRenderer) Render(req *Request, assets map[string]string, env string) (*Result, error) {
	if f.failRender {
		return nil, errors.New("render blew up")
	}
	body := "<html>" + env + " " + assets["main"] + " " + req.Path + "</html>"
	return &Result{Body: []byte(body)}, nil
}

func (f fakeRenderer) RenderError(req *Request, assets map[string]string, env string, cause string) (*Result, error) {
	if f.failError {
		return nil, errors.New("error page blew up")
	}
	return &Result{Status: 500, Body: []byte("error: " + cause)}, nil
}

func TestRPCServerRender(t *testing.T) {
	s := &rpcServer{impl: fakeRenderer{}}

	var reply Result
	err := s.Render(renderArgs{
		Req:    &Request{Path: "/about"},
		Assets: map[string]string{"main": "main.abc123.js"},
		Env:    "dev",
	}, &reply)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	body := string(reply.Body)
	for _, want := range []string{"dev", "main.abc123.js", "/about"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q: %s", want, body)
		}
	}
}

func TestRPCServerRenderFailure(t *testing.T) {
	s := &rpcServer{impl: fakeRenderer{failRender: true}}

	var reply Result
	if err := s.Render(renderArgs{Req: &Request{}}, &reply); err == nil {
		t.Fatal("render failure must propagate over the wire")
	}
}

func TestRPCServerRenderError(t *testing.T) {
	s := &rpcServer{impl: fakeRenderer{}}

	var reply Result
	err := s.RenderError(renderArgs{
		Req:   &Request{Path: "/"},
		Cause: "render blew up",
	}, &reply)
	if err != nil {
		t.Fatalf("RenderError: %v", err)
	}
	if reply.Status != 500 {
		t.Errorf("Status = %d, want 500", reply.Status)
	}
	if !strings.Contains(string(reply.Body), "render blew up") {
		t.Errorf("body = %s", reply.Body)
	}
}
