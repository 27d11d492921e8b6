package api

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

// AuthServiceName is the fully-qualified name of the AuthService service.
const AuthServiceName = "hearth.v1.AuthService"

const (
	AuthServiceRegisterProcedure = "/hearth.v1.AuthService/Register"
	AuthServiceLoginProcedure    = "/hearth.v1.AuthService/Login"
)

// AuthServiceHandler is implemented by the server.
type AuthServiceHandler interface {
	Register(context.Context, *connect.Request[RegisterRequest]) (*connect.Response[RegisterResponse], error)
	Login(context.Context, *connect.Request[LoginRequest]) (*connect.Response[LoginResponse], error)
}

// NewAuthServiceHandler builds an HTTP handler for svc and returns the
// path to mount it on.
func NewAuthServiceHandler(svc AuthServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	register := connect.NewUnaryHandler(AuthServiceRegisterProcedure, svc.Register, opts...)
	login := connect.NewUnaryHandler(AuthServiceLoginProcedure, svc.Login, opts...)

	return "/" + AuthServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case AuthServiceRegisterProcedure:
			register.ServeHTTP(w, r)
		case AuthServiceLoginProcedure:
			login.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// AuthServiceClient calls AuthService.
type AuthServiceClient struct {
	register *connect.Client[RegisterRequest, RegisterResponse]
	login    *connect.Client[LoginRequest, LoginResponse]
}

// NewAuthServiceClient creates a client for the server at baseURL.
func NewAuthServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *AuthServiceClient {
	opts = clientOptions(opts)
	return &AuthServiceClient{
		register: connect.NewClient[RegisterRequest, RegisterResponse](httpClient, baseURL+AuthServiceRegisterProcedure, opts...),
		login:    connect.NewClient[LoginRequest, LoginResponse](httpClient, baseURL+AuthServiceLoginProcedure, opts...),
	}
}

func (c *AuthServiceClient) Register(ctx context.Context, req *connect.Request[RegisterRequest]) (*connect.Response[RegisterResponse], error) {
	return c.register.CallUnary(ctx, req)
}

func (c *AuthServiceClient) Login(ctx context.Context, req *connect.Request[LoginRequest]) (*connect.Response[LoginResponse], error) {
	return c.login.CallUnary(ctx, req)
}
