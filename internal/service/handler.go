package service

import (
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/hearth/internal/auth"
	"github.com/mmynk/hearth/internal/middleware"
	"github.com/mmynk/hearth/pkg/api"
)

// Register mounts both services on mux behind the logging and auth
// interceptors. Register and Login are the only unauthenticated calls.
func Register(mux *http.ServeMux, authSvc *AuthService, householdSvc *HouseholdService, jwtManager *auth.JWTManager) {
	interceptors := connect.WithInterceptors(
		middleware.LoggingInterceptor(),
		middleware.RequireAuth(jwtManager,
			api.AuthServiceRegisterProcedure,
			api.AuthServiceLoginProcedure,
		),
	)

	authPath, authHandler := api.NewAuthServiceHandler(authSvc, interceptors)
	mux.Handle(authPath, authHandler)

	householdPath, householdHandler := api.NewHouseholdServiceHandler(householdSvc, interceptors)
	mux.Handle(householdPath, householdHandler)
}
