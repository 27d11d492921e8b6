package api

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

// HouseholdServiceName is the fully-qualified name of the HouseholdService service.
const HouseholdServiceName = "hearth.v1.HouseholdService"

const (
	HouseholdServiceCreateHouseholdProcedure = "/hearth.v1.HouseholdService/CreateHousehold"
	HouseholdServiceOpenHouseholdProcedure   = "/hearth.v1.HouseholdService/OpenHousehold"
	HouseholdServiceLoadStateProcedure       = "/hearth.v1.HouseholdService/LoadState"
	HouseholdServiceSaveStateProcedure       = "/hearth.v1.HouseholdService/SaveState"
	HouseholdServiceCreateInviteProcedure    = "/hearth.v1.HouseholdService/CreateInvite"
	HouseholdServiceListMembersProcedure     = "/hearth.v1.HouseholdService/ListMembers"
	HouseholdServiceRemoveMemberProcedure    = "/hearth.v1.HouseholdService/RemoveMember"
	HouseholdServiceCleanupInvitesProcedure  = "/hearth.v1.HouseholdService/CleanupInvites"
	HouseholdServiceCloseSessionProcedure    = "/hearth.v1.HouseholdService/CloseSession"
)

// HouseholdServiceHandler is implemented by the server.
type HouseholdServiceHandler interface {
	CreateHousehold(context.Context, *connect.Request[CreateHouseholdRequest]) (*connect.Response[CreateHouseholdResponse], error)
	OpenHousehold(context.Context, *connect.Request[OpenHouseholdRequest]) (*connect.Response[OpenHouseholdResponse], error)
	LoadState(context.Context, *connect.Request[LoadStateRequest]) (*connect.Response[LoadStateResponse], error)
	SaveState(context.Context, *connect.Request[SaveStateRequest]) (*connect.Response[SaveStateResponse], error)
	CreateInvite(context.Context, *connect.Request[CreateInviteRequest]) (*connect.Response[CreateInviteResponse], error)
	ListMembers(context.Context, *connect.Request[ListMembersRequest]) (*connect.Response[ListMembersResponse], error)
	RemoveMember(context.Context, *connect.Request[RemoveMemberRequest]) (*connect.Response[RemoveMemberResponse], error)
	CleanupInvites(context.Context, *connect.Request[CleanupInvitesRequest]) (*connect.Response[CleanupInvitesResponse], error)
	CloseSession(context.Context, *connect.Request[CloseSessionRequest]) (*connect.Response[CloseSessionResponse], error)
}

// NewHouseholdServiceHandler builds an HTTP handler for svc and returns the
// path to mount it on.
func NewHouseholdServiceHandler(svc HouseholdServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	handlers := map[string]http.Handler{
		HouseholdServiceCreateHouseholdProcedure: connect.NewUnaryHandler(HouseholdServiceCreateHouseholdProcedure, svc.CreateHousehold, opts...),
		HouseholdServiceOpenHouseholdProcedure:   connect.NewUnaryHandler(HouseholdServiceOpenHouseholdProcedure, svc.OpenHousehold, opts...),
		HouseholdServiceLoadStateProcedure:       connect.NewUnaryHandler(HouseholdServiceLoadStateProcedure, svc.LoadState, opts...),
		HouseholdServiceSaveStateProcedure:       connect.NewUnaryHandler(HouseholdServiceSaveStateProcedure, svc.SaveState, opts...),
		HouseholdServiceCreateInviteProcedure:    connect.NewUnaryHandler(HouseholdServiceCreateInviteProcedure, svc.CreateInvite, opts...),
		HouseholdServiceListMembersProcedure:     connect.NewUnaryHandler(HouseholdServiceListMembersProcedure, svc.ListMembers, opts...),
		HouseholdServiceRemoveMemberProcedure:    connect.NewUnaryHandler(HouseholdServiceRemoveMemberProcedure, svc.RemoveMember, opts...),
		HouseholdServiceCleanupInvitesProcedure:  connect.NewUnaryHandler(HouseholdServiceCleanupInvitesProcedure, svc.CleanupInvites, opts...),
		HouseholdServiceCloseSessionProcedure:    connect.NewUnaryHandler(HouseholdServiceCloseSessionProcedure, svc.CloseSession, opts...),
	}

	return "/" + HouseholdServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := handlers[r.URL.Path]; ok {
			h.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
}

// HouseholdServiceClient calls HouseholdService.
type HouseholdServiceClient struct {
	createHousehold *connect.Client[CreateHouseholdRequest, CreateHouseholdResponse]
	openHousehold   *connect.Client[OpenHouseholdRequest, OpenHouseholdResponse]
	loadState       *connect.Client[LoadStateRequest, LoadStateResponse]
	saveState       *connect.Client[SaveStateRequest, SaveStateResponse]
	createInvite    *connect.Client[CreateInviteRequest, CreateInviteResponse]
	listMembers     *connect.Client[ListMembersRequest, ListMembersResponse]
	removeMember    *connect.Client[RemoveMemberRequest, RemoveMemberResponse]
	cleanupInvites  *connect.Client[CleanupInvitesRequest, CleanupInvitesResponse]
	closeSession    *connect.Client[CloseSessionRequest, CloseSessionResponse]
}

// NewHouseholdServiceClient creates a client for the server at baseURL.
func NewHouseholdServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *HouseholdServiceClient {
	opts = clientOptions(opts)
	return &HouseholdServiceClient{
		createHousehold: connect.NewClient[CreateHouseholdRequest, CreateHouseholdResponse](httpClient, baseURL+HouseholdServiceCreateHouseholdProcedure, opts...),
		openHousehold:   connect.NewClient[OpenHouseholdRequest, OpenHouseholdResponse](httpClient, baseURL+HouseholdServiceOpenHouseholdProcedure, opts...),
		loadState:       connect.NewClient[LoadStateRequest, LoadStateResponse](httpClient, baseURL+HouseholdServiceLoadStateProcedure, opts...),
		saveState:       connect.NewClient[SaveStateRequest, SaveStateResponse](httpClient, baseURL+HouseholdServiceSaveStateProcedure, opts...),
		createInvite:    connect.NewClient[CreateInviteRequest, CreateInviteResponse](httpClient, baseURL+HouseholdServiceCreateInviteProcedure, opts...),
		listMembers:     connect.NewClient[ListMembersRequest, ListMembersResponse](httpClient, baseURL+HouseholdServiceListMembersProcedure, opts...),
		removeMember:    connect.NewClient[RemoveMemberRequest, RemoveMemberResponse](httpClient, baseURL+HouseholdServiceRemoveMemberProcedure, opts...),
		cleanupInvites:  connect.NewClient[CleanupInvitesRequest, CleanupInvitesResponse](httpClient, baseURL+HouseholdServiceCleanupInvitesProcedure, opts...),
		closeSession:    connect.NewClient[CloseSessionRequest, CloseSessionResponse](httpClient, baseURL+HouseholdServiceCloseSessionProcedure, opts...),
	}
}

func (c *HouseholdServiceClient) CreateHousehold(ctx context.Context, req *connect.Request[CreateHouseholdRequest]) (*connect.Response[CreateHouseholdResponse], error) {
	return c.createHousehold.CallUnary(ctx, req)
}

func (c *HouseholdServiceClient) OpenHousehold(ctx context.Context, req *connect.Request[OpenHouseholdRequest]) (*connect.Response[OpenHouseholdResponse], error) {
	return c.openHousehold.CallUnary(ctx, req)
}

func (c *HouseholdServiceClient) LoadState(ctx context.Context, req *connect.Request[LoadStateRequest]) (*connect.Response[LoadStateResponse], error) {
	return c.loadState.CallUnary(ctx, req)
}

func (c *HouseholdServiceClient) SaveState(ctx context.Context, req *connect.Request[SaveStateRequest]) (*connect.Response[SaveStateResponse], error) {
	return c.saveState.CallUnary(ctx, req)
}

func (c *HouseholdServiceClient) CreateInvite(ctx context.Context, req *connect.Request[CreateInviteRequest]) (*connect.Response[CreateInviteResponse], error) {
	return c.createInvite.CallUnary(ctx, req)
}

func (c *HouseholdServiceClient) ListMembers(ctx context.Context, req *connect.Request[ListMembersRequest]) (*connect.Response[ListMembersResponse], error) {
	return c.listMembers.CallUnary(ctx, req)
}

func (c *HouseholdServiceClient) RemoveMember(ctx context.Context, req *connect.Request[RemoveMemberRequest]) (*connect.Response[RemoveMemberResponse], error) {
	return c.removeMember.CallUnary(ctx, req)
}

func (c *HouseholdServiceClient) CleanupInvites(ctx context.Context, req *connect.Request[CleanupInvitesRequest]) (*connect.Response[CleanupInvitesResponse], error) {
	return c.cleanupInvites.CallUnary(ctx, req)
}

func (c *HouseholdServiceClient) CloseSession(ctx context.Context, req *connect.Request[CloseSessionRequest]) (*connect.Response[CloseSessionResponse], error) {
	return c.closeSession.CallUnary(ctx, req)
}
