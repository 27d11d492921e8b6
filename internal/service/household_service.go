package service

import (
	"context"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/hearth/internal/auth"
	"github.com/mmynk/hearth/internal/household"
	"github.com/mmynk/hearth/internal/middleware"
	"github.com/mmynk/hearth/internal/models"
	"github.com/mmynk/hearth/internal/statecodec"
	"github.com/mmynk/hearth/pkg/api"
)

// HouseholdService implements the HouseholdService RPC interface. Open
// sessions live in the registry between calls and are addressed by
// session ID; a session ID is only honored for the user it was issued to.
type HouseholdService struct {
	manager       *household.Manager
	registry      *household.Registry
	authenticator auth.Authenticator
	logger        *slog.Logger
}

// NewHouseholdService creates a new household service.
func NewHouseholdService(manager *household.Manager, registry *household.Registry, authenticator auth.Authenticator, logger *slog.Logger) *HouseholdService {
	return &HouseholdService{
		manager:       manager,
		registry:      registry,
		authenticator: authenticator,
		logger:        logger,
	}
}

// principal re-verifies the caller's password; household keys are
// wrapped under it, so a valid token alone is not enough.
func (s *HouseholdService) principal(ctx context.Context, password string) (models.Principal, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return models.Principal{}, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	p, err := s.authenticator.Verify(ctx, userID, password)
	if err != nil {
		s.logger.Warn("Household credential rejected", "user_id", userID)
		return models.Principal{}, toConnectError(err)
	}
	return p, nil
}

func (s *HouseholdService) session(ctx context.Context, sessionID string) (*household.Session, error) {
	sess, err := s.registry.Get(sessionID, middleware.GetUserID(ctx))
	if err != nil {
		return nil, toConnectError(err)
	}
	return sess, nil
}

func (s *HouseholdService) fail(msg string, err error, attrs ...any) error {
	attrs = append(attrs, "error", err)
	s.logger.Warn(msg, attrs...)
	return toConnectError(err)
}

func toAPIHousehold(sess *household.Session) *api.Household {
	h := sess.Household()
	return &api.Household{
		ID:        h.ID,
		Name:      h.Name,
		OwnerID:   h.OwnerID,
		CreatedAt: h.CreatedAt,
		Role:      string(sess.Role()),
	}
}

// CreateHousehold creates a household owned by the caller and opens it.
func (s *HouseholdService) CreateHousehold(ctx context.Context, req *connect.Request[api.CreateHouseholdRequest]) (*connect.Response[api.CreateHouseholdResponse], error) {
	p, err := s.principal(ctx, req.Msg.Password)
	if err != nil {
		return nil, err
	}

	sess, err := s.manager.Create(ctx, p, req.Msg.Name)
	if err != nil {
		return nil, s.fail("CreateHousehold failed", err, "user_id", p.ID)
	}

	return connect.NewResponse(&api.CreateHouseholdResponse{
		Household: toAPIHousehold(sess),
		SessionID: s.registry.Add(sess),
	}), nil
}

// OpenHousehold unlocks a household for the caller, redeeming an invite
// if they are not a member yet.
func (s *HouseholdService) OpenHousehold(ctx context.Context, req *connect.Request[api.OpenHouseholdRequest]) (*connect.Response[api.OpenHouseholdResponse], error) {
	if req.Msg.HouseholdID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, household.ErrInvalidArgument)
	}
	p, err := s.principal(ctx, req.Msg.Password)
	if err != nil {
		return nil, err
	}

	sess, err := s.manager.Open(ctx, p, req.Msg.HouseholdID, req.Msg.InviteCode)
	if err != nil {
		return nil, s.fail("OpenHousehold failed", err, "user_id", p.ID, "household_id", req.Msg.HouseholdID)
	}

	return connect.NewResponse(&api.OpenHouseholdResponse{
		Household: toAPIHousehold(sess),
		SessionID: s.registry.Add(sess),
	}), nil
}

// LoadState returns the decrypted household document.
func (s *HouseholdService) LoadState(ctx context.Context, req *connect.Request[api.LoadStateRequest]) (*connect.Response[api.LoadStateResponse], error) {
	sess, err := s.session(ctx, req.Msg.SessionID)
	if err != nil {
		return nil, err
	}

	doc, err := sess.Load(ctx)
	if err != nil {
		return nil, s.fail("LoadState failed", err, "household_id", sess.HouseholdID())
	}
	return connect.NewResponse(&api.LoadStateResponse{Document: doc}), nil
}

// SaveState encrypts and stores the household document, replacing the
// previous one.
func (s *HouseholdService) SaveState(ctx context.Context, req *connect.Request[api.SaveStateRequest]) (*connect.Response[api.SaveStateResponse], error) {
	sess, err := s.session(ctx, req.Msg.SessionID)
	if err != nil {
		return nil, err
	}

	doc := statecodec.Document(req.Msg.Document)
	if doc == nil {
		doc = statecodec.Document{}
	}
	if err := sess.Save(ctx, doc); err != nil {
		return nil, s.fail("SaveState failed", err, "household_id", sess.HouseholdID())
	}
	return connect.NewResponse(&api.SaveStateResponse{}), nil
}

// CreateInvite issues an invite for the target email and returns its code.
func (s *HouseholdService) CreateInvite(ctx context.Context, req *connect.Request[api.CreateInviteRequest]) (*connect.Response[api.CreateInviteResponse], error) {
	if req.Msg.TargetEmail == "" || req.Msg.TTLSeconds < 0 || req.Msg.MaxUses < 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, household.ErrInvalidArgument)
	}
	sess, err := s.session(ctx, req.Msg.SessionID)
	if err != nil {
		return nil, err
	}

	ttl := time.Duration(req.Msg.TTLSeconds) * time.Second
	code, err := sess.Invite(ctx, req.Msg.TargetEmail, ttl, req.Msg.MaxUses)
	if err != nil {
		return nil, s.fail("CreateInvite failed", err, "household_id", sess.HouseholdID())
	}
	return connect.NewResponse(&api.CreateInviteResponse{Code: code}), nil
}

// ListMembers lists the household's members.
func (s *HouseholdService) ListMembers(ctx context.Context, req *connect.Request[api.ListMembersRequest]) (*connect.Response[api.ListMembersResponse], error) {
	sess, err := s.session(ctx, req.Msg.SessionID)
	if err != nil {
		return nil, err
	}

	ids, err := sess.Members(ctx)
	if err != nil {
		return nil, s.fail("ListMembers failed", err, "household_id", sess.HouseholdID())
	}
	return connect.NewResponse(&api.ListMembersResponse{PrincipalIDs: ids}), nil
}

// RemoveMember revokes a member's key record and closes their open
// sessions on the household. Owner only.
func (s *HouseholdService) RemoveMember(ctx context.Context, req *connect.Request[api.RemoveMemberRequest]) (*connect.Response[api.RemoveMemberResponse], error) {
	sess, err := s.session(ctx, req.Msg.SessionID)
	if err != nil {
		return nil, err
	}

	if err := sess.RemoveMember(ctx, req.Msg.PrincipalID); err != nil {
		return nil, s.fail("RemoveMember failed", err, "household_id", sess.HouseholdID(), "principal_id", req.Msg.PrincipalID)
	}
	closed := s.registry.CloseFor(sess.HouseholdID(), req.Msg.PrincipalID)
	s.logger.Info("Member removed", "household_id", sess.HouseholdID(), "principal_id", req.Msg.PrincipalID, "sessions_closed", closed)
	return connect.NewResponse(&api.RemoveMemberResponse{}), nil
}

// CleanupInvites deletes expired and used-up invites. Owner only.
func (s *HouseholdService) CleanupInvites(ctx context.Context, req *connect.Request[api.CleanupInvitesRequest]) (*connect.Response[api.CleanupInvitesResponse], error) {
	sess, err := s.session(ctx, req.Msg.SessionID)
	if err != nil {
		return nil, err
	}

	removed, err := sess.CleanupInvites(ctx)
	if err != nil {
		return nil, s.fail("CleanupInvites failed", err, "household_id", sess.HouseholdID())
	}
	return connect.NewResponse(&api.CleanupInvitesResponse{Removed: removed}), nil
}

// CloseSession wipes the session's key and forgets it.
func (s *HouseholdService) CloseSession(ctx context.Context, req *connect.Request[api.CloseSessionRequest]) (*connect.Response[api.CloseSessionResponse], error) {
	if err := s.registry.Remove(req.Msg.SessionID, middleware.GetUserID(ctx)); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.CloseSessionResponse{}), nil
}
