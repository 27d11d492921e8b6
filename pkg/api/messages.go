package api

// User is a registered account.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	CreatedAt   int64  `json:"createdAt"`
}

type RegisterRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

type RegisterResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

// Household describes an opened household from the caller's viewpoint.
type Household struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	OwnerID   string `json:"ownerId"`
	CreatedAt int64  `json:"createdAt"`
	Role      string `json:"role"`
}

// CreateHouseholdRequest creates a household owned by the caller. Password
// is the caller's login password; their copy of the household key is
// wrapped under it.
type CreateHouseholdRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type CreateHouseholdResponse struct {
	Household *Household `json:"household"`
	SessionID string     `json:"sessionId"`
}

// OpenHouseholdRequest unlocks a household with the caller's password, or
// joins it with InviteCode when the caller is not a member yet.
type OpenHouseholdRequest struct {
	HouseholdID string `json:"householdId"`
	Password    string `json:"password"`
	InviteCode  string `json:"inviteCode,omitempty"`
}

type OpenHouseholdResponse struct {
	Household *Household `json:"household"`
	SessionID string     `json:"sessionId"`
}

type LoadStateRequest struct {
	SessionID string `json:"sessionId"`
}

type LoadStateResponse struct {
	Document map[string]any `json:"document"`
}

type SaveStateRequest struct {
	SessionID string         `json:"sessionId"`
	Document  map[string]any `json:"document"`
}

type SaveStateResponse struct{}

type CreateInviteRequest struct {
	SessionID   string `json:"sessionId"`
	TargetEmail string `json:"targetEmail"`
	// TTLSeconds of zero uses the server default.
	TTLSeconds int64 `json:"ttlSeconds,omitempty"`
	MaxUses    int   `json:"maxUses,omitempty"`
}

type CreateInviteResponse struct {
	Code string `json:"code"`
}

type ListMembersRequest struct {
	SessionID string `json:"sessionId"`
}

type ListMembersResponse struct {
	PrincipalIDs []string `json:"principalIds"`
}

type RemoveMemberRequest struct {
	SessionID   string `json:"sessionId"`
	PrincipalID string `json:"principalId"`
}

type RemoveMemberResponse struct{}

type CleanupInvitesRequest struct {
	SessionID string `json:"sessionId"`
}

type CleanupInvitesResponse struct {
	Removed int `json:"removed"`
}

type CloseSessionRequest struct {
	SessionID string `json:"sessionId"`
}

type CloseSessionResponse struct{}

func (r *OpenHouseholdRequest) GetHouseholdID() string { return r.HouseholdID }
func (r *LoadStateRequest) GetSessionID() string       { return r.SessionID }
func (r *SaveStateRequest) GetSessionID() string       { return r.SessionID }
func (r *CreateInviteRequest) GetSessionID() string    { return r.SessionID }
func (r *ListMembersRequest) GetSessionID() string     { return r.SessionID }
func (r *RemoveMemberRequest) GetSessionID() string    { return r.SessionID }
func (r *CleanupInvitesRequest) GetSessionID() string  { return r.SessionID }
func (r *CloseSessionRequest) GetSessionID() string    { return r.SessionID }
