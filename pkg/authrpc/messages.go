// Package authrpc holds the wire messages of the identity service's RPC
// surface. Both the server and the client bind against these types, so the
// two processes can never drift apart on field sets.
//
// Failures never cross this boundary as structured errors: every response
// carries an IsValid flag (or a zero payload) and nothing else.
package authrpc

const (
	PathValidateToken      = "/rpc/validate-token"
	PathRegisterUser       = "/rpc/register-user"
	PathLoginUser          = "/rpc/login-user"
	PathRefreshAccessToken = "/rpc/refresh-access-token"
	PathLogoutUser         = "/rpc/logout-user"
	PathModifyPassword     = "/rpc/modify-password"
)

type TokenRequest struct {
	AccessToken string `json:"accessToken"`
}

type TokenResponse struct {
	IsValid bool   `json:"isValid"`
	UserID  uint   `json:"userId"`
	Role    string `json:"role"`
}

type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type UserResponse struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type LoginUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginUserResponse struct {
	IsValid      bool   `json:"isValid"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type RefreshTokenResponse struct {
	IsValid     bool   `json:"isValid"`
	AccessToken string `json:"accessToken"`
}

type ModifyPasswordRequest struct {
	AccessToken string `json:"accessToken"`
	Password    string `json:"password"`
}

type ModifyPasswordResponse struct {
	IsValid bool   `json:"isValid"`
	Status  string `json:"status"`
}
