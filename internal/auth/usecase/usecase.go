package usecase

import (
	"context"

	authdomain "dailyrush-backend/internal/auth/domain"
	authdto "dailyrush-backend/internal/auth/dto"
)

// AuthUsecase defines the interface for account and token business logic.
// Every sign-in path resolves to the same provider-agnostic identity
// tuple the sync core consumes.
type AuthUsecase interface {
	// Register creates a first-party account and signs it in.
	Register(req *authdto.RegisterRequest) (*authdto.TokenResponse, error)

	// Login signs a first-party account in.
	Login(req *authdto.LoginRequest) (*authdto.TokenResponse, error)

	// GoogleSignIn verifies a Google ID token and signs the account in,
	// creating it on first contact. The Google subject claim becomes the
	// account id and therefore the storage namespace.
	GoogleSignIn(idToken string) (*authdto.TokenResponse, error)

	// RefreshToken rotates a refresh token into a new token pair.
	RefreshToken(refreshToken string) (*authdto.TokenResponse, error)

	// Logout invalidates a refresh token.
	Logout(refreshToken string) error

	// ValidateToken resolves an access token to its account.
	ValidateToken(tokenString string) (*authdomain.User, error)

	// CurrentIdentity resolves an access token straight to the identity
	// tuple, for startup identity resolution.
	CurrentIdentity(ctx context.Context, credential string) (*authdomain.Identity, error)
}
