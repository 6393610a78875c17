package storefront

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/storefront"
	"github.com/storefront/backend/internal/infrastructure/auth"
	"go.uber.org/zap"
)

// Admin errors
var (
	ErrAdminDisabled  = shared.NewDomainError("ADMIN_DISABLED", "Admin access is not configured")
	ErrBadCredentials = shared.NewDomainError("UNAUTHORIZED", "Invalid username or password")
	ErrSessionInvalid = shared.NewDomainError("UNAUTHORIZED", "Invalid or expired token")
	ErrSessionRevoked = shared.NewDomainError("UNAUTHORIZED", "Token has been revoked")
	ErrCutoffRequired = shared.NewDomainError("INVALID_INPUT", "before must be a past RFC3339 timestamp")
)

// LoginInput is the admin login request
type LoginInput struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

// ListOrdersInput filters the admin order list
type ListOrdersInput struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir"`
	Search   string `form:"search"`
}

// CleanupResult reports a bulk delete
type CleanupResult struct {
	Deleted int64     `json:"deleted"`
	Before  time.Time `json:"before"`
}

// AdminService handles admin sessions and order cleanup
type AdminService struct {
	orders      storefront.OrderRepository
	credentials *auth.Credentials
	tokens      *auth.JWTService
	blacklist   auth.TokenBlacklist
	validate    *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewAdminService creates an AdminService. blacklist may be nil, in which
// case Logout is a no-op.
func NewAdminService(
	orders storefront.OrderRepository,
	credentials *auth.Credentials,
	tokens *auth.JWTService,
	blacklist auth.TokenBlacklist,
	logger *zap.Logger,
) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminService{
		orders:      orders,
		credentials: credentials,
		tokens:      tokens,
		blacklist:   blacklist,
		validate:    newValidator(),
		logger:      logger,
		now:         time.Now,
	}
}

// Login checks the admin credentials and issues a token
func (s *AdminService) Login(ctx context.Context, in LoginInput) (*auth.Token, error) {
	if s.credentials == nil || !s.credentials.Configured() {
		return nil, ErrAdminDisabled
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	if err := s.credentials.Verify(in.Username, in.Password); err != nil {
		s.logger.Warn("Admin login failed", zap.String("username", in.Username))
		return nil, ErrBadCredentials
	}
	token, err := s.tokens.Issue(in.Username)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	s.logger.Info("Admin logged in", zap.String("username", in.Username))
	return token, nil
}

// Authenticate validates a bearer token and rejects revoked ones
func (s *AdminService) Authenticate(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, ErrSessionInvalid
	}
	if s.blacklist != nil {
		revoked, err := s.blacklist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check token blacklist: %w", err)
		}
		if revoked {
			return nil, ErrSessionRevoked
		}
	}
	return claims, nil
}

// Logout revokes the token for the rest of its lifetime
func (s *AdminService) Logout(ctx context.Context, claims *auth.Claims) error {
	if s.blacklist == nil || claims == nil {
		return nil
	}
	ttl := s.tokens.RemainingTTL(claims)
	if ttl <= 0 {
		return nil
	}
	if err := s.blacklist.Revoke(ctx, claims.ID, ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// ListOrders returns a page of orders, newest first by default
func (s *AdminService) ListOrders(ctx context.Context, in ListOrdersInput) (*shared.Paginated[OrderResponse], error) {
	filter := shared.DefaultFilter()
	if in.Page > 0 {
		filter.Page = in.Page
	}
	if in.PageSize > 0 {
		filter.PageSize = min(in.PageSize, 100)
	}
	if in.OrderBy != "" {
		filter.OrderBy = in.OrderBy
	}
	if in.OrderDir != "" {
		filter.OrderDir = in.OrderDir
	}
	filter.Search = in.Search

	orders, total, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := make([]OrderResponse, len(orders))
	for i := range orders {
		items[i] = ToOrderResponse(&orders[i])
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}

// GetOrder returns one order
func (s *AdminService) GetOrder(ctx context.Context, id uuid.UUID) (*OrderResponse, error) {
	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToOrderResponse(o)
	return &resp, nil
}

// DeleteOrder removes one order
func (s *AdminService) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	if err := s.orders.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Order deleted", zap.String("order_id", id.String()))
	return nil
}

// DeleteOrdersBefore removes every order created before the cutoff
func (s *AdminService) DeleteOrdersBefore(ctx context.Context, before time.Time) (*CleanupResult, error) {
	if before.IsZero() || before.After(s.now()) {
		return nil, ErrCutoffRequired
	}
	n, err := s.orders.DeleteBefore(ctx, before.UTC())
	if err != nil {
		return nil, err
	}
	s.logger.Info("Orders cleaned up",
		zap.Time("before", before.UTC()),
		zap.Int64("deleted", n))
	return &CleanupResult{Deleted: n, Before: before.UTC()}, nil
}

// IsAuthError reports whether err should be answered with 401
func IsAuthError(err error) bool {
	return errors.Is(err, shared.ErrUnauthorized)
}
