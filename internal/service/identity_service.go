package service

import (
	"context"
	"fmt"
	"strings"

	"banking-services/internal/core/ports"

	"github.com/rs/zerolog"
)

// IdentityServiceImpl answers the identity gate: a customer is authenticated
// when at least one account is on file for them.
type IdentityServiceImpl struct {
	directory ports.AccountDirectory
	log       zerolog.Logger
}

// NewIdentityService creates an identity service backed by directory.
func NewIdentityService(directory ports.AccountDirectory, log zerolog.Logger) *IdentityServiceImpl {
	return &IdentityServiceImpl{
		directory: directory,
		log:       log.With().Str("component", "identity_service").Logger(),
	}
}

// Authenticate reports whether customerID is known. An error means the answer is unknown.
func (s *IdentityServiceImpl) Authenticate(ctx context.Context, customerID string) (bool, error) {
	if strings.TrimSpace(customerID) == "" {
		return false, nil
	}
	exists, err := s.directory.CustomerExists(ctx, customerID)
	if err != nil {
		return false, fmt.Errorf("lookup customer: %w", err)
	}
	s.log.Debug().Str("customer_id", customerID).Bool("authenticated", exists).Msg("customer checked")
	return exists, nil
}

var _ ports.IdentityService = (*IdentityServiceImpl)(nil)
