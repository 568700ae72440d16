package identity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/LeeRoiii/Image-Vault/internal/apperror"
)

// MinPasswordLength is the shortest password accepted for sign-up and reset.
const MinPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateSignUp checks a sign-up form. The first failing rule wins.
func ValidateSignUp(email, password, confirm string) error {
	if !emailPattern.MatchString(NormalizeEmail(email)) {
		return apperror.Validation("email", "Invalid email format.")
	}
	if err := ValidatePassword(password); err != nil {
		return err
	}
	if password != confirm {
		return apperror.Validation("confirmPassword", "Passwords do not match.")
	}
	return nil
}

// ValidatePassword enforces the minimum password length.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return apperror.Validation("password", fmt.Sprintf("Password must be at least %d characters.", MinPasswordLength))
	}
	return nil
}

// classify marks failures to reach a backend as ErrServiceUnavailable so the
// views can tell them apart from rejected credentials.
func classify(err error) error {
	if err == nil || errors.Is(err, ErrServiceUnavailable) {
		return err
	}
	if isNetworkError(err) {
		return fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
	}
	return err
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
