package rewards

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Redemption policy constants.
const (
	// MinimumRedemptionPoints is the smallest redeemable amount per request.
	MinimumRedemptionPoints Points = 1000
	// PointsPerCashUnit is the fixed conversion rate: 100 points = 1 peso.
	PointsPerCashUnit int64 = 100
)

// Philippine mobile payout format: 09xxxxxxxxx or +639xxxxxxxxx.
var payoutNumberPattern = regexp.MustCompile(`^(09|\+639)\d{9}$`)

// Field names a redemption input field in a FieldError.
type Field string

const (
	FieldPayoutAccountID Field = "payout_account_id"
	FieldPayoutName      Field = "payout_name"
	FieldPayoutNumber    Field = "payout_number"
	FieldPointsToRedeem  Field = "points_to_redeem"
)

// FieldCode is a stable machine-readable validation failure code.
type FieldCode string

const (
	CodeRequired            FieldCode = "required"
	CodeFormat              FieldCode = "format"
	CodeNotPositive         FieldCode = "not_positive"
	CodeBelowMinimum        FieldCode = "below_minimum"
	CodeInsufficientBalance FieldCode = "insufficient_balance"
)

// FieldError describes one violated validation rule. Available is populated
// only for CodeInsufficientBalance.
type FieldError struct {
	Field     Field
	Code      FieldCode
	Message   string
	Available Points
}

// RawRedemptionInput is the unvalidated form payload as entered by the user.
type RawRedemptionInput struct {
	PayoutAccountID string
	PayoutName      string
	PayoutNumber    string
	PointsToRedeem  string
}

// NormalizedRedemption is a validated redemption with its computed payout.
// CashAmount retains full precision; round only for display.
type NormalizedRedemption struct {
	PayoutAccountID string
	PayoutName      string
	PayoutNumber    string
	PointsToRedeem  Points
	CashAmount      decimal.Decimal
}

// ValidationResult is either a normalized redemption or the complete list of
// violated rules. All failing fields are reported together.
type ValidationResult struct {
	redemption  NormalizedRedemption
	fieldErrors []FieldError
}

// OK reports whether every rule passed.
func (result ValidationResult) OK() bool {
	return len(result.fieldErrors) == 0
}

// Redemption returns the normalized redemption; valid only when OK.
func (result ValidationResult) Redemption() NormalizedRedemption {
	return result.redemption
}

// FieldErrors returns the violated rules in validation order.
func (result ValidationResult) FieldErrors() []FieldError {
	return result.fieldErrors
}

// ValidateRedemption applies every redemption rule against the latest known
// redeemable balance. It performs no I/O; the upstream store re-checks the
// balance at commit time and remains authoritative.
func ValidateRedemption(input RawRedemptionInput, available Points) ValidationResult {
	var fieldErrors []FieldError

	accountID := strings.TrimSpace(input.PayoutAccountID)
	if accountID == "" {
		fieldErrors = append(fieldErrors, FieldError{
			Field:   FieldPayoutAccountID,
			Code:    CodeRequired,
			Message: "payout account id is required",
		})
	}

	name := strings.TrimSpace(input.PayoutName)
	if name == "" {
		fieldErrors = append(fieldErrors, FieldError{
			Field:   FieldPayoutName,
			Code:    CodeRequired,
			Message: "payout name is required",
		})
	}

	number := strings.TrimSpace(input.PayoutNumber)
	switch {
	case number == "":
		fieldErrors = append(fieldErrors, FieldError{
			Field:   FieldPayoutNumber,
			Code:    CodeRequired,
			Message: "payout number is required",
		})
	case !payoutNumberPattern.MatchString(number):
		fieldErrors = append(fieldErrors, FieldError{
			Field:   FieldPayoutNumber,
			Code:    CodeFormat,
			Message: "payout number must look like 09123456789 or +639123456789",
		})
	}

	points, pointsErr := parsePointsToRedeem(input.PointsToRedeem, available)
	if pointsErr != nil {
		fieldErrors = append(fieldErrors, *pointsErr)
	}

	if len(fieldErrors) > 0 {
		return ValidationResult{fieldErrors: fieldErrors}
	}
	return ValidationResult{
		redemption: NormalizedRedemption{
			PayoutAccountID: accountID,
			PayoutName:      name,
			PayoutNumber:    number,
			PointsToRedeem:  points,
			CashAmount:      CashValue(points),
		},
	}
}

func parsePointsToRedeem(raw string, available Points) (Points, *FieldError) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, &FieldError{
			Field:   FieldPointsToRedeem,
			Code:    CodeRequired,
			Message: "points to redeem is required",
		}
	}
	parsed, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || parsed <= 0 {
		return 0, &FieldError{
			Field:   FieldPointsToRedeem,
			Code:    CodeNotPositive,
			Message: "points to redeem must be a positive whole number",
		}
	}
	points := Points(parsed)
	if points < MinimumRedemptionPoints {
		return 0, &FieldError{
			Field:   FieldPointsToRedeem,
			Code:    CodeBelowMinimum,
			Message: fmt.Sprintf("minimum redemption is %d points", MinimumRedemptionPoints),
		}
	}
	if points > available {
		return 0, &FieldError{
			Field:     FieldPointsToRedeem,
			Code:      CodeInsufficientBalance,
			Message:   fmt.Sprintf("only %d points available", available),
			Available: available,
		}
	}
	return points, nil
}

// CashValue converts points to their cash equivalent at the fixed rate,
// at full precision.
func CashValue(points Points) decimal.Decimal {
	return decimal.NewFromInt(points.Int64()).Div(decimal.NewFromInt(PointsPerCashUnit))
}
