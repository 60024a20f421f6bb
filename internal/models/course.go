package models

import "github.com/shopspring/decimal"

// Course carries the fee schedule used by checkouts.
type Course struct {
	ID                      string           `db:"id" json:"id"`
	Name                    string           `db:"name" json:"name"`
	EnrollmentFee           decimal.Decimal  `db:"enrollment_fee" json:"enrollment_fee"`
	DiscountedEnrollmentFee *decimal.Decimal `db:"discounted_enrollment_fee" json:"discounted_enrollment_fee,omitempty"`
	PreEnrollmentFee        decimal.Decimal  `db:"pre_enrollment_fee" json:"pre_enrollment_fee"`
}
