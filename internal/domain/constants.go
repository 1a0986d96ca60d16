package domain

// Ledger entry reasons.
const (
	ReasonPurchase      = "PURCHASE"
	ReasonRedemption    = "REDEMPTION"
	ReasonReferralBonus = "REFERRAL_BONUS"
	ReasonAdjustment    = "ADJUSTMENT"
)

const (
	RoleAdmin    = "ADMIN"
	RoleCustomer = "CUSTOMER"
)
