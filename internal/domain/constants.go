package domain

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Transaction types. Every balance-affecting event carries one of these.
const (
	TxTypeDeposit         = "DEPOSIT"
	TxTypeWithdrawal      = "WITHDRAWAL"
	TxTypeReferralBonus   = "REFERRAL_BONUS"
	TxTypeWalletGrowth    = "WALLET_GROWTH"
	TxTypeVipEarnings     = "VIP_EARNINGS"
	TxTypeVipPayment      = "VIP_PAYMENT"
	TxTypeAdminAdjustment = "ADMIN_ADJUSTMENT"
)

const (
	SessionStatusActive    = "ACTIVE"
	SessionStatusCompleted = "COMPLETED"
)

// Session surfaces. Both run the same lifecycle with different durations.
const (
	SurfaceTask = "task"
	SurfaceVip  = "vip"
)

const (
	DepositStatusPending   = "PENDING"
	DepositStatusConfirmed = "CONFIRMED"
	DepositStatusRejected  = "REJECTED"
	DepositStatusExpired   = "EXPIRED"
)

const (
	WithdrawalStatusPending   = "PENDING"
	WithdrawalStatusCompleted = "COMPLETED"
	WithdrawalStatusRejected  = "REJECTED"
)

const (
	NetworkBSC      = "BSC"
	NetworkEthereum = "ETHEREUM"
	NetworkPolygon  = "POLYGON"
	NetworkTron     = "TRON"
)

// Networks lists supported chains in lookup order.
var Networks = []string{NetworkBSC, NetworkEthereum, NetworkPolygon, NetworkTron}

// System setting keys (admin-tunable).
const (
	SettingReferralRateLevel1   = "referral_rate_level_1"
	SettingReferralRateLevel2   = "referral_rate_level_2"
	SettingReferralRateLevel3   = "referral_rate_level_3"
	SettingSessionCooldownHours = "session_cooldown_hours"
	SettingMinWithdrawal        = "min_withdrawal"
	SettingMinDeposit           = "min_deposit"
)

// MaxReferralLevels bounds the up-referrer walk.
const MaxReferralLevels = 3

// Notification templates.
const (
	TemplateReferralBonus       = "referral_bonus"
	TemplateSessionCompleted    = "session_completed"
	TemplateVipPurchased        = "vip_purchased"
	TemplateDepositConfirmed    = "deposit_confirmed"
	TemplateDepositRejected     = "deposit_rejected"
	TemplateWithdrawalCompleted = "withdrawal_completed"
	TemplateWithdrawalRejected  = "withdrawal_rejected"
	TemplateBalanceAdjusted     = "balance_adjusted"
)

// MoneyPlaces is the scale money amounts are rounded to before persisting.
const MoneyPlaces = 8
