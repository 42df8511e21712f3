package service

import (
	"fmt"

	"vipearn/internal/domain"
)

type renderFunc func(d map[string]interface{}) (title, body string)

var templates = map[string]renderFunc{
	domain.TemplateReferralBonus: func(d map[string]interface{}) (string, string) {
		return "Referral bonus received",
			fmt.Sprintf("You earned %v USDT as a level %v referral bonus on a %v USDT purchase.", d["amount"], d["level"], d["source_amount"])
	},
	domain.TemplateSessionCompleted: func(d map[string]interface{}) (string, string) {
		return "Earning session completed",
			fmt.Sprintf("Your session finished and %v USDT was added to your wallet.", d["amount"])
	},
	domain.TemplateVipPurchased: func(d map[string]interface{}) (string, string) {
		if up, _ := d["is_upgrade"].(bool); up {
			return "VIP upgraded", fmt.Sprintf("You are now %v. %v USDT was charged for the upgrade.", d["level"], d["charge"])
		}
		return "VIP activated", fmt.Sprintf("Welcome to %v. %v USDT was charged.", d["level"], d["charge"])
	},
	domain.TemplateDepositConfirmed: func(d map[string]interface{}) (string, string) {
		return "Deposit confirmed",
			fmt.Sprintf("Your deposit of %v USDT on %v was credited.", d["amount"], d["network"])
	},
	domain.TemplateDepositRejected: func(d map[string]interface{}) (string, string) {
		return "Deposit rejected", fmt.Sprintf("Your deposit could not be credited: %v.", d["reason"])
	},
	domain.TemplateWithdrawalCompleted: func(d map[string]interface{}) (string, string) {
		return "Withdrawal sent",
			fmt.Sprintf("%v USDT was sent to %v on %v.", d["amount"], d["address"], d["network"])
	},
	domain.TemplateWithdrawalRejected: func(d map[string]interface{}) (string, string) {
		return "Withdrawal rejected",
			fmt.Sprintf("Your withdrawal of %v USDT was rejected: %v.", d["amount"], d["reason"])
	},
	domain.TemplateBalanceAdjusted: func(d map[string]interface{}) (string, string) {
		return "Balance adjusted",
			fmt.Sprintf("Your balance was adjusted by %v USDT. %v", d["amount"], d["note"])
	},
}

// render returns the title and body for a template. Unknown templates fall
// back to the template name so nothing is silently dropped.
func render(template string, data map[string]interface{}) (string, string) {
	if f, ok := templates[template]; ok {
		return f(data)
	}
	return template, ""
}
