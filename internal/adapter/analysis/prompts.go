package analysis

import (
	"fmt"
	"strings"

	"payment-intent-engine/internal/core/domain"
)

const extractSystemPrompt = `You turn natural-language payment requests into structured fields.
Reply with a single JSON object and nothing else:
{
  "amount": "decimal amount as a string, empty if not stated",
  "token": "currency symbol such as ETH, CRO or USDC, empty if not stated",
  "recipient": "wallet address or recipient name, empty if not stated",
  "conditions": ["execution conditions, e.g. immediate"],
  "urgency": "low | medium | high",
  "description": "short restatement of the payment purpose"
}`

const riskSystemPrompt = `You assess the risk of a blockchain payment.
Consider transaction pattern anomalies, recipient risk, amount-related risk and
condition complexity. Reply with a single JSON object and nothing else:
{
  "riskScore": 0-100,
  "factors": ["short risk factor tags"],
  "recommendation": "approve | hold | reject",
  "reasoning": "one or two sentences"
}`

func riskUserPrompt(req domain.PaymentRequest) string {
	return fmt.Sprintf("Amount: %s %s\nRecipient: %s\nConditions: %s\nUrgency: %s\nDescription: %s",
		req.Amount.String(), req.Token, req.Recipient, strings.Join(req.Conditions, ", "), req.Urgency, req.Description)
}
