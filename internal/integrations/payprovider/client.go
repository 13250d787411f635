package payprovider

import "context"

// Intent — подтверждаемый клиентом платёж у внешнего провайдера.
type Intent struct {
	ID           string
	ClientSecret string
}

type IntentRequest struct {
	// Сумма в минимальных единицах валюты (центы).
	AmountMinor int64
	Currency    string
	ParcelID    string
	PayerEmail  string
}

type Client interface {
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
}
