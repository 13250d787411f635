package fake

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/BearBump/ParcelBox/internal/integrations/payprovider"
)

// FakeClient — локальная заглушка провайдера для дев-окружения и тестов.
// Секрет детерминирован по (parcelId, сумма), чтобы тесты были воспроизводимы.
type FakeClient struct{}

func New() *FakeClient { return &FakeClient{} }

func (f *FakeClient) CreateIntent(ctx context.Context, req payprovider.IntentRequest) (payprovider.Intent, error) {
	if req.AmountMinor <= 0 {
		return payprovider.Intent{}, fmt.Errorf("fake provider: amount must be positive, got %d", req.AmountMinor)
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(req.ParcelID))
	_, _ = h.Write([]byte("|"))
	_, _ = fmt.Fprintf(h, "%d", req.AmountMinor)
	v := h.Sum64()

	id := fmt.Sprintf("pi_%016x", v)
	return payprovider.Intent{
		ID:           id,
		ClientSecret: fmt.Sprintf("%s_secret_%08x", id, uint32(v)),
	}, nil
}
