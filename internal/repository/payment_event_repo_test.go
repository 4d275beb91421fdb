package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/agripulse/agri_go_server/internal/model"
	"github.com/agripulse/agri_go_server/internal/testutil"
)

func TestPaymentEventRepository_ListByReference(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewPaymentEventRepository(db)

	events := []*model.PaymentEvent{
		{Provider: "paystack", Event: "charge.success", Reference: "AGRI_REF_9", Outcome: model.OutcomeSuccess, Applied: true, Payload: datatypes.JSON(`{"amount":1500000}`)},
		{Provider: "paystack", Event: "charge.success", Reference: "AGRI_REF_9", Outcome: model.OutcomeSuccess},
		{Provider: "admin", Event: "manual.confirm", Reference: "AGRI_REF_10", Outcome: model.OutcomeSuccess, Applied: true},
	}
	for _, e := range events {
		require.NoError(t, repo.Create(e))
	}

	found, err := repo.ListByReference("AGRI_REF_9")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.True(t, found[0].Applied)
	assert.False(t, found[1].Applied)
	assert.JSONEq(t, `{"amount":1500000}`, string(found[0].Payload))

	found, err = repo.ListByReference("missing")
	require.NoError(t, err)
	assert.Empty(t, found)
}
