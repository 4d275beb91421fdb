package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agripulse/agri_go_server/internal/model"
	"github.com/agripulse/agri_go_server/internal/testutil"
)

func TestAccountRepository_Create_NormalizesEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewAccountRepository(db)

	account := &model.Account{
		Email:        "  Farmer@Example.COM ",
		PasswordHash: "hash",
		Name:         "Ada",
	}
	require.NoError(t, repo.Create(account))
	assert.NotZero(t, account.ID)
	assert.Equal(t, "farmer@example.com", account.Email)
}

func TestAccountRepository_GetByEmail_CaseInsensitive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewAccountRepository(db)
	created := testutil.TestAccount(t, db, testutil.WithEmail("coop@example.com"))

	found, err := repo.GetByEmail("COOP@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	exists, err := repo.ExistsByEmail(" Coop@Example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByEmail("nobody@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestAccountRepository_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewAccountRepository(db)

	_, err := repo.GetByID(99999)
	assert.Error(t, err)
}

func TestAccountRepository_GetByVerificationCode(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewAccountRepository(db)
	code := "verify-123"
	created := testutil.TestAccount(t, db, func(a *model.Account) {
		a.IsVerified = false
		a.VerificationCode = &code
	})

	found, err := repo.GetByVerificationCode(code)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = repo.GetByVerificationCode("missing")
	assert.Error(t, err)
}

func TestAccountRepository_TouchLogin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewAccountRepository(db)
	created := testutil.TestAccount(t, db)

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.TouchLogin(created.ID, at))

	found, err := repo.GetByID(created.ID)
	require.NoError(t, err)
	require.NotNil(t, found.LastLoginAt)
	assert.True(t, found.LastLoginAt.Equal(at))
}
