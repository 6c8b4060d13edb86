package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prefeitura-rio/app-credentialing/internal/logging"
	"github.com/prefeitura-rio/app-credentialing/internal/models"
	"github.com/prefeitura-rio/app-credentialing/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

// storeContract runs the behaviour every ProviderStore must share
func storeContract(t *testing.T, newStore func(t *testing.T) ProviderStore) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		store := newStore(t)
		created, err := store.Create(ctx, testutil.ValidProvider("p1", testNow))
		require.NoError(t, err)
		assert.Equal(t, int32(1), created.Version)

		got, err := store.Get(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "p1", got.ID)
		assert.Equal(t, int32(1), got.Version)
		assert.Equal(t, "john.smith@email.com", got.Contact.Email)
		assert.Len(t, got.Credentials.StateLicenses, 1)
	})

	t.Run("duplicate create", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Create(ctx, testutil.ValidProvider("p1", testNow))
		require.NoError(t, err)
		_, err = store.Create(ctx, testutil.ValidProvider("p1", testNow))
		assert.ErrorIs(t, err, models.ErrProviderExists)
	})

	t.Run("missing provider", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Get(ctx, "nope")
		assert.ErrorIs(t, err, models.ErrProviderNotFound)

		p := testutil.ValidProvider("nope", testNow)
		_, err = store.Save(ctx, p)
		assert.ErrorIs(t, err, models.ErrProviderNotFound)
	})

	t.Run("save increments version and detects conflicts", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Create(ctx, testutil.ValidProvider("p1", testNow))
		require.NoError(t, err)

		a, err := store.Get(ctx, "p1")
		require.NoError(t, err)
		b, err := store.Get(ctx, "p1")
		require.NoError(t, err)

		a.Status = models.StatusValidationInProgress
		saved, err := store.Save(ctx, a)
		require.NoError(t, err)
		assert.Equal(t, int32(2), saved.Version)

		b.Status = models.StatusValidationFailed
		_, err = store.Save(ctx, b)
		var conflict *models.ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, int32(1), conflict.Expected)
		assert.Equal(t, int32(2), conflict.Actual)

		got, err := store.Get(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusValidationInProgress, got.Status)
	})

	t.Run("returned copies are isolated", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Create(ctx, testutil.ValidProvider("p1", testNow))
		require.NoError(t, err)

		got, err := store.Get(ctx, "p1")
		require.NoError(t, err)
		got.Credentials.StateLicenses[0].State = "NY"

		again, err := store.Get(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "MA", again.Credentials.StateLicenses[0].State)
	})

	t.Run("list filters and pages", func(t *testing.T) {
		store := newStore(t)
		for i := 0; i < 5; i++ {
			p := testutil.ValidProvider(fmt.Sprintf("p%d", i), testNow.Add(time.Duration(i)*time.Minute))
			if i%2 == 0 {
				p.Status = models.StatusSubmitted
			}
			if i == 4 {
				p.LastName = "Zimmerman"
				p.IntakeSource = models.IntakeAPI
			}
			_, err := store.Create(ctx, p)
			require.NoError(t, err)
		}

		all, total, err := store.List(ctx, ProviderFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		require.Len(t, all, 5)
		assert.Equal(t, "p4", all[0].ID)

		submitted, total, err := store.List(ctx, ProviderFilter{Status: models.StatusSubmitted})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, submitted, 3)

		api, _, err := store.List(ctx, ProviderFilter{IntakeSource: models.IntakeAPI})
		require.NoError(t, err)
		require.Len(t, api, 1)
		assert.Equal(t, "p4", api[0].ID)

		search, _, err := store.List(ctx, ProviderFilter{Search: "zimmer"})
		require.NoError(t, err)
		require.Len(t, search, 1)

		page, total, err := store.List(ctx, ProviderFilter{Page: 2, PerPage: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		require.Len(t, page, 2)
		assert.Equal(t, "p2", page[0].ID)

		empty, _, err := store.List(ctx, ProviderFilter{Page: 9, PerPage: 2})
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, newStore(t).Ping(ctx))
	})
}

func TestMemoryProviderStore(t *testing.T) {
	storeContract(t, func(t *testing.T) ProviderStore { return NewMemoryProviderStore() })
}

func TestMongoProviderStore(t *testing.T) {
	db := testutil.StartMongo(t)
	n := 0
	storeContract(t, func(t *testing.T) ProviderStore {
		n++
		coll := db.Collection(fmt.Sprintf("providers_%d", n))
		return NewMongoProviderStore(coll, logging.NewNop())
	})
}

func TestBuildProviderQuery(t *testing.T) {
	q := buildProviderQuery(ProviderFilter{
		Status:       models.StatusSubmitted,
		IntakeSource: models.IntakeManual,
		PSVStatus:    models.PSVInProgress,
		Search:       "a.b",
	})
	assert.Equal(t, models.StatusSubmitted, q["status"])
	assert.Equal(t, models.IntakeManual, q["intake_source"])
	assert.Equal(t, models.PSVInProgress, q["psv_status.overall_status"])

	or, ok := q["$or"].(bson.A)
	require.True(t, ok)
	assert.Len(t, or, 6)
	assert.Equal(t, bson.M{"name": bson.M{"$regex": `a\.b`, "$options": "i"}}, or[0])

	assert.Empty(t, buildProviderQuery(ProviderFilter{}))
}
