package mongo

import (
	"context"
	"errors"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/magabrotheeeer/tour-booking/internal/config"
	"github.com/magabrotheeeer/tour-booking/internal/models"
	"github.com/magabrotheeeer/tour-booking/internal/query"
	"github.com/magabrotheeeer/tour-booking/internal/storage"
)

func setupStorage(t *testing.T) *Storage {
	t.Helper()
	if os.Getenv("SKIP_MONGO_TESTS") == "true" || testing.Short() {
		t.Skip("Skipping MongoDB integration tests")
	}
	ctx := context.Background()

	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		container, err := tcmongo.Run(ctx, "mongo:7")
		require.NoError(t, err)
		t.Cleanup(func() {
			if err := container.Terminate(context.Background()); err != nil {
				t.Logf("failed to terminate mongo container: %v", err)
			}
		})
		uri, err = container.ConnectionString(ctx)
		require.NoError(t, err)
	}

	st, err := New(ctx, config.Mongo{
		URI:            uri,
		Database:       "natours_test_" + primitive.NewObjectID().Hex(),
		ConnectTimeout: 30 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = st.DB.Drop(context.Background())
		_ = st.Close(context.Background())
	})
	return st
}

func seedTour(t *testing.T, repo *Repository[models.Tour], name string, price float64, secret bool, guides ...primitive.ObjectID) *models.Tour {
	t.Helper()
	tour := &models.Tour{
		ID:           primitive.NewObjectID(),
		Name:         name,
		Duration:     5,
		MaxGroupSize: 10,
		Difficulty:   "easy",
		Price:        price,
		Summary:      "summary",
		ImageCover:   "cover.jpg",
		SecretTour:   secret,
	}
	tour.BeforeInsert(time.Now())
	for _, g := range guides {
		tour.Guides = append(tour.Guides, models.NewRef[models.User](g))
	}
	require.NoError(t, repo.Insert(context.Background(), tour))
	return tour
}

func TestRepository_Integration(t *testing.T) {
	st := setupStorage(t)
	ctx := context.Background()

	tours := st.Tours(5 * time.Second)
	users := st.Users(5 * time.Second)
	reviews := st.Reviews(5 * time.Second)

	guide := &models.User{ID: primitive.NewObjectID(), Name: "Guide One", Email: "guide@example.com", Password: "hash"}
	guide.BeforeInsert(time.Now())
	guide.Role = models.RoleGuide
	require.NoError(t, users.Insert(ctx, guide))

	inactive := &models.User{ID: primitive.NewObjectID(), Name: "Gone", Email: "gone@example.com"}
	inactive.BeforeInsert(time.Now())
	require.NoError(t, users.Insert(ctx, inactive))
	require.NoError(t, users.UpdateFields(ctx, inactive.ID, bson.M{"active": false}, nil))

	visible := seedTour(t, tours, "The Forest Hiker", 397, false, guide.ID, inactive.ID)
	seedTour(t, tours, "The Sea Explorer", 497, false)
	secret := seedTour(t, tours, "The Secret Place", 997, true)

	t.Run("find applies scope and populates guides", func(t *testing.T) {
		q, err := query.Build(url.Values{"sort": {"price"}})
		require.NoError(t, err)

		docs, err := tours.Find(ctx, q)
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "The Forest Hiker", docs[0].Name)

		require.Len(t, docs[0].Guides, 1)
		require.True(t, docs[0].Guides[0].Populated())
		assert.Equal(t, "Guide One", docs[0].Guides[0].Doc.Name)
		assert.Empty(t, docs[0].Guides[0].Doc.Password)
	})

	t.Run("secret tour hidden from reads", func(t *testing.T) {
		_, err := tours.FindByID(ctx, secret.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		n, err := tours.Count(ctx, bson.M{})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("inactive user hidden", func(t *testing.T) {
		_, err := users.Get(ctx, inactive.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("duplicate key", func(t *testing.T) {
		_, err := st.Collection(CollectionTours).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true),
		})
		require.NoError(t, err)

		dup := &models.Tour{ID: primitive.NewObjectID(), Name: visible.Name}
		err = tours.Insert(ctx, dup)
		assert.ErrorIs(t, err, storage.ErrDuplicateKey)
	})

	t.Run("update returns new document", func(t *testing.T) {
		doc, err := tours.UpdateByID(ctx, visible.ID, bson.M{"price": 500.0}, []string{"description"})
		require.NoError(t, err)
		assert.Equal(t, 500.0, doc.Price)

		_, err = tours.UpdateByID(ctx, secret.ID, bson.M{"price": 1.0}, nil)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("reviews populate user and tour reviews", func(t *testing.T) {
		review := &models.Review{ID: primitive.NewObjectID(), Review: "Great", Rating: 5, Tour: visible.ID, User: models.NewRef[models.User](guide.ID)}
		review.BeforeInsert(time.Now())
		require.NoError(t, reviews.Insert(ctx, review))

		got, err := reviews.FindByID(ctx, review.ID)
		require.NoError(t, err)
		require.True(t, got.User.Populated())
		assert.Equal(t, "Guide One", got.User.Doc.Name)
		assert.Empty(t, got.User.Doc.Email)

		tour, err := tours.FindByID(ctx, visible.ID, TourReviewsPopulate())
		require.NoError(t, err)
		require.Len(t, tour.Reviews, 1)
		assert.Equal(t, "Great", tour.Reviews[0].Review)
		assert.True(t, tour.Reviews[0].User.Populated())
	})

	t.Run("delete returns removed document", func(t *testing.T) {
		removed, err := tours.DeleteByID(ctx, visible.ID)
		require.NoError(t, err)
		assert.Equal(t, visible.ID, removed.ID)

		_, err = tours.DeleteByID(ctx, visible.ID)
		assert.True(t, errors.Is(err, storage.ErrNotFound))

		n, err := reviews.DeleteMany(ctx, bson.M{"tour": visible.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}
