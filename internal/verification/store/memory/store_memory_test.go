package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"pehchan/internal/catalog"
	"pehchan/internal/verification/models"
	id "pehchan/pkg/domain"
	"pehchan/pkg/platform/sentinel"
)

type InMemorySuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func (s *InMemorySuite) seed() *models.Verification {
	vid, _ := id.ParseVerificationID(uuid.NewString())
	uid, _ := id.ParseUserID(uuid.NewString())
	v, err := models.NewVerification(vid, uid, models.TypeTenant, "", catalog.MethodBasicPAN, false, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(s.ctx, v))
	return v
}

func (s *InMemorySuite) TestCreateAndGet() {
	v := s.seed()

	got, err := s.store.Get(s.ctx, v.ID)
	s.Require().NoError(err)
	s.Equal(v.ID, got.ID)
	s.Equal(models.StatusPending, got.Status)

	s.Run("duplicate create conflicts", func() {
		s.ErrorIs(s.store.Create(s.ctx, v), sentinel.ErrConflict)
	})

	s.Run("unknown id is not found", func() {
		other, _ := id.ParseVerificationID(uuid.NewString())
		_, err := s.store.Get(s.ctx, other)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemorySuite) TestReadsDoNotAliasStoredState() {
	v := s.seed()

	got, err := s.store.Get(s.ctx, v.ID)
	s.Require().NoError(err)
	got.Status = models.StatusVerified

	again, err := s.store.Get(s.ctx, v.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, again.Status)
}

func (s *InMemorySuite) TestExecuteCommitsOnlyWhenValidatePasses() {
	v := s.seed()

	_, err := s.store.Execute(s.ctx, v.ID,
		func(w *models.Verification) error { return sentinel.ErrInvalidState },
		func(w *models.Verification) error {
			w.Status = models.StatusRejected
			return nil
		})
	s.ErrorIs(err, sentinel.ErrInvalidState)

	got, err := s.store.Get(s.ctx, v.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, got.Status)

	updated, err := s.store.Execute(s.ctx, v.ID,
		func(w *models.Verification) error { return w.CanReject() },
		func(w *models.Verification) error {
			w.ApplyReject(s.now.Add(time.Minute))
			return nil
		})
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, updated.Status)
}

func (s *InMemorySuite) TestExecuteSerializesPerVerification() {
	v := s.seed()

	// Many concurrent increments through Execute; with per-id locking every
	// one observes the previous committed version.
	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Execute(s.ctx, v.ID,
				func(w *models.Verification) error { return nil },
				func(w *models.Verification) error {
					w.UpdatedAt = w.UpdatedAt.Add(time.Second)
					w.Version++
					return nil
				})
			s.NoError(err)
		}()
	}
	wg.Wait()

	got, err := s.store.Get(s.ctx, v.ID)
	s.Require().NoError(err)
	s.Equal(v.Version+n, got.Version)
}

func (s *InMemorySuite) TestListByUser() {
	a := s.seed()
	s.seed() // different owner

	list, err := s.store.ListByUser(s.ctx, a.UserID)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(a.ID, list[0].ID)
}
