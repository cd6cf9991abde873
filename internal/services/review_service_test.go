// internal/services/review_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/smartstudy/marketplace-backend/internal/apperrors"
	"github.com/smartstudy/marketplace-backend/internal/models"
)

type ReviewServiceSuite struct {
	suite.Suite
	db       *gorm.DB
	reviews  *ReviewService
	owner    *models.User
	alice    *models.User
	bob      *models.User
	resource *models.Resource
}

func (s *ReviewServiceSuite) SetupTest() {
	s.db = newTestDB(s.T())
	s.reviews = NewReviewService(s.db)
	s.owner = createTestUser(s.T(), s.db, "owner")
	s.alice = createTestUser(s.T(), s.db, "alice")
	s.bob = createTestUser(s.T(), s.db, "bob")
	s.resource = createTestResource(s.T(), s.db, s.owner.ID)
}

func (s *ReviewServiceSuite) resourceRating() (float64, int64) {
	var resource models.Resource
	s.Require().NoError(s.db.First(&resource, "id = ?", s.resource.ID).Error)
	return resource.AverageRating, resource.TotalReviews
}

func (s *ReviewServiceSuite) TestAggregateTracksEveryReview() {
	_, err := s.reviews.AddReview(s.alice.ID, s.resource.ID, &AddReviewRequest{Rating: 5, Comment: "clear and complete"})
	s.Require().NoError(err)

	average, count := s.resourceRating()
	s.Equal(5.0, average)
	s.Equal(int64(1), count)

	_, err = s.reviews.AddReview(s.bob.ID, s.resource.ID, &AddReviewRequest{Rating: 3})
	s.Require().NoError(err)

	average, count = s.resourceRating()
	s.Equal(4.0, average)
	s.Equal(int64(2), count)
}

func (s *ReviewServiceSuite) TestOneReviewPerUserPerResource() {
	_, err := s.reviews.AddReview(s.alice.ID, s.resource.ID, &AddReviewRequest{Rating: 5})
	s.Require().NoError(err)

	_, err = s.reviews.AddReview(s.alice.ID, s.resource.ID, &AddReviewRequest{Rating: 1})
	s.Require().Error(err)
	s.Equal(apperrors.KindConflict, apperrors.KindOf(err))

	// The rejected write must not touch the aggregate.
	average, count := s.resourceRating()
	s.Equal(5.0, average)
	s.Equal(int64(1), count)
}

func (s *ReviewServiceSuite) TestRatingBoundsEnforced() {
	for _, rating := range []int{0, 6, -1} {
		_, err := s.reviews.AddReview(s.alice.ID, s.resource.ID, &AddReviewRequest{Rating: rating})
		s.Require().Error(err)
		s.Equal(apperrors.KindValidation, apperrors.KindOf(err))
	}
}

func (s *ReviewServiceSuite) TestUpdateRecomputesAggregate() {
	review, err := s.reviews.AddReview(s.alice.ID, s.resource.ID, &AddReviewRequest{Rating: 2})
	s.Require().NoError(err)

	_, err = s.reviews.UpdateReview(review.ID, s.alice.ID, &UpdateReviewRequest{Rating: 4})
	s.Require().NoError(err)

	average, count := s.resourceRating()
	s.Equal(4.0, average)
	s.Equal(int64(1), count)
}

func (s *ReviewServiceSuite) TestOnlyAuthorMayUpdate() {
	review, err := s.reviews.AddReview(s.alice.ID, s.resource.ID, &AddReviewRequest{Rating: 2})
	s.Require().NoError(err)

	_, err = s.reviews.UpdateReview(review.ID, s.bob.ID, &UpdateReviewRequest{Rating: 5})
	s.Require().Error(err)
	s.Equal(apperrors.KindAuthorization, apperrors.KindOf(err))
}

func (s *ReviewServiceSuite) TestReviewInactiveResource() {
	s.Require().NoError(s.db.Model(s.resource).Update("is_active", false).Error)

	_, err := s.reviews.AddReview(s.alice.ID, s.resource.ID, &AddReviewRequest{Rating: 4})
	s.Require().Error(err)
	s.Equal(apperrors.KindNotFound, apperrors.KindOf(err))
}

func (s *ReviewServiceSuite) TestMarkHelpful() {
	review, err := s.reviews.AddReview(s.alice.ID, s.resource.ID, &AddReviewRequest{Rating: 4})
	s.Require().NoError(err)

	s.Require().NoError(s.reviews.MarkHelpful(review.ID))
	s.Require().NoError(s.reviews.MarkHelpful(review.ID))

	var reloaded models.Review
	s.Require().NoError(s.db.First(&reloaded, "id = ?", review.ID).Error)
	s.Equal(int64(2), reloaded.HelpfulCount)

	err = s.reviews.MarkHelpful(s.alice.ID)
	s.Require().Error(err)
	s.Equal(apperrors.KindNotFound, apperrors.KindOf(err))
}

func (s *ReviewServiceSuite) TestListSkipsUnapproved() {
	approved, err := s.reviews.AddReview(s.alice.ID, s.resource.ID, &AddReviewRequest{Rating: 4})
	s.Require().NoError(err)

	hidden, err := s.reviews.AddReview(s.bob.ID, s.resource.ID, &AddReviewRequest{Rating: 1})
	s.Require().NoError(err)
	s.Require().NoError(s.db.Model(hidden).Update("is_approved", false).Error)

	list, err := s.reviews.ListResourceReviews(s.resource.ID)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(approved.ID, list[0].ID)
}

func TestReviewServiceSuite(t *testing.T) {
	suite.Run(t, new(ReviewServiceSuite))
}
