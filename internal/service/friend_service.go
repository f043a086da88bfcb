package service

import (
	"context"

	"parley/internal/models"
	"parley/internal/repository"
)

// FriendService provides friend relationship business logic. Guests are
// barred from every operation here, not just hidden from the UI.
type FriendService struct {
	friendRepo repository.FriendRepository
	userRepo   repository.UserRepository
}

// NewFriendService returns a new FriendService.
func NewFriendService(friendRepo repository.FriendRepository, userRepo repository.UserRepository) *FriendService {
	return &FriendService{friendRepo: friendRepo, userRepo: userRepo}
}

func (s *FriendService) requireRegistered(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsGuest() {
		return nil, models.NewForbiddenError("Guests cannot use friend features")
	}
	return user, nil
}

// SendRequest creates a pending friend request. Any existing relationship
// row for the pair, whatever its status, blocks a new request.
func (s *FriendService) SendRequest(ctx context.Context, requesterID, addresseeID uint) (*models.Friendship, error) {
	if requesterID == addresseeID {
		return nil, models.NewValidationError("Cannot send a friend request to yourself")
	}
	if _, err := s.requireRegistered(ctx, requesterID); err != nil {
		return nil, err
	}
	addressee, err := s.userRepo.GetByID(ctx, addresseeID)
	if err != nil {
		return nil, err
	}
	if addressee.IsGuest() {
		return nil, models.NewValidationError("Cannot send a friend request to a guest")
	}

	existing, err := s.friendRepo.GetFriendshipBetweenUsers(ctx, requesterID, addresseeID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("Relationship already exists")
	}

	friendship := &models.Friendship{
		RequesterID: requesterID,
		AddresseeID: addresseeID,
		Status:      models.FriendshipStatusPending,
	}
	if err := s.friendRepo.Create(ctx, friendship); err != nil {
		return nil, err
	}
	return friendship, nil
}

// Accept marks a pending request accepted. Only the addressee may accept.
func (s *FriendService) Accept(ctx context.Context, requestID, userID uint) (*models.Friendship, error) {
	return s.answer(ctx, requestID, userID, models.FriendshipStatusAccepted)
}

// Reject declines a pending request. Only the addressee may reject.
func (s *FriendService) Reject(ctx context.Context, requestID, userID uint) (*models.Friendship, error) {
	return s.answer(ctx, requestID, userID, models.FriendshipStatusRejected)
}

func (s *FriendService) answer(ctx context.Context, requestID, userID uint, status models.FriendshipStatus) (*models.Friendship, error) {
	if _, err := s.requireRegistered(ctx, userID); err != nil {
		return nil, err
	}
	friendship, err := s.friendRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if friendship.AddresseeID != userID {
		return nil, models.NewForbiddenError("Only the addressee can answer a friend request")
	}
	if friendship.Status != models.FriendshipStatusPending {
		return nil, models.NewInvalidStateError("Friend request is not pending")
	}
	if err := s.friendRepo.UpdateStatus(ctx, friendship.ID, status); err != nil {
		return nil, err
	}
	friendship.Status = status
	return friendship, nil
}

// Block forces the pair's relationship to blocked, destroying whatever state
// existed before. The row's requester becomes the blocker so unblock rights
// are unambiguous.
func (s *FriendService) Block(ctx context.Context, blockerID, targetID uint) (*models.Friendship, error) {
	if blockerID == targetID {
		return nil, models.NewValidationError("Cannot block yourself")
	}
	if _, err := s.requireRegistered(ctx, blockerID); err != nil {
		return nil, err
	}
	if _, err := s.userRepo.GetByID(ctx, targetID); err != nil {
		return nil, err
	}

	existing, err := s.friendRepo.GetFriendshipBetweenUsers(ctx, blockerID, targetID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		existing.RequesterID = blockerID
		existing.AddresseeID = targetID
		existing.Status = models.FriendshipStatusBlocked
		if err := s.friendRepo.Save(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	friendship := &models.Friendship{
		RequesterID: blockerID,
		AddresseeID: targetID,
		Status:      models.FriendshipStatusBlocked,
	}
	if err := s.friendRepo.Create(ctx, friendship); err != nil {
		return nil, err
	}
	return friendship, nil
}

// Unblock deletes the block the user placed, leaving no relationship behind.
func (s *FriendService) Unblock(ctx context.Context, blockerID, targetID uint) error {
	if _, err := s.requireRegistered(ctx, blockerID); err != nil {
		return err
	}
	friendship, err := s.friendRepo.GetFriendshipBetweenUsers(ctx, blockerID, targetID)
	if err != nil {
		return err
	}
	if friendship == nil || friendship.Status != models.FriendshipStatusBlocked {
		return models.NewNotFoundError("Block", targetID)
	}
	if friendship.RequesterID != blockerID {
		return models.NewForbiddenError("Only the user who placed a block can lift it")
	}
	return s.friendRepo.Delete(ctx, friendship.ID)
}

// Unfriend removes an accepted friendship from either side.
func (s *FriendService) Unfriend(ctx context.Context, userID, friendID uint) error {
	if _, err := s.requireRegistered(ctx, userID); err != nil {
		return err
	}
	friendship, err := s.friendRepo.GetFriendshipBetweenUsers(ctx, userID, friendID)
	if err != nil {
		return err
	}
	if friendship == nil || friendship.Status != models.FriendshipStatusAccepted {
		return models.NewNotFoundError("Friendship", friendID)
	}
	return s.friendRepo.Delete(ctx, friendship.ID)
}

// ListFriends returns the user's accepted friends.
func (s *FriendService) ListFriends(ctx context.Context, userID uint) ([]models.User, error) {
	if _, err := s.requireRegistered(ctx, userID); err != nil {
		return nil, err
	}
	return s.friendRepo.GetFriends(ctx, userID)
}

// ListPending returns requests awaiting the user's answer.
func (s *FriendService) ListPending(ctx context.Context, userID uint) ([]models.Friendship, error) {
	if _, err := s.requireRegistered(ctx, userID); err != nil {
		return nil, err
	}
	return s.friendRepo.GetPendingRequests(ctx, userID)
}

// ListSent returns the user's outgoing pending requests.
func (s *FriendService) ListSent(ctx context.Context, userID uint) ([]models.Friendship, error) {
	if _, err := s.requireRegistered(ctx, userID); err != nil {
		return nil, err
	}
	return s.friendRepo.GetSentRequests(ctx, userID)
}

// IsBlocked reports whether either user has blocked the other.
func (s *FriendService) IsBlocked(ctx context.Context, userX, userY uint) (bool, error) {
	friendship, err := s.friendRepo.GetFriendshipBetweenUsers(ctx, userX, userY)
	if err != nil {
		return false, err
	}
	return friendship != nil && friendship.Status == models.FriendshipStatusBlocked, nil
}
