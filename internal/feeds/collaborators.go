package feeds

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"lauschr/internal/apperr"
	"lauschr/internal/docstore"
	"lauschr/internal/logging"
	"lauschr/internal/permission"
)

// AddCollaborator grants userID a role on the feed. Granting the role a user
// already holds leaves the document untouched.
func (s *Service) AddCollaborator(ctx context.Context, feedID, userID string, role permission.Role) (Feed, error) {
	const op = "add collaborator"
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Feed{}, apperr.Validation(component, op, "user id is required")
	}
	if !permission.ValidCollaboratorRole(role) {
		return Feed{}, apperr.Validation(component, op, fmt.Sprintf("invalid collaborator role %q", role))
	}

	updated, err := docstore.UpdateExisting(s.store, docName(feedID), func(feed Feed) (Feed, error) {
		feed = normalizeFeed(feed)
		if feed.OwnerID == userID {
			return feed, apperr.Validation(component, op, "the owner cannot be added as a collaborator")
		}
		if current, ok := feed.Collaborators[userID]; ok && current == string(role) {
			return feed, docstore.ErrSkipWrite
		}
		feed.Collaborators[userID] = string(role)
		feed.UpdatedAt = s.timestamp()
		return feed, nil
	})
	if err != nil {
		return Feed{}, err
	}
	s.log(ctx).Info("collaborator added",
		logging.FeedID(feedID),
		logging.String("collaborator_id", userID),
		logging.String("role", string(role)),
	)
	return normalizeFeed(updated), nil
}

// RemoveCollaborator revokes userID's role. Removing a user without a role is
// a successful no-op that leaves the document byte-identical.
func (s *Service) RemoveCollaborator(ctx context.Context, feedID, userID string) (Feed, error) {
	userID = strings.TrimSpace(userID)
	removed := false
	updated, err := docstore.UpdateExisting(s.store, docName(feedID), func(feed Feed) (Feed, error) {
		if _, ok := feed.Collaborators[userID]; !ok {
			return feed, docstore.ErrSkipWrite
		}
		delete(feed.Collaborators, userID)
		feed.UpdatedAt = s.timestamp()
		removed = true
		return feed, nil
	})
	if err != nil {
		return Feed{}, err
	}
	if removed {
		s.log(ctx).Info("collaborator removed",
			logging.FeedID(feedID),
			logging.String("collaborator_id", userID),
		)
	}
	return normalizeFeed(updated), nil
}

// UpdateCollaboratorRole changes the role of an existing collaborator.
func (s *Service) UpdateCollaboratorRole(ctx context.Context, feedID, userID string, role permission.Role) (Feed, error) {
	const op = "update collaborator role"
	userID = strings.TrimSpace(userID)
	if !permission.ValidCollaboratorRole(role) {
		return Feed{}, apperr.Validation(component, op, fmt.Sprintf("invalid collaborator role %q", role))
	}
	updated, err := docstore.UpdateExisting(s.store, docName(feedID), func(feed Feed) (Feed, error) {
		current, ok := feed.Collaborators[userID]
		if !ok {
			return feed, apperr.NotFound(component, op, fmt.Sprintf("user %s is not a collaborator", userID))
		}
		if current == string(role) {
			return feed, docstore.ErrSkipWrite
		}
		feed.Collaborators[userID] = string(role)
		feed.UpdatedAt = s.timestamp()
		return feed, nil
	})
	if err != nil {
		return Feed{}, err
	}
	s.log(ctx).Info("collaborator role updated",
		logging.FeedID(feedID),
		logging.String("collaborator_id", userID),
		logging.String("role", string(role)),
	)
	return normalizeFeed(updated), nil
}

// Collaborators lists a feed's collaborators, highest role first.
func (s *Service) Collaborators(ctx context.Context, feedID string) ([]Collaborator, error) {
	feed, err := s.Get(ctx, feedID)
	if err != nil {
		return nil, err
	}
	out := make([]Collaborator, 0, len(feed.Collaborators))
	for userID, role := range feed.Collaborators {
		out = append(out, Collaborator{UserID: userID, Role: permission.ParseRole(role)})
	}
	slices.SortFunc(out, func(a, b Collaborator) int {
		if la, lb := s.perms.Level(a.Role), s.perms.Level(b.Role); la != lb {
			return lb - la
		}
		return strings.Compare(a.UserID, b.UserID)
	})
	return out, nil
}

// TransferOwnership hands the feed to newOwnerID. currentOwnerID must still be
// the owner when the lock is held; the previous owner stays on as editor.
func (s *Service) TransferOwnership(ctx context.Context, feedID, newOwnerID, currentOwnerID string) (Feed, error) {
	const op = "transfer ownership"
	newOwnerID = strings.TrimSpace(newOwnerID)
	currentOwnerID = strings.TrimSpace(currentOwnerID)
	if newOwnerID == "" {
		return Feed{}, apperr.Validation(component, op, "new owner id is required")
	}
	if newOwnerID == currentOwnerID {
		return Feed{}, apperr.Validation(component, op, "new owner is already the owner")
	}
	updated, err := docstore.UpdateExisting(s.store, docName(feedID), func(feed Feed) (Feed, error) {
		feed = normalizeFeed(feed)
		if feed.OwnerID != currentOwnerID {
			return feed, apperr.Wrap(apperr.ErrPermissionDenied, component, op,
				fmt.Sprintf("user %s does not own feed %s", currentOwnerID, feed.ID), nil)
		}
		delete(feed.Collaborators, newOwnerID)
		feed.Collaborators[currentOwnerID] = string(permission.RoleEditor)
		feed.OwnerID = newOwnerID
		feed.UpdatedAt = s.timestamp()
		return feed, nil
	})
	if err != nil {
		return Feed{}, err
	}
	s.log(ctx).Info("feed ownership transferred",
		logging.FeedID(feedID),
		logging.String("previous_owner_id", currentOwnerID),
		logging.String("owner_id", newOwnerID),
	)
	return normalizeFeed(updated), nil
}
