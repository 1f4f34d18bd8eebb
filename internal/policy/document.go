package policy

import (
	"context"

	"github.com/diewo77/arte/internal/auth"
	"github.com/diewo77/arte/internal/gate"
	"github.com/diewo77/arte/internal/models"
)

// DocumentPolicy: the uploader owns a document; rh overrides; the encadreur
// of the linked stage reads and reviews it.
type DocumentPolicy struct{}

func (DocumentPolicy) Can(_ context.Context, a auth.Actor, action gate.Action, resource any) bool {
	doc, _ := resource.(*models.Document)

	switch a.Role {
	case models.RoleRH:
		return true
	case models.RoleEncadreur:
		switch action {
		case gate.ActionViewAny:
			return true
		case gate.ActionView:
			return doc != nil && (owns(a.ID, doc) || doc.LinkedStage().SupervisedBy(a.ID))
		case gate.ActionCreate:
			return doc != nil && doc.Stage.SupervisedBy(a.ID)
		case gate.ActionUpdate, ActionReview:
			return doc != nil && doc.LinkedStage().SupervisedBy(a.ID)
		case gate.ActionDelete:
			return doc != nil && owns(a.ID, doc) && doc.Status == models.DocumentStatusPending
		}
		return false
	case models.RoleStagiaire:
		switch action {
		case gate.ActionViewAny:
			return true
		case gate.ActionView:
			return doc != nil && (owns(a.ID, doc) || doc.LinkedStage().BelongsTo(a.ID) ||
				(doc.Application != nil && doc.Application.OwnedBy(a.ID)))
		case gate.ActionCreate:
			return doc != nil && stagiaireMayAttach(a.ID, doc)
		case gate.ActionUpdate, gate.ActionDelete:
			return doc != nil && owns(a.ID, doc) && doc.Status == models.DocumentStatusPending
		}
		return false
	}
	return false
}

// stagiaireMayAttach requires every link of a new document to point at the
// stagiaire's own stage or application.
func stagiaireMayAttach(userID uint, doc *models.Document) bool {
	if doc.StageID != nil && !doc.Stage.BelongsTo(userID) {
		return false
	}
	if doc.ApplicationID != nil && (doc.Application == nil || !doc.Application.OwnedBy(userID)) {
		return false
	}
	return true
}
